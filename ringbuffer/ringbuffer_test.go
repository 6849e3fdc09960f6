package ringbuffer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := New(8)
	payload := bytes.Repeat([]byte("abcdefgh"), 100) // larger than capacity

	var g errgroup.Group
	g.Go(func() error {
		w := NewWriter(b)
		defer w.Close()
		_, err := w.Write(payload)
		return err
	})

	var got bytes.Buffer
	g.Go(func() error {
		r := NewReader(b)
		_, err := io.Copy(&got, r)
		return err
	})

	require.NoError(t, g.Wait())
	require.Equal(t, payload, got.Bytes())
}

func TestCloseReaderUnblocksWriter(t *testing.T) {
	b := New(4)
	b.CloseReader()

	n, ok := b.Write([]byte("12345678"))
	require.False(t, ok)
	require.Equal(t, 4, n) // fills available capacity before observing the close
}

func TestCloseWriterDrainsThenEOF(t *testing.T) {
	b := New(16)
	n, ok := b.Write([]byte("hi"))
	require.True(t, ok)
	require.Equal(t, 2, n)
	b.CloseWriter()

	out := make([]byte, 2)
	n, ok = b.Read(out)
	require.True(t, ok)
	require.Equal(t, "hi", string(out[:n]))

	out2 := make([]byte, 1)
	_, ok = b.Read(out2)
	require.False(t, ok)
}
