package filesrc

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-iso9660/isoimage/isoerr"
	"github.com/go-iso9660/isoimage/stream"
)

// sizedStream reports an arbitrary declared Size() without backing it
// with real bytes, for exercising the 32-bit extent ceiling without
// allocating gigabytes in a test.
type sizedStream struct {
	size int64
	id   stream.Identity
}

func (s *sizedStream) Open() error { return nil }
func (s *sizedStream) Read(p []byte) (int, error) {
	return 0, errors.New("sizedStream: not readable")
}
func (s *sizedStream) Close() error              { return nil }
func (s *sizedStream) Size() int64               { return s.size }
func (s *sizedStream) Identity() stream.Identity { return s.id }
func (s *sizedStream) IsRepeatable() bool        { return true }

func TestGetOrCreateDeduplicatesByIdentity(t *testing.T) {
	r := NewRegistry()
	s1 := stream.NewMemoryStream([]byte("hello"))
	s2 := stream.NewMemoryStream([]byte("hello")) // distinct object, distinct identity

	fs1, err := r.GetOrCreate(s1, 0, false)
	require.NoError(t, err)
	fs1b, err := r.GetOrCreate(s1, 0, false)
	require.NoError(t, err)
	require.Same(t, fs1, fs1b, "same stream identity must return the same FileSrc")

	fs2, err := r.GetOrCreate(s2, 0, false)
	require.NoError(t, err)
	require.NotSame(t, fs1, fs2, "distinct identities must produce distinct records")

	require.Equal(t, 2, r.Len())
}

func TestGetOrCreateConcurrentRace(t *testing.T) {
	r := NewRegistry()
	s := stream.NewMemoryStream([]byte("x"))

	var wg sync.WaitGroup
	results := make([]*FileSrc, 16)
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			fs, err := r.GetOrCreate(s, 0, false)
			require.NoError(t, err)
			results[i] = fs
		}()
	}
	wg.Wait()

	for _, fs := range results {
		require.Same(t, results[0], fs)
	}
	require.Equal(t, 1, r.Len())
}

func TestSortedForAssignmentOrdersBySortWeightThenIdentity(t *testing.T) {
	r := NewRegistry()
	low, err := r.GetOrCreate(stream.NewMemoryStream([]byte("a")), 1, false)
	require.NoError(t, err)
	high, err := r.GetOrCreate(stream.NewMemoryStream([]byte("b")), 10, false)
	require.NoError(t, err)
	prev, err := r.GetOrCreate(stream.NewMemoryStream([]byte("c")), 5, true)
	require.NoError(t, err)

	sorted := r.SortedForAssignment(true)
	require.Len(t, sorted, 2)
	require.Equal(t, high, sorted[0])
	require.Equal(t, low, sorted[1])

	all := r.SortedForAssignment(false)
	require.Len(t, all, 3)
	require.Contains(t, all, prev)
}

func TestGetOrCreateRejectsFileAtOrAbove4GiB(t *testing.T) {
	r := NewRegistry()

	ok := &sizedStream{size: isoerr.MaxFileSize, id: stream.Identity{InoID: 1}}
	fs, err := r.GetOrCreate(ok, 0, false)
	require.NoError(t, err)
	require.Equal(t, int64(isoerr.MaxFileSize), fs.Content.Size())

	tooBig := &sizedStream{size: isoerr.MaxFileSize + 1, id: stream.Identity{InoID: 2}}
	_, err = r.GetOrCreate(tooBig, 0, false)
	require.ErrorIs(t, err, isoerr.ErrFileTooBig)
}

func TestAssignBlocksAdvancesCursorBySize(t *testing.T) {
	r := NewRegistry()
	a, _ := r.GetOrCreate(stream.NewMemoryStream(make([]byte, 2048)), 2, false)
	b, _ := r.GetOrCreate(stream.NewMemoryStream(make([]byte, 1)), 1, false)
	empty, _ := r.GetOrCreate(stream.NewMemoryStream(nil), 0, false)

	sorted := r.SortedForAssignment(false)
	next := AssignBlocks(sorted, 100, 2048)

	require.Equal(t, uint32(100), a.Block)
	require.Equal(t, uint32(101), b.Block)
	require.Equal(t, uint32(102), empty.Block)
	require.Equal(t, uint32(102), next)
}
