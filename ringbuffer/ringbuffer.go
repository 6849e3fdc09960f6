// Package ringbuffer implements the bounded producer/consumer buffer
// that decouples the writer pipeline's data-emission pass from the
// external sink (spec.md §2 "producer/consumer ring buffer (SPSC,
// bounded capacity, independent close on each end)").
//
// This is a close translation of original_source/src/buffer.c's
// iso_ring_buffer: a single fixed-size byte array, two cursors, one
// mutex and a condvar per direction. Go's channels don't model "block a
// variable-length Write/Read against a byte-capacity limit" without
// either losing the capacity bound or adding a chunking layer of their
// own, so sync.Mutex + sync.Cond stays the more direct idiom here —
// the same shape the C code already uses, just without manual thread
// primitives.
package ringbuffer

import (
	"sync"
)

// Buffer is a single-producer/single-consumer byte ring with a fixed
// capacity. Write and Read block until progress can be made or the
// other end closes.
type Buffer struct {
	mu         sync.Mutex
	notEmpty   sync.Cond
	notFull    sync.Cond
	buf        []byte
	size       int // bytes currently buffered
	rpos, wpos int

	readerClosed bool
	writerClosed bool

	TimesFull  int
	TimesEmpty int
}

// New allocates a buffer of the given byte capacity.
func New(capacity int) *Buffer {
	b := &Buffer{buf: make([]byte, capacity)}
	b.notEmpty.L = &b.mu
	b.notFull.L = &b.mu
	return b
}

// Write copies all of p into the buffer, blocking while it is full. It
// returns the number of bytes actually accepted and false once the
// reader has closed, mirroring iso_ring_buffer_write's "0 read
// finished" return.
func (b *Buffer) Write(p []byte) (n int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for n < len(p) {
		for b.size == len(b.buf) {
			if b.readerClosed {
				return n, false
			}
			b.TimesFull++
			b.notFull.Wait()
		}
		chunk := len(p) - n
		if free := len(b.buf) - b.size; chunk > free {
			chunk = free
		}
		if b.wpos+chunk > len(b.buf) {
			chunk = len(b.buf) - b.wpos
		}
		copy(b.buf[b.wpos:b.wpos+chunk], p[n:n+chunk])
		b.wpos = (b.wpos + chunk) % len(b.buf)
		b.size += chunk
		n += chunk
		b.notEmpty.Signal()
	}
	return n, true
}

// Read fills p completely, blocking while the buffer is empty. It
// returns fewer bytes than len(p) only once the writer has closed,
// mirroring iso_ring_buffer_read's EOF behavior.
func (b *Buffer) Read(p []byte) (n int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for n < len(p) {
		for b.size == 0 {
			if b.writerClosed {
				return n, false
			}
			b.TimesEmpty++
			b.notEmpty.Wait()
		}
		chunk := len(p) - n
		if chunk > b.size {
			chunk = b.size
		}
		if b.rpos+chunk > len(b.buf) {
			chunk = len(b.buf) - b.rpos
		}
		copy(p[n:n+chunk], b.buf[b.rpos:b.rpos+chunk])
		b.rpos = (b.rpos + chunk) % len(b.buf)
		b.size -= chunk
		n += chunk
		b.notFull.Signal()
	}
	return n, true
}

// CloseWriter marks the writer side finished; a blocked or future Read
// drains remaining bytes then reports ok=false.
func (b *Buffer) CloseWriter() {
	b.mu.Lock()
	b.writerClosed = true
	b.notEmpty.Broadcast()
	b.mu.Unlock()
}

// CloseReader marks the reader side finished; a blocked or future
// Write reports ok=false instead of accepting more bytes.
func (b *Buffer) CloseReader() {
	b.mu.Lock()
	b.readerClosed = true
	b.notFull.Broadcast()
	b.mu.Unlock()
}

// Capacity reports the buffer's fixed byte capacity.
func (b *Buffer) Capacity() int { return len(b.buf) }
