// Package buffer implements the reactor's growable byte ring buffer.
//
// It keeps three indices into a contiguous []byte: a read cursor, a write
// cursor, and the capacity. readable = write-read, writable = cap-write,
// prependable = read. Grounded on the original Buffer class (buffer.h /
// buffer.cpp) and on the scatter-read trick described in spec.md §4.1 and
// §9: a single readv drains an edge-triggered socket into (tail writable
// slice, a 64 KiB stack buffer) regardless of the buffer's current size.
package buffer

import (
	"errors"

	"golang.org/x/sys/unix"
)

const (
	initialSize  = 1024
	scratchSize  = 64 * 1024
	cheapPrepend = 8
)

// Ring is a growable byte buffer with scatter-read support. Not safe for
// concurrent use; callers rely on the reactor's one-shot/rearm discipline
// to guarantee a single goroutine touches a Ring at a time.
type Ring struct {
	buf        []byte
	readIndex  int
	writeIndex int
}

// New returns a Ring with cheapPrepend bytes reserved ahead of the data
// region, matching the teacher's Buffer(initBufferSize) constructor.
func New() *Ring {
	return &Ring{
		buf:        make([]byte, cheapPrepend+initialSize),
		readIndex:  cheapPrepend,
		writeIndex: cheapPrepend,
	}
}

// Readable returns the number of unread bytes.
func (r *Ring) Readable() int { return r.writeIndex - r.readIndex }

// Writable returns the number of bytes that can be written without
// growing or compacting.
func (r *Ring) Writable() int { return len(r.buf) - r.writeIndex }

// Prependable returns the number of bytes already retired at the front.
func (r *Ring) Prependable() int { return r.readIndex }

// ReadableSlice borrows the unread region; valid until the next mutation.
func (r *Ring) ReadableSlice() []byte {
	return r.buf[r.readIndex:r.writeIndex]
}

// WriteSlice borrows the writable tail; valid until the next mutation.
func (r *Ring) WriteSlice() []byte {
	return r.buf[r.writeIndex:]
}

// Retrieve advances the read cursor by n. Requires n <= Readable().
func (r *Ring) Retrieve(n int) {
	if n < r.Readable() {
		r.readIndex += n
		return
	}
	r.RetrieveAll()
}

// RetrieveUntil advances the read cursor up to the byte offset identified
// by end, an offset into ReadableSlice() (not an absolute buffer index).
func (r *Ring) RetrieveUntil(end int) {
	r.Retrieve(end)
}

// RetrieveAll resets both cursors to the front, discarding all readable
// bytes without copying.
func (r *Ring) RetrieveAll() {
	r.readIndex = cheapPrepend
	r.writeIndex = cheapPrepend
}

// RetrieveAllString moves the readable region out as an owned string and
// resets the cursors.
func (r *Ring) RetrieveAllString() string {
	s := string(r.ReadableSlice())
	r.RetrieveAll()
	return s
}

// Append copies data into the buffer, compacting or growing as needed.
func (r *Ring) Append(data []byte) {
	r.ensureWritable(len(data))
	r.writeIndex += copy(r.buf[r.writeIndex:], data)
}

// AdvanceWrite records that n bytes were written directly into
// WriteSlice(), e.g. by a syscall.
func (r *Ring) AdvanceWrite(n int) {
	r.writeIndex += n
}

// ensureWritable guarantees Writable() >= need, compacting first and
// growing (at least doubling) only if compaction is insufficient.
func (r *Ring) ensureWritable(need int) {
	if r.Writable() >= need {
		return
	}
	if r.Prependable()-cheapPrepend+r.Writable() >= need {
		r.compact()
		return
	}
	r.grow(need)
}

func (r *Ring) compact() {
	readable := r.Readable()
	copy(r.buf[cheapPrepend:], r.buf[r.readIndex:r.writeIndex])
	r.readIndex = cheapPrepend
	r.writeIndex = cheapPrepend + readable
}

func (r *Ring) grow(need int) {
	readable := r.Readable()
	newCap := len(r.buf)
	for newCap-cheapPrepend-readable < need {
		newCap *= 2
	}
	newBuf := make([]byte, newCap)
	copy(newBuf[cheapPrepend:], r.buf[r.readIndex:r.writeIndex])
	r.buf = newBuf
	r.readIndex = cheapPrepend
	r.writeIndex = cheapPrepend + readable
}

// ErrWouldBlock is returned by ReadFD when the underlying read would block
// (EAGAIN/EWOULDBLOCK): no bytes are available right now, but the peer has
// not closed the connection. Callers must distinguish this from a genuine
// zero-byte EOF (n == 0, err == nil) and rearm for read rather than treat
// it as the peer hanging up (spec.md §7).
var ErrWouldBlock = errors.New("buffer: read would block")

// ReadFD performs a single scatter read from fd into (the writable tail,
// a 64 KiB stack buffer), then appends any overflow from the stack buffer
// back into the ring. This amortizes growth: one readv call can drain an
// edge-triggered socket regardless of the ring's current capacity.
//
// Returns the total bytes read. ErrWouldBlock reports zero progress, not a
// failure, distinct from a true EOF (0, nil). Any other error is returned
// as-is.
func (r *Ring) ReadFD(fd int) (int, error) {
	r.ensureWritable(1)

	var scratch [scratchSize]byte
	iov := [][]byte{r.buf[r.writeIndex : r.writeIndex+r.Writable()], scratch[:]}

	n, err := unix.Readv(fd, iov)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, ErrWouldBlock
		}
		return 0, err
	}

	writable := r.Writable()
	if n <= writable {
		r.writeIndex += n
	} else {
		r.writeIndex += writable
		r.Append(scratch[:n-writable])
	}
	return n, nil
}
