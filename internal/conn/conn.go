// Package conn holds per-socket Connection state: the read/write ring
// buffers, the request parser, the response builder, and the
// scatter/gather write vector, per spec.md §3's Connection record.
//
// A Conn is mutated by at most one goroutine at a time -- the reactor's
// one-shot poller rearm is what guarantees that (spec.md §5), not a
// mutex on Conn itself.
package conn

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/Rainllll/MyWebServer/internal/buffer"
	"github.com/Rainllll/MyWebServer/internal/httpparse"
	"github.com/Rainllll/MyWebServer/internal/httpresp"
)

// Conn is one accepted socket's full state.
type Conn struct {
	FD     int
	Peer   net.Addr
	Closed bool

	Read  *buffer.Ring
	Write *buffer.Ring

	Parser  httpparse.Parser
	Builder httpresp.Builder

	// iovBody is the mapped (or inlined) file body, the vector's second
	// element; the first element is always c.Write's readable slice.
	// iovBodyOffset tracks how much of it has been written as an offset
	// rather than a raw pointer, per spec.md §9's guidance, so that
	// compaction of Write's underlying array never invalidates it.
	iovBody       []byte
	iovBodyOffset int

	DocRoot   string
	KeepAlive bool
}

// New allocates a Conn for a freshly accepted fd.
func New(fd int, peer net.Addr, docRoot string) *Conn {
	c := &Conn{
		FD:      fd,
		Peer:    peer,
		Read:    buffer.New(),
		Write:   buffer.New(),
		DocRoot: docRoot,
	}
	c.Parser.Init()
	return c
}

// Reinit resets a pooled Conn for reuse against a new fd, matching the
// teacher's session.reset() pattern of returning connections to a pool
// between accepts.
func (c *Conn) Reinit(fd int, peer net.Addr, docRoot string) {
	c.FD = fd
	c.Peer = peer
	c.Closed = false
	c.Read.RetrieveAll()
	c.Write.RetrieveAll()
	c.Parser.Init()
	c.Builder.Reset()
	c.iovBody, c.iovBodyOffset = nil, 0
	c.DocRoot = docRoot
	c.KeepAlive = false
}

// Process consumes whatever is currently in the read buffer. It returns
// true once the write buffer holds a complete response ready to send,
// false if more input is needed (spec.md §4.4's process() contract).
func (c *Conn) Process() (bool, error) {
	err := c.Parser.Parse(c.Read)
	if err == httpparse.ErrIncomplete {
		return false, nil
	}

	keepAlive := err == nil && c.Parser.KeepAlive()
	code := -1
	path := c.Parser.Path

	if err == httpparse.ErrInvalid {
		code = 400
		path = "/400.html"
		keepAlive = false
	} else if err != nil {
		return false, err
	}

	c.KeepAlive = keepAlive
	c.Builder.Init(c.DocRoot, path, keepAlive, code)
	result, buildErr := c.Builder.Build()
	if buildErr != nil {
		return false, buildErr
	}

	c.iovBody = result.Body
	c.iovBodyOffset = 0
	c.Write.Append(result.Header)

	// Reset the parser for the next pipelined/keep-alive request; its
	// Init() call at the top of Parse handles a nil Headers map, so this
	// only needs to run when this request fully completed.
	c.Parser.Init()

	return true, nil
}

// WriteIOV performs one writev across (header, body) -- header sourced
// live from c.Write's readable slice, body from the remaining mmap
// bytes -- and advances both by however many bytes the kernel accepted.
// Returns the bytes written this call and whether the vector is now
// fully flushed.
func (c *Conn) WriteIOV() (n int, done bool, err error) {
	iov := c.remainingIOV()
	if len(iov) == 0 {
		return 0, true, nil
	}
	n, err = unix.Writev(c.FD, iov)
	if err != nil {
		return 0, false, err
	}

	remaining := n
	if headerLen := c.Write.Readable(); headerLen > 0 {
		consumed := min(remaining, headerLen)
		c.Write.Retrieve(consumed)
		remaining -= consumed
	}
	c.iovBodyOffset += remaining

	return n, c.Pending() == 0, nil
}

// Pending reports how many bytes remain to be written across the vector.
func (c *Conn) Pending() int {
	return c.Write.Readable() + len(c.iovBody) - c.iovBodyOffset
}

func (c *Conn) remainingIOV() [][]byte {
	var iov [][]byte
	if header := c.Write.ReadableSlice(); len(header) > 0 {
		iov = append(iov, header)
	}
	if body := c.iovBody[c.iovBodyOffset:]; len(body) > 0 {
		iov = append(iov, body)
	}
	return iov
}
