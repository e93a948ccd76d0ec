// Package reactor is the event-driven connection engine's core: the
// accept loop, event dispatch, rearm policy, and timer integration
// described in spec.md §4.6. It owns the Poller, the Timer, the Worker
// Pool, and the fd -> Connection registry.
//
// Grounded on gotcp-epoll's EP.listen/acceptAction/readAction dispatch
// shape (golang.org/x/sys/unix epoll + accept4 + worker dispatch) and on
// original_source/code/server/webserver.cpp's per-iteration structure:
// compute the next timeout from the timer, wait, then branch each ready
// fd into accept / hangup-close / read-task / write-task.
package reactor

import (
	"net"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/wuyongjia/hashmap"
	"github.com/wuyongjia/pool"

	"github.com/Rainllll/MyWebServer/internal/buffer"
	"github.com/Rainllll/MyWebServer/internal/config"
	"github.com/Rainllll/MyWebServer/internal/conn"
	"github.com/Rainllll/MyWebServer/internal/epoll"
	"github.com/Rainllll/MyWebServer/internal/httpparse"
	"github.com/Rainllll/MyWebServer/internal/logsink"
	"github.com/Rainllll/MyWebServer/internal/timer"
	"github.com/Rainllll/MyWebServer/internal/workerpool"
)

// Reactor runs the single-threaded accept/dispatch loop. Its exported
// Run method must be called from one goroutine only: the connection map,
// timer, and poller are all accessed exclusively from there (spec.md §5).
type Reactor struct {
	cfg     config.Config
	poller  *epoll.Poller
	timer   *timer.Heap
	workers *workerpool.Pool
	log     *logsink.Sink
	verify  httpparse.Verifier

	listenFD int

	// conns is the fd -> *conn.Conn registry. Mutated only by the reactor
	// goroutine (insert on accept, erase on close); workers hold only the
	// *conn.Conn handle passed into their task closure, never touching
	// this map directly, per spec.md §5.
	conns *hashmap.HM

	// connPool recycles *conn.Conn values across accept/close cycles,
	// replacing the teacher's sync.Pool-based session pool (spec.md §3's
	// Connection record) with gotcp-epoll's pool.Pool -- same role
	// (bufferPool/connPool, "return *Conn"), different library.
	connPool *pool.Pool

	userCount atomic.Int64

	closed atomic.Bool
}

// New builds a Reactor; call Run to start serving.
func New(cfg config.Config, verify httpparse.Verifier, log *logsink.Sink) (*Reactor, error) {
	poller, err := epoll.New()
	if err != nil {
		return nil, err
	}
	r := &Reactor{
		cfg:     cfg,
		poller:  poller,
		timer:   timer.New(),
		workers: workerpool.New(cfg.WorkerCount, cfg.WorkerCount*64),
		log:     log,
		verify:  verify,
		conns:   hashmap.New(0),
	}
	r.connPool = pool.New(cfg.WorkerCount*64, func() interface{} {
		return conn.New(0, nil, "")
	})
	return r, nil
}

// Listen creates, binds, and registers the listening socket. A nonzero
// error here is fatal at startup per spec.md §6.
func (r *Reactor) Listen() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return err
	}

	addr := unix.SockaddrInet4{Port: r.cfg.Port}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return err
	}

	listenInterest := epoll.Readable
	if r.cfg.Trigger.ListenEdgeTriggered() {
		listenInterest |= epoll.EdgeTrigger
	}
	if err := r.poller.Add(fd, listenInterest); err != nil {
		unix.Close(fd)
		return err
	}

	r.listenFD = fd
	r.log.Write(logsink.Info, "listening on port %d (trigger mode %d)", r.cfg.Port, r.cfg.Trigger)
	return nil
}

// stopCheckMS caps each poller wait so Run notices Stop: closing the
// epoll fd does not wake a goroutine already blocked in epoll_wait.
const stopCheckMS = 100

// Run executes the reactor's event loop until Stop is called. Call this
// from exactly one goroutine.
func (r *Reactor) Run() {
	for !r.closed.Load() {
		nextMS := r.timer.NextTick()
		if nextMS < 0 || nextMS > stopCheckMS {
			nextMS = stopCheckMS
		}
		n, err := r.poller.Wait(nextMS)
		if err != nil {
			r.log.Write(logsink.Error, "poller wait: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			fd := r.poller.EventFD(i)
			mask := r.poller.EventMask(i)

			switch {
			case fd == r.listenFD:
				r.acceptLoop()
			case mask&(epoll.PeerHangup|unix.EPOLLERR) != 0:
				r.closeConn(fd)
			case mask&epoll.Readable != 0:
				r.onReadable(fd)
			case mask&epoll.Writable != 0:
				r.onWritable(fd)
			}
		}
	}
}

// Stop breaks the Run loop, closes the listening socket, and releases
// the poller and worker pool. Connections already open are left as-is:
// graceful drain is a declared non-goal (spec.md §1).
func (r *Reactor) Stop() {
	r.closed.Store(true)
	r.workers.Close()
	r.timer.Clear()
	if r.listenFD != 0 {
		unix.Close(r.listenFD)
	}
	r.poller.Close()
}

func (r *Reactor) connInterest() epoll.Interest {
	interest := epoll.OneShot
	if r.cfg.Trigger.ConnEdgeTriggered() {
		interest |= epoll.EdgeTrigger
	}
	return interest
}

// acceptLoop runs accept4 repeatedly when the listen socket is
// edge-triggered (must drain to EAGAIN) or exactly once otherwise,
// per spec.md §4.6.
func (r *Reactor) acceptLoop() {
	for {
		fd, sa, err := unix.Accept4(r.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				r.log.Write(logsink.Warn, "accept: %v", err)
			}
			break
		}

		if r.userCount.Load() >= config.MaxFD {
			unix.Write(fd, []byte("Server busy!"))
			unix.Close(fd)
			r.log.Write(logsink.Warn, "accept refused: at MAX_FD")
		} else {
			r.acceptOne(fd, sa)
		}

		if !r.cfg.Trigger.ListenEdgeTriggered() {
			break
		}
	}
}

func (r *Reactor) acceptOne(fd int, sa unix.Sockaddr) {
	c := r.getConn()
	c.Reinit(fd, sockaddrToNetAddr(sa), r.cfg.DocRoot)
	c.Parser.Verify = r.verify

	r.conns.Put(fd, c)
	r.userCount.Add(1)

	if err := r.poller.Add(fd, epoll.Readable|r.connInterest()); err != nil {
		r.closeConn(fd)
		return
	}
	if r.cfg.IdleTimeoutMS > 0 {
		r.timer.Add(fd, r.cfg.IdleTimeoutMS, func() { r.closeConn(fd) })
	}
}

func (r *Reactor) onReadable(fd int) {
	c, ok := r.lookupConn(fd)
	if !ok {
		return
	}
	if r.cfg.IdleTimeoutMS > 0 {
		r.timer.Adjust(fd, r.cfg.IdleTimeoutMS)
	}
	r.workers.Submit(func() { r.onReadTask(fd, c) })
}

func (r *Reactor) onWritable(fd int) {
	c, ok := r.lookupConn(fd)
	if !ok {
		return
	}
	if r.cfg.IdleTimeoutMS > 0 {
		r.timer.Adjust(fd, r.cfg.IdleTimeoutMS)
	}
	r.workers.Submit(func() { r.onWriteTask(fd, c) })
}

// onReadTask runs on a worker goroutine: read what's available, then
// hand off to the shared process step. A would-block read is retriable
// input, not a hangup -- rearm for more instead of closing (spec.md §7).
func (r *Reactor) onReadTask(fd int, c *conn.Conn) {
	n, err := c.Read.ReadFD(fd)
	if err == buffer.ErrWouldBlock {
		r.rearm(fd, epoll.Readable)
		return
	}
	if err != nil || (n == 0 && err == nil) {
		r.closeConn(fd)
		return
	}
	r.onProcess(fd, c)
}

// onProcess runs on a worker goroutine following a read: advance the
// parser/builder state machine and rearm for write or for more input.
func (r *Reactor) onProcess(fd int, c *conn.Conn) {
	ready, err := c.Process()
	if err != nil {
		r.closeConn(fd)
		return
	}
	if ready {
		r.rearm(fd, epoll.Writable)
	} else {
		r.rearm(fd, epoll.Readable)
	}
}

const drainThreshold = 10 * 1024

// onWriteTask runs on a worker goroutine: writev across the
// (header, body) vector until EAGAIN, until fully flushed, or (for
// level-triggered connections) until pending drops below drainThreshold.
func (r *Reactor) onWriteTask(fd int, c *conn.Conn) {
	edge := r.cfg.Trigger.ConnEdgeTriggered()
	for {
		_, done, err := c.WriteIOV()
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				r.rearm(fd, epoll.Writable)
				return
			}
			r.closeConn(fd)
			return
		}
		if done {
			if c.KeepAlive {
				r.rearm(fd, epoll.Readable)
			} else {
				r.closeConn(fd)
			}
			return
		}
		if !edge && c.Pending() <= drainThreshold {
			r.rearm(fd, epoll.Writable)
			return
		}
	}
}

// rearm performs the single mod call that transitions a connection
// between read-armed and write-armed, always carrying one-shot (and the
// configured edge bit). This is the sole enforcement point for "at most
// one in-flight task per connection" (spec.md §4.6, §5).
func (r *Reactor) rearm(fd int, base epoll.Interest) {
	if err := r.poller.Mod(fd, base|r.connInterest()); err != nil {
		r.closeConn(fd)
	}
}

// closeConn tears down a connection: unmaps any file mapping, closes the
// fd, decrements the user counter, removes the timer entry, and erases
// the registry entry. Runs only on the reactor goroutine (called
// directly from Run, or via a timer callback which also only fires from
// Run's NextTick call).
func (r *Reactor) closeConn(fd int) {
	c, ok := r.lookupConn(fd)
	if !ok {
		return
	}
	if c.Closed {
		return
	}
	c.Closed = true
	c.Builder.Reset()
	r.poller.Del(fd)
	unix.Close(fd)
	r.timer.Remove(fd)
	r.conns.Remove(fd)
	r.userCount.Add(-1)
	r.connPool.Put(c)
}

// getConn draws a recycled Conn from the pool, falling back to a fresh
// one if the pool returns an unexpected type or an error (gotcp-epoll's
// GetBufferPoolItem follows the same fallback shape for its bufferPool).
func (r *Reactor) getConn() *conn.Conn {
	iface, err := r.connPool.Get()
	if err == nil {
		if c, ok := iface.(*conn.Conn); ok {
			return c
		}
	}
	return conn.New(0, nil, "")
}

func (r *Reactor) lookupConn(fd int) (*conn.Conn, bool) {
	v := r.conns.Get(fd)
	if v == nil {
		return nil, false
	}
	c, ok := v.(*conn.Conn)
	return c, ok
}

// UserCount reports the live connection count, exported for tests and
// metrics.
func (r *Reactor) UserCount() int64 {
	return r.userCount.Load()
}

// Addr reports the listening socket's bound address, read back via
// getsockname so callers (chiefly tests) can discover the actual port
// after binding with cfg.Port == 0.
func (r *Reactor) Addr() (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(r.listenFD)
	if err != nil {
		return nil, err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}, nil
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}, nil
	default:
		return nil, unix.EINVAL
	}
}

func sockaddrToNetAddr(sa unix.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	default:
		return nil
	}
}
