// Package epoll wraps Linux epoll as a thin readiness poller: add/mod/del
// a file descriptor's interest, wait for events, and read back which fd
// and which bits fired. Grounded on gotcp-epoll's EP.listen/InitEpoll
// (golang.org/x/sys/unix.EpollCreate1/EpollCtl/EpollWait) and on
// searchktools-fast-server/core/poller/epoll.go's Poller shape.
package epoll

import (
	"golang.org/x/sys/unix"
)

// Interest bits, matching spec.md §4.2's readable/writable/peer-hangup/
// one-shot/edge-triggered encoding onto the EPOLL* constants.
type Interest uint32

const (
	Readable    Interest = unix.EPOLLIN
	Writable    Interest = unix.EPOLLOUT
	PeerHangup  Interest = unix.EPOLLRDHUP
	OneShot     Interest = unix.EPOLLONESHOT
	EdgeTrigger Interest = unix.EPOLLET
)

const defaultMaxEvents = 4096

// Poller is a thin wrapper over one epoll instance.
type Poller struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates a Poller backed by a fresh epoll instance.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Poller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, defaultMaxEvents),
	}, nil
}

// Add registers fd with the given interest mask.
func (p *Poller) Add(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: uint32(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// Mod rearms fd with a new interest mask. Correctness requirement (spec.md
// §4.2): after a one-shot event fires, no further events for fd arrive
// until Mod rearms it.
func (p *Poller) Mod(fd int, interest Interest) error {
	ev := unix.EpollEvent{Events: uint32(interest), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// Del removes fd from the interest set.
func (p *Poller) Del(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for up to timeoutMS milliseconds (-1 = forever, 0 =
// nonblocking poll) and returns the number of ready events. Retries
// transparently on EINTR.
func (p *Poller) Wait(timeoutMS int) (int, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.events, timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, err
		}
		return n, nil
	}
}

// EventFD returns the file descriptor for the i-th ready event from the
// most recent Wait call.
func (p *Poller) EventFD(i int) int {
	return int(p.events[i].Fd)
}

// EventMask returns the ready interest bits for the i-th event.
func (p *Poller) EventMask(i int) Interest {
	return Interest(p.events[i].Events)
}

// Close releases the underlying epoll fd.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
