// Package workerpool is the reactor's fixed-size consumer pool.
//
// Grounded on gotcp-epoll's use of github.com/wuyongjia/threadpool:
// threadpool.NewWithFunc(workers, queueLen, dispatch) builds a pool whose
// single dispatch function receives whatever payload was invoked. Here the
// payload is always a func() (the closure the reactor wants run), so the
// dispatch function's only job is to type-assert and call it -- a pool of
// nullary closures, built on a real third-party pool instead of a
// hand-rolled mutex+condvar queue. The backlog is not unbounded: it is
// the queueLength passed to New.
package workerpool

import (
	"github.com/wuyongjia/threadpool"
)

// DefaultSize is the worker count used when the caller does not override
// it, matching spec.md §4.7's default of 8.
const DefaultSize = 8

// Pool runs submitted closures on a fixed number of goroutines.
type Pool struct {
	tp *threadpool.Pool
}

// New starts a Pool with the given worker count. queueLength bounds the
// pool's internal backlog; spec.md describes the queue as unbounded
// because the reactor's one-task-per-connection discipline is the actual
// backpressure mechanism, so queueLength should be sized generously (the
// reactor never wants Submit to block).
func New(workers, queueLength int) *Pool {
	if workers <= 0 {
		workers = DefaultSize
	}
	p := &Pool{}
	p.tp = threadpool.NewWithFunc(workers, queueLength, func(payload interface{}) {
		if fn, ok := payload.(func()); ok {
			fn()
		}
	})
	return p
}

// Submit enqueues fn for execution on some worker goroutine. At most one
// outstanding task may exist per connection at a time; the reactor
// enforces this via the one-shot poller rearm (spec.md §5), not this
// pool.
func (p *Pool) Submit(fn func()) {
	p.tp.Invoke(fn)
}

// Close stops accepting new work and waits for in-flight tasks to drain.
func (p *Pool) Close() {
	p.tp.Close()
}
