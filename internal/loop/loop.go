// Package loop serializes all conversation logic onto a single goroutine.
//
// Recognition callbacks, media callbacks and timer fires arrive from
// arbitrary goroutines; each is posted here and executed one at a time in
// arrival order. Controllers therefore never observe a half-applied
// mutation and never need their own locking, and anything a timer checks
// at fire time reflects every event that fired before it.
package loop

import (
	"sync"
)

// Loop executes posted functions sequentially on one dedicated goroutine.
//
// The queue is unbounded so that code already running on the loop may post
// follow-up work without risking deadlock. Post and Schedule are safe for
// concurrent use.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool

	stopOnce sync.Once
	finished chan struct{}
}

// New creates a running loop. Callers must Stop it to release the
// goroutine.
func New() *Loop {
	l := &Loop{finished: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post enqueues fn for execution on the loop goroutine. After Stop, posted
// functions are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	l.mu.Unlock()
}

// Stop drains the queue, then terminates the loop goroutine and waits for
// it to exit. Functions posted after Stop are dropped. Stop must not be
// called from the loop goroutine itself.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.cond.Signal()
		l.mu.Unlock()
	})
	<-l.finished
}

func (l *Loop) run() {
	defer close(l.finished)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			// Stopped and drained.
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		fn()
	}
}
