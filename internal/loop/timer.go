package loop

import (
	"sync/atomic"
	"time"
)

// Timer is a one-shot timer whose body runs on the loop goroutine.
//
// Because the body runs as posted work, everything it reads reflects all
// events that were handled before it fired, which is what lets controllers
// re-check eligibility at fire time instead of trusting conditions captured
// when the timer was armed.
type Timer struct {
	cancelled atomic.Bool
	t         *time.Timer
}

// Schedule arms a timer that posts fn onto the loop after d. The returned
// timer may be cancelled from any goroutine.
func (l *Loop) Schedule(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if tm.cancelled.Load() {
				return
			}
			fn()
		})
	})
	return tm
}

// Cancel prevents the timer body from running. A timer whose body already
// ran ignores Cancel, cancelling twice is harmless, and Cancel on a nil
// timer is a no-op. A fire that is already in flight when Cancel is called
// is suppressed before the body runs.
func (tm *Timer) Cancel() {
	if tm == nil {
		return
	}
	tm.cancelled.Store(true)
	tm.t.Stop()
}
