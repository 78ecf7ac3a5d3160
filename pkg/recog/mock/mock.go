// Package mock provides a test double for the recog package interfaces.
//
// Use Engine to script start outcomes and to drive recognition callbacks by
// hand:
//
//	eng := &mock.Engine{}
//	ctrl := speech.New(speech.Config{Engine: eng, ...})
//	eng.EmitResult("hello there")
//	eng.EmitEnd()
package mock

import (
	"sync"

	"github.com/visagelabs/visage/pkg/recog"
)

// Engine is a mock implementation of recog.Engine.
type Engine struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by every Start call and the attempt
	// is not considered started.
	StartErr error

	// EndOnStop, when true, makes Stop fire OnEnd synchronously for the
	// aborted attempt, matching how real engines behave. Leave false to
	// control OnEnd timing by hand with EmitEnd.
	EndOnStop bool

	// StartCalls is the number of times Start was called.
	StartCalls int

	// StopCalls is the number of times Stop was called.
	StopCalls int

	running bool
	ev      recog.Events
}

// Subscribe stores the callback set for the Emit helpers.
func (e *Engine) Subscribe(ev recog.Events) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ev = ev
}

// Start records the call and returns StartErr.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.StartCalls++
	if e.StartErr != nil {
		return e.StartErr
	}
	e.running = true
	return nil
}

// Stop records the call. With EndOnStop it also emits OnEnd for the
// attempt that was in flight.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.StopCalls++
	wasRunning := e.running
	e.running = false
	ev := e.ev
	endOnStop := e.EndOnStop
	e.mu.Unlock()

	if endOnStop && wasRunning {
		ev.End()
	}
}

// Running reports whether a started attempt has not yet been stopped or
// ended.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.StartCalls = 0
	e.StopCalls = 0
}

// EmitResult fires OnResult with text.
func (e *Engine) EmitResult(text string) {
	e.events().Result(text)
}

// EmitError fires OnError with err.
func (e *Engine) EmitError(err error) {
	e.events().Error(err)
}

// EmitEnd marks the attempt over and fires OnEnd.
func (e *Engine) EmitEnd() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	e.events().End()
}

func (e *Engine) events() recog.Events {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ev
}

// Ensure Engine implements recog.Engine at compile time.
var _ recog.Engine = (*Engine)(nil)
