// Package script provides a recognition engine that replays pre-scripted
// utterances instead of listening to a microphone. It drives demos and
// end-to-end tests through a whole conversation with deterministic input.
//
// The engine observes single-utterance semantics: every started attempt
// delivers at most one line, then ends. Lines are consumed in order across
// attempts; once the script is exhausted, started attempts stay running
// silently until stopped, like a microphone hearing nothing.
package script

import (
	"sync"
	"time"

	"github.com/visagelabs/visage/pkg/recog"
)

// Line is one scripted utterance.
type Line struct {
	// Text is delivered as the recognition result.
	Text string

	// Delay is how long after the attempt starts the line is "spoken".
	Delay time.Duration
}

// Engine replays a fixed script, one line per recognition attempt.
// It is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	lines   []Line
	next    int
	running bool
	pending *time.Timer
	ev      recog.Events
}

// New creates an engine that will replay lines in order.
func New(lines []Line) *Engine {
	return &Engine{lines: lines}
}

// Subscribe stores the callback set for subsequent attempts.
func (e *Engine) Subscribe(ev recog.Events) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ev = ev
}

// Start begins one attempt. If a line remains, it is delivered after its
// delay and the attempt ends; otherwise the attempt idles until stopped.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return recog.ErrBusy
	}
	e.running = true

	if e.next >= len(e.lines) {
		// Script exhausted; stay "listening" silently.
		return nil
	}

	line := e.lines[e.next]
	e.next++
	e.pending = time.AfterFunc(line.Delay, func() {
		e.mu.Lock()
		if !e.running {
			e.mu.Unlock()
			return
		}
		e.running = false
		e.pending = nil
		ev := e.ev
		e.mu.Unlock()

		ev.Result(line.Text)
		ev.End()
	})
	return nil
}

// Stop aborts the attempt. A line whose delivery was cancelled is gone for
// good — a real engine cannot replay an interrupted utterance either.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	ev := e.ev
	e.mu.Unlock()

	ev.End()
}

// Rewind resets the script to its first line. Call between conversations to
// replay the same demo.
func (e *Engine) Rewind() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next = 0
}

// Remaining reports how many lines have not been delivered yet.
func (e *Engine) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lines) - e.next
}

var _ recog.Engine = (*Engine)(nil)
