// Package recog defines the Engine interface for single-utterance speech
// recognition backends.
//
// An engine wraps whatever actually listens to the user: a platform speech
// API, a local model behind a websocket sidecar, or a scripted source in
// demos and tests. Every engine is configured the same way: one utterance
// per started attempt, no interim results, a locale fixed for the engine's
// lifetime. The conversation layer owns all retry and arbitration policy;
// engines only report what happened.
//
// Engines deliver events from arbitrary goroutines. Subscribers are
// expected to hand them straight to their event loop rather than doing work
// inside the callback.
package recog

import "errors"

// ErrBusy is returned by Start when a recognition attempt is already in
// flight. Callers that serialize their own starts never see it.
var ErrBusy = errors.New("recog: recognition attempt already in flight")

// Events is the callback set a subscriber registers with an engine. Any
// field may be nil; use the emit helpers so nil callbacks are skipped.
type Events struct {
	// OnResult delivers the final recognized text of the attempt, exactly
	// once per successful attempt, before OnEnd.
	OnResult func(text string)

	// OnError reports that the attempt failed (no speech, audio device
	// trouble, transport loss). At most once per attempt, before OnEnd.
	OnError func(err error)

	// OnEnd signals that the attempt is over and the engine is idle again.
	// Fires exactly once per started attempt, after OnResult or OnError if
	// either fired, including when the attempt was stopped by the caller.
	OnEnd func()
}

// Result invokes OnResult if set.
func (e Events) Result(text string) {
	if e.OnResult != nil {
		e.OnResult(text)
	}
}

// Error invokes OnError if set.
func (e Events) Error(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}

// End invokes OnEnd if set.
func (e Events) End() {
	if e.OnEnd != nil {
		e.OnEnd()
	}
}

// Engine is the abstraction over any speech recognition backend.
//
// Implementations must be safe for concurrent use; Start and Stop may race
// with the engine's own event delivery.
type Engine interface {
	// Subscribe registers the callback set invoked for recognition events.
	// It must be called once, before the first Start. Later calls replace
	// the previous set.
	Subscribe(ev Events)

	// Start begins one recognition attempt. It returns an error when the
	// attempt cannot begin (engine busy, device unavailable, transport
	// down); in that case no events for the attempt will fire. A nil return
	// means the attempt is running and will terminate with OnEnd.
	Start() error

	// Stop aborts the in-flight attempt, if any. The engine still fires
	// OnEnd for the aborted attempt. Stop on an idle engine is a no-op.
	Stop()
}
