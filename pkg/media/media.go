// Package media defines the Clip interface for the per-state video
// resources the character is rendered from.
//
// A clip hides everything about how video is stored and shown. The
// conversation layer only ever plays, pauses and rewinds clips and listens
// for three signals: loaded, failed and ended. Rendering itself is out of
// scope; implementations range from real player bindings to the simulated
// wall-clock clips used by the demo binary and the tests.
//
// Clips deliver events from arbitrary goroutines. Subscribers are expected
// to hand them straight to their event loop rather than doing work inside
// the callback.
package media

import "context"

// FailReason is the coarse cause of a load failure. The conversation layer
// treats every reason the same way (the clip's state is skipped via its
// fallback); reasons exist for logs and diagnostics.
type FailReason string

const (
	// FailNotFound means the backing resource does not exist.
	FailNotFound FailReason = "not-found"
	// FailDecode means the resource exists but cannot be decoded.
	FailDecode FailReason = "decode"
	// FailTimeout means loading did not finish within the caller's bound.
	FailTimeout FailReason = "timeout"
)

// Events is the callback set a subscriber registers with a clip. Any field
// may be nil; use the emit helpers so nil callbacks are skipped.
type Events struct {
	// OnLoaded fires once when the clip becomes playable.
	OnLoaded func()

	// OnFailed fires once when the clip cannot become playable. A clip
	// fires either OnLoaded or OnFailed, never both.
	OnFailed func(reason FailReason)

	// OnEnded fires each time playback reaches the end of the clip. Looping
	// clips restart silently and never fire it.
	OnEnded func()
}

// Loaded invokes OnLoaded if set.
func (e Events) Loaded() {
	if e.OnLoaded != nil {
		e.OnLoaded()
	}
}

// Failed invokes OnFailed if set.
func (e Events) Failed(reason FailReason) {
	if e.OnFailed != nil {
		e.OnFailed(reason)
	}
}

// Ended invokes OnEnded if set.
func (e Events) Ended() {
	if e.OnEnded != nil {
		e.OnEnded()
	}
}

// Clip is one playable video resource.
//
// Implementations must be safe for concurrent use. Play, Pause and Rewind
// on a clip that has not loaded (or has failed) are harmless no-ops, which
// lets the playback layer treat all clips uniformly.
type Clip interface {
	// Subscribe registers the callback set invoked for clip events. It must
	// be called once, before Load. Later calls replace the previous set.
	Subscribe(ev Events)

	// Load acquires the backing resource and blocks until the outcome is
	// known. The outcome is reported twice: through the subscribed
	// callbacks (for the playback layer) and as the return value (for the
	// caller coordinating a preload). ctx bounds the attempt; expiry counts
	// as a load failure with [FailTimeout].
	Load(ctx context.Context) error

	// Play starts or resumes playback from the current position.
	Play()

	// Pause freezes playback at the current position.
	Pause()

	// Rewind seeks back to the first frame without changing whether the
	// clip is playing.
	Rewind()

	// Muted reports whether the clip plays without audio.
	Muted() bool
}
