// Package mock provides a test double for the media package interfaces.
//
// Use Clip to script load outcomes, inspect playback calls and drive the
// ended signal by hand:
//
//	clip := &mock.Clip{}
//	clip.Load(ctx) // reports loaded
//	clip.EmitEnded()
//
// Set LoadErr and FailWith to simulate a broken resource.
package mock

import (
	"context"
	"sync"

	"github.com/visagelabs/visage/pkg/media"
)

// Clip is a mock implementation of media.Clip.
type Clip struct {
	mu sync.Mutex

	// LoadErr, if non-nil, is returned by Load and the clip reports a load
	// failure instead of success.
	LoadErr error

	// FailWith is the reason reported alongside a failed load. Defaults to
	// media.FailNotFound.
	FailWith media.FailReason

	// MutedFlag is returned by Muted.
	MutedFlag bool

	// LoadCalls, PlayCalls, PauseCalls and RewindCalls record invocation
	// counts in order of field declaration.
	LoadCalls   int
	PlayCalls   int
	PauseCalls  int
	RewindCalls int

	playing bool
	ev      media.Events
}

// Subscribe stores the callback set for Load and the Emit helpers.
func (c *Clip) Subscribe(ev media.Events) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ev = ev
}

// Load records the call and synchronously reports the configured outcome.
func (c *Clip) Load(_ context.Context) error {
	c.mu.Lock()
	c.LoadCalls++
	err := c.LoadErr
	reason := c.FailWith
	ev := c.ev
	c.mu.Unlock()

	if err != nil {
		if reason == "" {
			reason = media.FailNotFound
		}
		ev.Failed(reason)
		return err
	}
	ev.Loaded()
	return nil
}

// Play records the call and marks the clip playing.
func (c *Clip) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PlayCalls++
	c.playing = true
}

// Pause records the call and marks the clip paused.
func (c *Clip) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PauseCalls++
	c.playing = false
}

// Rewind records the call.
func (c *Clip) Rewind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RewindCalls++
}

// Muted returns MutedFlag.
func (c *Clip) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.MutedFlag
}

// Playing reports whether Play was called more recently than Pause.
func (c *Clip) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Reset clears all recorded calls. Thread-safe.
func (c *Clip) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LoadCalls = 0
	c.PlayCalls = 0
	c.PauseCalls = 0
	c.RewindCalls = 0
}

// EmitLoaded fires OnLoaded without going through Load, for tests that
// simulate a load finishing later.
func (c *Clip) EmitLoaded() {
	c.events().Loaded()
}

// EmitFailed fires OnFailed without going through Load.
func (c *Clip) EmitFailed(reason media.FailReason) {
	c.events().Failed(reason)
}

// EmitEnded fires OnEnded, as if playback just reached the end.
func (c *Clip) EmitEnded() {
	c.mu.Lock()
	c.playing = false
	c.mu.Unlock()
	c.events().Ended()
}

func (c *Clip) events() media.Events {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ev
}

// Ensure Clip implements media.Clip at compile time.
var _ media.Clip = (*Clip)(nil)
