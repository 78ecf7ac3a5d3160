// Package sim provides a simulated media.Clip backed by nothing but the
// wall clock. It is the clip implementation behind the demo binary and the
// playback tests: Load checks that the manifest file exists, Play runs a
// timer for the clip's nominal duration, and looping clips restart
// themselves without ever reporting an end.
package sim

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/visagelabs/visage/pkg/media"
)

// Option is a functional option for configuring a Clip.
type Option func(*Clip)

// WithDuration sets the clip's nominal playback length. Non-looping clips
// with a zero duration end immediately when played.
func WithDuration(d time.Duration) Option {
	return func(c *Clip) {
		c.duration = d
	}
}

// WithLoop makes the clip restart from the first frame when it reaches the
// end instead of reporting it.
func WithLoop() Option {
	return func(c *Clip) {
		c.loop = true
	}
}

// WithMuted marks the clip as playing without audio.
func WithMuted() Option {
	return func(c *Clip) {
		c.muted = true
	}
}

// Clip is a simulated video clip. It implements media.Clip.
type Clip struct {
	path     string
	duration time.Duration
	loop     bool
	muted    bool

	mu        sync.Mutex
	ev        media.Events
	loaded    bool
	failed    bool
	playing   bool
	pos       time.Duration
	startedAt time.Time
	end       *time.Timer
}

// New creates a simulated clip whose backing resource is the file at path.
// The file is only checked for existence; its contents are never read.
func New(path string, opts ...Option) *Clip {
	c := &Clip{path: path}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ media.Clip = (*Clip)(nil)

// Subscribe registers the callback set for clip events.
func (c *Clip) Subscribe(ev media.Events) {
	c.mu.Lock()
	c.ev = ev
	c.mu.Unlock()
}

// Load checks the backing file and reports the outcome. A missing file is a
// not-found failure; a context that expires first counts as a timeout.
func (c *Clip) Load(ctx context.Context) error {
	type outcome struct {
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		_, err := os.Stat(c.path)
		done <- outcome{err: err}
	}()

	select {
	case <-ctx.Done():
		return c.fail(media.FailTimeout, ctx.Err())
	case o := <-done:
		switch {
		case o.err == nil:
			return c.succeed()
		case errors.Is(o.err, fs.ErrNotExist):
			return c.fail(media.FailNotFound, o.err)
		default:
			return c.fail(media.FailDecode, o.err)
		}
	}
}

func (c *Clip) succeed() error {
	c.mu.Lock()
	if c.loaded || c.failed {
		c.mu.Unlock()
		return nil
	}
	c.loaded = true
	ev := c.ev
	c.mu.Unlock()
	ev.Loaded()
	return nil
}

func (c *Clip) fail(reason media.FailReason, err error) error {
	c.mu.Lock()
	if c.loaded || c.failed {
		c.mu.Unlock()
		return err
	}
	c.failed = true
	ev := c.ev
	c.mu.Unlock()
	ev.Failed(reason)
	return err
}

// Play starts or resumes playback from the current position. On a clip that
// is not loaded, or is already playing, it does nothing.
func (c *Clip) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded || c.playing {
		return
	}
	c.playing = true
	c.startedAt = time.Now()
	c.armLocked()
}

// Pause freezes playback at the current position.
func (c *Clip) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.pos += time.Since(c.startedAt)
	c.playing = false
	c.disarmLocked()
}

// Rewind seeks back to the first frame. A playing clip keeps playing.
func (c *Clip) Rewind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = 0
	if c.playing {
		c.startedAt = time.Now()
		c.armLocked()
	}
}

// Muted reports whether the clip plays without audio.
func (c *Clip) Muted() bool {
	return c.muted
}

// Position returns the current playback position.
func (c *Clip) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return c.pos + time.Since(c.startedAt)
	}
	return c.pos
}

// Playing reports whether the clip is currently playing.
func (c *Clip) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// armLocked schedules the end-of-clip timer for the remaining duration.
// Looping clips with no nominal duration run forever without one.
func (c *Clip) armLocked() {
	c.disarmLocked()
	if c.duration <= 0 && c.loop {
		return
	}
	remaining := c.duration - c.pos
	if remaining < 0 {
		remaining = 0
	}
	c.end = time.AfterFunc(remaining, c.onEnd)
}

func (c *Clip) disarmLocked() {
	if c.end != nil {
		c.end.Stop()
		c.end = nil
	}
}

// onEnd fires when playback reaches the end of the clip. Looping clips wrap
// around silently; everything else stops at the first frame and reports it.
func (c *Clip) onEnd() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.pos = 0
	if c.loop {
		c.startedAt = time.Now()
		c.armLocked()
		c.mu.Unlock()
		return
	}
	c.playing = false
	c.disarmLocked()
	ev := c.ev
	c.mu.Unlock()
	ev.Ended()
}
