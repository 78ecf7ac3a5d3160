package video

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/visagelabs/visage/internal/loop"
	"github.com/visagelabs/visage/internal/observe"
	"github.com/visagelabs/visage/internal/session"
	"github.com/visagelabs/visage/pkg/media"
)

const (
	// DefaultLoadTimeout bounds how long readiness may wait for clip load
	// reports. A clip that never reports must not hold the conversation on
	// a loading screen forever.
	DefaultLoadTimeout = 10 * time.Second

	// DefaultGoodbyeGrace holds the goodbye clip's final frame briefly
	// before the whole session resets to idle.
	DefaultGoodbyeGrace = 1500 * time.Millisecond
)

// endTransitions is the next conversational state requested when a spoken
// clip finishes. Goodbye is special-cased (grace delay, then reset); idle
// and listening loop and never signal.
var endTransitions = map[session.State]session.State{
	session.StateGreeting: session.StateListening,
	session.StateResponse: session.StateListening,
	session.StateWeather:  session.StateListening,
	session.StatePrompt:   session.StateListening,
	session.StateFallback: session.StateListening,
}

// Config carries the dependencies and tuning for [New]. Session, Loop and
// Clips are required.
type Config struct {
	Session *session.Session
	Loop    *loop.Loop

	// Clips maps each state to its clip. States without an entry are
	// treated as failed resources from the start and resolve through the
	// fallback chain.
	Clips map[session.State]media.Clip

	// Fallbacks is the fallback chain. Empty entries mean the state is
	// terminal. Nil means no state has a fallback, which degrades every
	// failed state straight to idle.
	Fallbacks map[session.State]session.State

	// LoadTimeout and GoodbyeGrace override the defaults when positive.
	LoadTimeout  time.Duration
	GoodbyeGrace time.Duration

	// Metrics is optional; nil disables instrumentation.
	Metrics *observe.Metrics
}

// Controller keeps the clip library in lockstep with the conversation.
//
// Decisions run on the event loop; clip callbacks are posted there on
// arrival. The readable projections (effective state, readiness, failure
// set) are guarded separately so UIs and health checks can read them from
// any goroutine.
type Controller struct {
	sess    *session.Session
	lp      *loop.Loop
	clips   map[session.State]media.Clip
	chain   map[session.State]session.State
	grace   time.Duration
	metrics *observe.Metrics

	// mu guards the projections below. Written only from the loop.
	mu        sync.Mutex
	loaded    map[session.State]bool // reported, successfully or not
	failed    map[session.State]bool
	effective session.State
	ready     bool
	shown     bool // first refresh has pushed a clip to the screen

	readyTimer *loop.Timer
	graceTimer *loop.Timer
}

// New creates the controller, subscribes it to the session and to every
// clip, and arms the readiness timeout. States with no clip configured are
// recorded as failed immediately.
func New(cfg Config) *Controller {
	c := &Controller{
		sess:      cfg.Session,
		lp:        cfg.Loop,
		clips:     cfg.Clips,
		chain:     cfg.Fallbacks,
		grace:     cfg.GoodbyeGrace,
		metrics:   cfg.Metrics,
		loaded:    make(map[session.State]bool),
		failed:    make(map[session.State]bool),
		effective: session.StateIdle,
	}
	if c.grace <= 0 {
		c.grace = DefaultGoodbyeGrace
	}
	loadTimeout := cfg.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}

	for _, st := range session.All() {
		if _, ok := c.clips[st]; !ok {
			c.loaded[st] = true
			c.failed[st] = true
			slog.Warn("video: no clip configured", "state", st)
		}
	}

	for st, clip := range c.clips {
		st := st
		clip.Subscribe(media.Events{
			OnLoaded: func() { c.lp.Post(func() { c.markLoaded(st) }) },
			OnFailed: func(reason media.FailReason) {
				c.lp.Post(func() { c.markFailed(st, reason) })
			},
			OnEnded: func() { c.lp.Post(func() { c.onEnded(st) }) },
		})
	}

	c.sess.Subscribe(func() { c.lp.Post(c.refresh) })

	c.readyTimer = c.lp.Schedule(loadTimeout, func() {
		c.readyTimer = nil
		c.forceReady()
	})
	c.lp.Post(func() {
		c.updateReady()
		c.refresh()
	})
	return c
}

// UpdateGoodbyeGrace swaps the goodbye hold duration at runtime. Non-positive
// values keep the current one.
func (c *Controller) UpdateGoodbyeGrace(d time.Duration) {
	c.lp.Post(func() {
		if d > 0 {
			c.grace = d
		}
	})
}

// Close cancels the controller's timers and pauses every clip.
func (c *Controller) Close() {
	c.lp.Post(func() {
		c.readyTimer.Cancel()
		c.readyTimer = nil
		c.graceTimer.Cancel()
		c.graceTimer = nil
		for _, clip := range c.clips {
			clip.Pause()
		}
	})
}

// ── projections ──────────────────────────────────────────────────────────────

// Effective returns the state whose clip is actually showing after fallback
// resolution.
func (c *Controller) Effective() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effective
}

// Ready reports whether every clip has reported (or the load timeout forced
// the issue).
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Progress returns how many states have reported a load outcome and how
// many exist. Failed clips count as reported so a broken file cannot stall
// a loading screen.
func (c *Controller) Progress() (reported, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.loaded), len(session.All())
}

// FailedStates returns the states whose clip failed to load, in the fixed
// state order.
func (c *Controller) FailedStates() []session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []session.State
	for _, st := range session.All() {
		if c.failed[st] {
			out = append(out, st)
		}
	}
	return out
}

// ReadyCheck is a readiness probe for the health endpoint. It fails until
// the clip library is ready.
func (c *Controller) ReadyCheck(context.Context) error {
	if !c.Ready() {
		reported, total := c.Progress()
		return fmt.Errorf("media loading: %d/%d clips reported", reported, total)
	}
	return nil
}

// ── loop-side logic ──────────────────────────────────────────────────────────

func (c *Controller) markLoaded(st session.State) {
	c.mu.Lock()
	c.loaded[st] = true
	// A success report supersedes the provisional failed mark stamped by
	// the readiness deadline.
	wasFailed := c.failed[st]
	delete(c.failed, st)
	c.mu.Unlock()
	slog.Debug("video: clip loaded", "state", st)
	c.updateReady()
	if wasFailed {
		c.refresh()
	}
	// A clip that finished loading while its state is already on screen
	// starts late; the earlier Play was a no-op.
	if st == c.Effective() {
		c.clips[st].Play()
	}
}

func (c *Controller) markFailed(st session.State, reason media.FailReason) {
	c.mu.Lock()
	c.loaded[st] = true
	c.failed[st] = true
	c.mu.Unlock()
	slog.Warn("video: clip failed to load", "state", st, "reason", reason)
	if c.metrics != nil {
		c.metrics.RecordClipLoadFailure(context.Background(), string(st), string(reason))
	}
	c.updateReady()
	c.refresh()
}

// forceReady treats every clip that has not reported by the deadline as
// failed, so the conversation can begin regardless.
func (c *Controller) forceReady() {
	var pending []session.State
	c.mu.Lock()
	for _, st := range session.All() {
		if !c.loaded[st] {
			c.loaded[st] = true
			c.failed[st] = true
			pending = append(pending, st)
		}
	}
	c.mu.Unlock()
	if len(pending) > 0 {
		slog.Warn("video: load timeout, treating pending clips as failed", "states", pending)
	}
	c.updateReady()
	c.refresh()
}

func (c *Controller) updateReady() {
	c.mu.Lock()
	wasReady := c.ready
	c.ready = len(c.loaded) >= len(session.All())
	nowReady := c.ready
	c.mu.Unlock()

	if nowReady && !wasReady {
		slog.Info("video: clip library ready", "failed", len(c.FailedStates()))
		if c.readyTimer != nil {
			c.readyTimer.Cancel()
			c.readyTimer = nil
		}
	}
}

// refresh recomputes the effective state and enforces playback exclusivity:
// the effective state's clip plays, every other clip is paused and rewound.
func (c *Controller) refresh() {
	nominal := c.sess.State()

	c.mu.Lock()
	failed := make(map[session.State]bool, len(c.failed))
	for st := range c.failed {
		failed[st] = true
	}
	prev := c.effective
	c.mu.Unlock()

	effective, cycled := Resolve(nominal, failed, c.chain)
	if cycled {
		slog.Warn("video: fallback chain cycle, resolving to idle", "state", nominal)
		if c.metrics != nil {
			c.metrics.RecordFallbackCycle(context.Background())
		}
	}
	if effective != nominal {
		slog.Debug("video: state degraded by fallback", "state", nominal, "effective", effective)
		if c.metrics != nil {
			c.metrics.RecordFallbackResolution(context.Background(), string(nominal), string(effective))
		}
	}

	c.mu.Lock()
	c.effective = effective
	first := !c.shown
	c.shown = true
	c.mu.Unlock()

	if effective != prev || first {
		for st, clip := range c.clips {
			if st != effective {
				clip.Pause()
				clip.Rewind()
			}
		}
		if clip, ok := c.clips[effective]; ok {
			clip.Play()
		}
		if c.metrics != nil {
			c.metrics.RecordStateShown(context.Background(), string(effective))
		}
	}

	// Speaking derives from the clip actually on screen, not the nominal
	// state. A weather request degraded to the silent listening clip must
	// not mute the microphone.
	c.sess.SetCharacterSpeaking(effective.Speaking())
}

// onEnded applies the end-of-playback transition table. Signals from clips
// other than the one on screen, and from the looping states, are ignored.
func (c *Controller) onEnded(st session.State) {
	if st != c.Effective() {
		return
	}

	if st == session.StateGoodbye {
		slog.Debug("video: goodbye finished, scheduling reset")
		c.graceTimer.Cancel()
		c.graceTimer = c.lp.Schedule(c.grace, func() {
			c.graceTimer = nil
			c.sess.Reset()
			if c.metrics != nil {
				c.metrics.RecordSessionReset(context.Background())
			}
		})
		return
	}

	next, ok := endTransitions[st]
	if !ok {
		return
	}
	slog.Debug("video: clip ended", "state", st, "next", next)
	c.sess.SetState(next)
}
