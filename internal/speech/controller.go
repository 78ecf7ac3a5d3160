package speech

import (
	"context"
	"log/slog"
	"time"

	"github.com/visagelabs/visage/internal/loop"
	"github.com/visagelabs/visage/internal/observe"
	"github.com/visagelabs/visage/internal/session"
	"github.com/visagelabs/visage/pkg/recog"
)

// Defaults for the wall-clock knobs. All of them are tunable policy, not
// contract; see [Config].
const (
	// DefaultCooldown is the debounce before honoring a start request, so a
	// character that starts speaking a beat later does not race the mic on.
	DefaultCooldown = 300 * time.Millisecond

	// DefaultSilenceTimeout is how long recognition may run without a
	// result before the character nudges the user.
	DefaultSilenceTimeout = 8 * time.Second

	// DefaultRestartDelay separates an attempt's end callback from the next
	// start; some engines misbehave when restarted from inside their own
	// end callback.
	DefaultRestartDelay = 250 * time.Millisecond
)

// Default character lines for the two controller-originated transcript
// entries.
const (
	DefaultApologyReply  = "Sorry, I didn't quite catch that."
	DefaultSilencePrompt = "Are you still there?"
)

// DefaultEligibleStates returns the states in which the microphone may be
// armed. Greeting and goodbye are excluded on purpose: the character always
// speaks through them, so the speaking guard would veto the mic anyway.
func DefaultEligibleStates() []session.State {
	return []session.State{
		session.StateListening,
		session.StatePrompt,
		session.StateResponse,
		session.StateWeather,
		session.StateFallback,
	}
}

// Eligible is the listening eligibility predicate: may the microphone be
// active given the current conversation? It is a pure function of its
// inputs; the controller re-evaluates it fresh at every decision point,
// including when a previously armed timer fires.
func Eligible(state session.State, active, characterSpeaking bool, allowed map[session.State]bool) bool {
	return active && !characterSpeaking && allowed[state]
}

// phase is the recognition attempt lifecycle as the controller tracks it.
type phase int

const (
	phaseStopped phase = iota
	phaseStarting
	phaseRunning
	phaseStopping
)

func (p phase) String() string {
	switch p {
	case phaseStarting:
		return "starting"
	case phaseRunning:
		return "running"
	case phaseStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// Config carries the dependencies and tuning for [New]. Session, Loop and
// Engine are required; everything else has a default.
type Config struct {
	Session *session.Session
	Loop    *loop.Loop
	Engine  recog.Engine

	// Classifier maps utterances to states and replies. Nil means the
	// built-in table.
	Classifier *Classifier

	// EligibleStates overrides [DefaultEligibleStates] when non-empty.
	EligibleStates []session.State

	// Cooldown, SilenceTimeout and RestartDelay override the default
	// timings when positive.
	Cooldown       time.Duration
	SilenceTimeout time.Duration
	RestartDelay   time.Duration

	// ApologyReply and SilencePrompt override the default character lines
	// when non-empty.
	ApologyReply  string
	SilencePrompt string

	// Metrics is optional; nil disables instrumentation.
	Metrics *observe.Metrics
}

// Controller drives the recognition engine from the conversation state.
//
// It owns three timers — the start cooldown, the silence nudge and the
// restart delay — and guarantees none of them fires an effect after the
// session goes inactive. All decisions run on the event loop; the engine's
// callbacks are posted there on arrival, so the controller itself needs no
// locking.
type Controller struct {
	sess    *session.Session
	loop    *loop.Loop
	engine  recog.Engine
	metrics *observe.Metrics

	// Policy, swapped as a whole on hot reload. Loop-confined.
	classifier    *Classifier
	allowed       map[session.State]bool
	apologyReply  string
	silencePrompt string

	cooldown       time.Duration
	silenceTimeout time.Duration
	restartDelay   time.Duration

	// Loop-confined attempt state.
	phase         phase
	closed        bool
	cooldownTimer *loop.Timer
	silenceTimer  *loop.Timer
	restartTimer  *loop.Timer
}

// New creates the controller and subscribes it to the session. From that
// point on every session change re-runs the start/stop arbitration.
func New(cfg Config) *Controller {
	c := &Controller{
		sess:           cfg.Session,
		loop:           cfg.Loop,
		engine:         cfg.Engine,
		metrics:        cfg.Metrics,
		classifier:     cfg.Classifier,
		apologyReply:   cfg.ApologyReply,
		silencePrompt:  cfg.SilencePrompt,
		cooldown:       cfg.Cooldown,
		silenceTimeout: cfg.SilenceTimeout,
		restartDelay:   cfg.RestartDelay,
	}
	if c.classifier == nil {
		c.classifier = NewClassifier(nil, "")
	}
	if c.apologyReply == "" {
		c.apologyReply = DefaultApologyReply
	}
	if c.silencePrompt == "" {
		c.silencePrompt = DefaultSilencePrompt
	}
	if c.cooldown <= 0 {
		c.cooldown = DefaultCooldown
	}
	if c.silenceTimeout <= 0 {
		c.silenceTimeout = DefaultSilenceTimeout
	}
	if c.restartDelay <= 0 {
		c.restartDelay = DefaultRestartDelay
	}
	states := cfg.EligibleStates
	if len(states) == 0 {
		states = DefaultEligibleStates()
	}
	c.allowed = make(map[session.State]bool, len(states))
	for _, s := range states {
		c.allowed[s] = true
	}

	c.engine.Subscribe(recog.Events{
		OnResult: func(text string) { c.loop.Post(func() { c.onResult(text) }) },
		OnError:  func(err error) { c.loop.Post(func() { c.onError(err) }) },
		OnEnd:    func() { c.loop.Post(c.onEnd) },
	})
	c.sess.Subscribe(func() { c.loop.Post(c.arbitrate) })

	return c
}

// UpdatePolicy swaps the classifier, the character lines and the eligible
// set at runtime. Nil or empty arguments keep the current value. The swap
// runs on the loop, so an utterance is classified either fully under the
// old policy or fully under the new one.
func (c *Controller) UpdatePolicy(classifier *Classifier, apologyReply, silencePrompt string, eligible []session.State) {
	c.loop.Post(func() {
		if classifier != nil {
			c.classifier = classifier
		}
		if apologyReply != "" {
			c.apologyReply = apologyReply
		}
		if silencePrompt != "" {
			c.silencePrompt = silencePrompt
		}
		if len(eligible) > 0 {
			allowed := make(map[session.State]bool, len(eligible))
			for _, s := range eligible {
				allowed[s] = true
			}
			c.allowed = allowed
		}
		c.arbitrate()
	})
}

// UpdateTimings swaps the wall-clock knobs at runtime. Non-positive
// arguments keep the current value. Timers already armed keep the duration
// they were armed with.
func (c *Controller) UpdateTimings(cooldown, silenceTimeout, restartDelay time.Duration) {
	c.loop.Post(func() {
		if cooldown > 0 {
			c.cooldown = cooldown
		}
		if silenceTimeout > 0 {
			c.silenceTimeout = silenceTimeout
		}
		if restartDelay > 0 {
			c.restartDelay = restartDelay
		}
	})
}

// Close tears the controller down: all timers cancelled, the engine stopped
// if an attempt is in flight. The controller is inert afterwards; the
// engine's trailing end callback does not schedule a restart. Posted onto
// the loop; safe to call from any goroutine and more than once.
func (c *Controller) Close() {
	c.loop.Post(func() {
		c.closed = true
		c.cancelAllTimers()
		if c.phase == phaseRunning || c.phase == phaseStarting {
			c.stop()
		}
	})
}

// eligibleNow re-reads the live session. Never cache its result across a
// timer boundary.
func (c *Controller) eligibleNow() bool {
	return Eligible(c.sess.State(), c.sess.Active(), c.sess.CharacterSpeaking(), c.allowed)
}

// arbitrate is the start/stop decision, re-run after every session change.
// Starts are damped by the cooldown; stops are immediate so the mic never
// lingers on while the character speaks.
func (c *Controller) arbitrate() {
	if c.closed {
		return
	}
	if !c.sess.Active() {
		// Session teardown: nothing may fire after this point.
		c.cancelAllTimers()
		if c.phase == phaseRunning || c.phase == phaseStarting {
			c.stop()
		}
		return
	}

	if c.eligibleNow() {
		if c.phase == phaseStopped && c.cooldownTimer == nil && c.restartTimer == nil {
			c.cooldownTimer = c.loop.Schedule(c.cooldown, func() {
				c.cooldownTimer = nil
				// Conditions may have changed during the cooldown window;
				// what counts is eligibility now.
				if c.eligibleNow() && c.phase == phaseStopped {
					c.start()
				}
			})
		}
		return
	}

	c.cooldownTimer.Cancel()
	c.cooldownTimer = nil
	c.restartTimer.Cancel()
	c.restartTimer = nil
	if c.phase == phaseRunning || c.phase == phaseStarting {
		c.stop()
	}
}

// start begins one recognition attempt. No-op unless stopped.
func (c *Controller) start() {
	if c.phase != phaseStopped {
		return
	}
	c.phase = phaseStarting

	if err := c.engine.Start(); err != nil {
		slog.Warn("speech: recognition start failed", "err", err)
		c.phase = phaseStopped
		c.sess.SetListening(false)
		c.silenceTimer.Cancel()
		c.silenceTimer = nil
		if c.metrics != nil {
			c.metrics.RecordRecognition(context.Background(), "start_failed")
		}
		return
	}

	c.phase = phaseRunning
	c.sess.SetListening(true)
	c.armSilenceTimer()
	slog.Debug("speech: recognition started")
	if c.metrics != nil {
		c.metrics.RecordRecognition(context.Background(), "started")
	}
}

// stop aborts the in-flight attempt. No-op when nothing runs; a second stop
// changes no flags.
func (c *Controller) stop() {
	if c.phase != phaseRunning && c.phase != phaseStarting {
		return
	}
	c.phase = phaseStopping
	c.engine.Stop()
	c.phase = phaseStopped
	c.sess.SetListening(false)
	c.silenceTimer.Cancel()
	c.silenceTimer = nil
	c.restartTimer.Cancel()
	c.restartTimer = nil
	slog.Debug("speech: recognition stopped")
	if c.metrics != nil {
		c.metrics.RecordRecognition(context.Background(), "stopped")
	}
}

// onResult handles a recognized utterance: log it, classify it, answer it.
func (c *Controller) onResult(text string) {
	if c.closed {
		return
	}
	ctx, span := observe.StartSpan(context.Background(), "speech.utterance")
	defer span.End()

	c.sess.AppendTranscript(session.SpeakerUser, text)
	state, reply := c.classifier.Classify(text)
	span.SetAttributes(observe.Attr("state", string(state)))
	observe.Logger(ctx).Debug("speech: utterance classified", "state", state)

	c.sess.SetState(state)
	c.sess.AppendTranscript(session.SpeakerCharacter, reply)
	if c.metrics != nil {
		c.metrics.RecordUtterance(ctx, string(state))
	}

	// A fresh utterance restarts the silence window, but only while the
	// mic is still supposed to be on.
	if c.eligibleNow() && c.phase == phaseRunning {
		c.armSilenceTimer()
	}
}

// onError routes a mid-attempt failure into the conversation instead of
// letting it die silently: the character apologises and the state machine
// moves to fallback.
func (c *Controller) onError(err error) {
	if c.closed {
		return
	}
	slog.Warn("speech: recognition error", "err", err)
	c.phase = phaseStopped
	c.sess.SetListening(false)
	c.silenceTimer.Cancel()
	c.silenceTimer = nil
	if c.metrics != nil {
		c.metrics.RecordRecognition(context.Background(), "error")
	}

	if !c.sess.Active() {
		return
	}
	c.sess.SetState(session.StateFallback)
	c.sess.AppendTranscript(session.SpeakerCharacter, c.apologyReply)
}

// onEnd fires when an attempt finishes for any reason, including a natural
// single-utterance completion. If listening is still wanted, the next
// attempt is armed after a short delay rather than synchronously.
func (c *Controller) onEnd() {
	c.phase = phaseStopped
	c.sess.SetListening(false)
	c.silenceTimer.Cancel()
	c.silenceTimer = nil
	c.restartTimer.Cancel()
	c.restartTimer = nil

	if c.closed || !c.eligibleNow() {
		return
	}
	c.restartTimer = c.loop.Schedule(c.restartDelay, func() {
		c.restartTimer = nil
		if c.eligibleNow() && c.phase == phaseStopped {
			c.start()
		}
	})
}

// armSilenceTimer (re)starts the silence window. On expiry the character
// prompts the user; recognition itself keeps running.
func (c *Controller) armSilenceTimer() {
	c.silenceTimer.Cancel()
	c.silenceTimer = c.loop.Schedule(c.silenceTimeout, func() {
		c.silenceTimer = nil
		if !c.sess.Active() || c.phase != phaseRunning {
			return
		}
		slog.Debug("speech: silence timeout, prompting")
		c.sess.SetState(session.StatePrompt)
		c.sess.AppendTranscript(session.SpeakerCharacter, c.silencePrompt)
		if c.metrics != nil {
			c.metrics.RecordSilencePrompt(context.Background())
		}
	})
}

// cancelAllTimers drops every pending suspension in one place so teardown
// is a single provable operation.
func (c *Controller) cancelAllTimers() {
	c.cooldownTimer.Cancel()
	c.cooldownTimer = nil
	c.silenceTimer.Cancel()
	c.silenceTimer = nil
	c.restartTimer.Cancel()
	c.restartTimer = nil
}
