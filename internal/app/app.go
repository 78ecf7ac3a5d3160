// Package app wires all visage subsystems into a running conversation
// engine.
//
// The App struct owns the full lifecycle: New creates the session store, the
// event loop and both controllers and kicks off the clip preload, Run blocks
// until the surrounding context ends, and Shutdown tears everything down in
// order.
//
// For testing, inject mock engines and clips through [Providers]; the app
// never constructs a real backend itself — main does, via the config
// registry.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/visagelabs/visage/internal/config"
	"github.com/visagelabs/visage/internal/loop"
	"github.com/visagelabs/visage/internal/observe"
	"github.com/visagelabs/visage/internal/session"
	"github.com/visagelabs/visage/internal/speech"
	"github.com/visagelabs/visage/internal/video"
	"github.com/visagelabs/visage/pkg/media"
	"github.com/visagelabs/visage/pkg/recog"
)

// Providers holds the external collaborators the app arbitrates between.
// Populated by main from the config (engine registry, clip manifest) or by
// tests with mocks.
type Providers struct {
	// Engine is the speech recognition backend. Required.
	Engine recog.Engine

	// Clips maps each conversational state to its clip. States without an
	// entry degrade through the fallback chain.
	Clips map[session.State]media.Clip
}

// App owns the session, the event loop and the two controllers.
type App struct {
	cfg       *config.Config
	providers *Providers

	sess   *session.Session
	lp     *loop.Loop
	video  *video.Controller
	speech *speech.Controller

	metrics  *observe.Metrics
	levelVar *slog.LevelVar

	preload *errgroup.Group

	// closers are called in order during Shutdown.
	closers []func()

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject ambient
// collaborators.
type Option func(*App)

// WithMetrics attaches the metrics instruments to both controllers.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar hands the app the level knob of the process logger so a
// config reload can retune verbosity.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = v }
}

// New wires the subsystems together and starts preloading the clip library.
// Preloading runs concurrently in the background; the video controller's
// readiness gate (and its load timeout) covers clips that are slow or never
// report.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Engine == nil {
		return nil, errors.New("app: a recognition engine is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		sess:      session.New(),
		lp:        loop.New(),
	}
	for _, o := range opts {
		o(a)
	}

	// Controller construction order matters: the video controller must
	// observe the session before the speech controller so the speaking flag
	// it derives is already settled when the mic arbitration runs.
	a.video = video.New(video.Config{
		Session:      a.sess,
		Loop:         a.lp,
		Clips:        providers.Clips,
		Fallbacks:    cfg.ResolvedFallbacks(),
		LoadTimeout:  cfg.Timing.LoadTimeout(),
		GoodbyeGrace: cfg.Timing.GoodbyeGrace(),
		Metrics:      a.metrics,
	})

	a.speech = speech.New(speech.Config{
		Session:        a.sess,
		Loop:           a.lp,
		Engine:         providers.Engine,
		Classifier:     classifierFromConfig(cfg.Conversation),
		EligibleStates: eligibleFromConfig(cfg.Conversation.EligibleStates),
		Cooldown:       cfg.Timing.RestartCooldown(),
		SilenceTimeout: cfg.Timing.SilenceTimeout(),
		RestartDelay:   cfg.Timing.RestartDelay(),
		ApologyReply:   cfg.Conversation.ApologyReply,
		SilencePrompt:  cfg.Conversation.SilencePrompt,
		Metrics:        a.metrics,
	})

	a.closers = append(a.closers,
		a.speech.Close,
		a.video.Close,
		a.lp.Stop,
	)

	a.startPreload(ctx)

	return a, nil
}

// startPreload loads every clip concurrently. A failed load is not an app
// error; the clip reports its failure and the fallback chain routes around
// the state.
func (a *App) startPreload(ctx context.Context) {
	g := &errgroup.Group{}
	for st, clip := range a.providers.Clips {
		st, clip := st, clip
		g.Go(func() error {
			if err := clip.Load(ctx); err != nil {
				slog.Warn("clip preload failed", "state", st, "err", err)
			}
			return nil
		})
	}
	a.preload = g
}

// ── conversation lifecycle ───────────────────────────────────────────────────

// StartConversation activates the session; the character greets and the
// controllers take it from there.
func (a *App) StartConversation() {
	slog.Info("conversation starting")
	a.sess.StartSession()
}

// EndConversation deactivates the session. The goodbye clip plays out and
// the session resets on its own.
func (a *App) EndConversation() {
	slog.Info("conversation ending")
	a.sess.EndSession()
}

// Session exposes the shared store for callers that want to observe it.
func (a *App) Session() *session.Session {
	return a.sess
}

// Ready reports whether the clip library has finished loading.
func (a *App) Ready() bool {
	return a.video.Ready()
}

// ReadyCheck is the readiness probe wired into /readyz.
func (a *App) ReadyCheck(ctx context.Context) error {
	return a.video.ReadyCheck(ctx)
}

// ── snapshot ─────────────────────────────────────────────────────────────────

// Snapshot is the read-only projection a UI renders from: the conversation
// as the session records it plus the video controller's view of the screen.
type Snapshot struct {
	State        session.State
	Effective    session.State
	Active       bool
	Listening    bool
	Speaking     bool
	Ready        bool
	ClipsLoaded  int
	ClipsTotal   int
	FailedStates []session.State
	Transcript   []session.Entry
}

// Snapshot captures a consistent view of the conversation.
func (a *App) Snapshot() Snapshot {
	ss := a.sess.Snapshot()
	loaded, total := a.video.Progress()
	return Snapshot{
		State:        ss.State,
		Effective:    a.video.Effective(),
		Active:       ss.Active,
		Listening:    ss.Listening,
		Speaking:     ss.CharacterSpeaking,
		Ready:        a.video.Ready(),
		ClipsLoaded:  loaded,
		ClipsTotal:   total,
		FailedStates: a.video.FailedStates(),
		Transcript:   ss.Transcript,
	}
}

// ── hot reload ───────────────────────────────────────────────────────────────

// ApplyConfig applies a reloaded config to the running app. Only the
// hot-reloadable surface moves: log level, conversation policy and the
// wall-clock knobs. Engine selection and the clip manifest need a restart.
func (a *App) ApplyConfig(d config.ConfigDiff, cfg *config.Config) {
	if d.Empty() {
		return
	}

	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.ConversationChanged {
		a.speech.UpdatePolicy(
			classifierFromConfig(cfg.Conversation),
			cfg.Conversation.ApologyReply,
			cfg.Conversation.SilencePrompt,
			eligibleFromConfig(cfg.Conversation.EligibleStates),
		)
		slog.Info("conversation policy reloaded", "rules", len(cfg.Conversation.Rules))
	}

	if d.TimingChanged {
		a.speech.UpdateTimings(
			cfg.Timing.RestartCooldown(),
			cfg.Timing.SilenceTimeout(),
			cfg.Timing.RestartDelay(),
		)
		a.video.UpdateGoodbyeGrace(cfg.Timing.GoodbyeGrace())
		slog.Info("timing knobs reloaded")
	}

	a.cfg = cfg
}

// ── run / shutdown ───────────────────────────────────────────────────────────

// Run blocks until ctx is cancelled. The controllers do all the work; Run
// only holds the process open and reports why it returned.
func (a *App) Run(ctx context.Context) error {
	slog.Info("app running",
		"clips", len(a.providers.Clips),
		"ready", a.video.Ready(),
	)
	<-ctx.Done()
	return ctx.Err()
}

// Shutdown tears the subsystems down in order: microphone off first, screen
// second, loop last. It respects the context deadline; remaining closers are
// skipped when it expires.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		_ = a.preload.Wait()
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			closer()
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ── config conversion helpers ────────────────────────────────────────────────

// classifierFromConfig builds the classifier from the conversation section.
// An empty rule table means the built-in one.
func classifierFromConfig(cc config.ConversationConfig) *speech.Classifier {
	var rules []speech.Rule
	for _, r := range cc.Rules {
		rules = append(rules, speech.Rule{
			State:    session.State(r.State),
			Keywords: r.Keywords,
			Reply:    r.Reply,
		})
	}
	return speech.NewClassifier(rules, cc.DefaultReply)
}

// eligibleFromConfig converts the configured state names. Empty means the
// built-in set.
func eligibleFromConfig(names []string) []session.State {
	var out []session.State
	for _, n := range names {
		out = append(out, session.State(n))
	}
	return out
}

// slogLevel maps the config level to slog's.
func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
