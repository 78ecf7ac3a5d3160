// Command visage runs a simulated video conversation against the configured
// recognition engine, printing the transcript as it grows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/visagelabs/visage/internal/app"
	"github.com/visagelabs/visage/internal/config"
	"github.com/visagelabs/visage/internal/health"
	"github.com/visagelabs/visage/internal/observe"
	"github.com/visagelabs/visage/internal/session"
	"github.com/visagelabs/visage/pkg/media"
	"github.com/visagelabs/visage/pkg/media/sim"
	"github.com/visagelabs/visage/pkg/recog"
	"github.com/visagelabs/visage/pkg/recog/script"
	"github.com/visagelabs/visage/pkg/recog/sidecar"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	stay := flag.Bool("stay", false, "keep running after the conversation ends instead of exiting")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "visage: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "visage: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, level := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("visage starting",
		"version", version,
		"config", *configPath,
		"engine", cfg.Recognition.Engine,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "visage",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Engine + clips ────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinEngines(reg)

	engine, err := reg.CreateEngine(cfg.Recognition)
	if err != nil {
		slog.Error("failed to create recognition engine", "err", err)
		return 1
	}
	clips := buildClips(cfg.Media)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, &app.Providers{Engine: engine, Clips: clips},
		app.WithMetrics(metrics),
		app.WithLogLevelVar(level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Debug listener (optional) ─────────────────────────────────────────────
	if cfg.Server.DebugAddr != "" {
		srv := newDebugServer(cfg.Server.DebugAddr, application, metrics)
		go func() {
			slog.Info("debug listener started", "addr", cfg.Server.DebugAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("debug listener error", "err", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		application.ApplyConfig(config.Diff(old, new), new)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Transcript printer + conversation lifecycle ───────────────────────────
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	printer := &transcriptPrinter{sess: application.Session()}
	ender := &conversationEnder{sess: application.Session()}
	if !*stay {
		ender.onEnd = cancel
	}
	application.Session().Subscribe(printer.flush)
	application.Session().Subscribe(ender.check)

	go func() {
		waitReady(runCtx, application)
		if runCtx.Err() != nil {
			return
		}
		application.StartConversation()
	}()

	slog.Info("visage ready — press Ctrl+C to shut down")

	if err := application.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Engine wiring ─────────────────────────────────────────────────────────────

// registerBuiltinEngines wires the engines that ship with visage into reg.
func registerBuiltinEngines(reg *config.Registry) {
	reg.RegisterEngine(config.EngineScript, func(rc config.RecognitionConfig) (recog.Engine, error) {
		lines := make([]script.Line, 0, len(rc.Script))
		for _, l := range rc.Script {
			lines = append(lines, script.Line{Text: l.Text, Delay: l.Delay()})
		}
		return script.New(lines), nil
	})

	reg.RegisterEngine(config.EngineSidecar, func(rc config.RecognitionConfig) (recog.Engine, error) {
		var opts []sidecar.Option
		if rc.Locale != "" {
			opts = append(opts, sidecar.WithLocale(rc.Locale))
		}
		return sidecar.New(rc.SidecarURL, opts...)
	})
}

// buildClips constructs the simulated clip library from the media manifest.
func buildClips(mc config.MediaConfig) map[session.State]media.Clip {
	clips := make(map[session.State]media.Clip, len(mc.Clips))
	for name, cc := range mc.Clips {
		var opts []sim.Option
		if cc.DurationMs > 0 {
			opts = append(opts, sim.WithDuration(cc.Duration()))
		}
		if cc.Loop {
			opts = append(opts, sim.WithLoop())
		}
		if cc.Muted {
			opts = append(opts, sim.WithMuted())
		}
		clips[session.State(name)] = sim.New(filepath.Join(mc.Dir, cc.File), opts...)
	}
	return clips
}

// ── Debug listener ────────────────────────────────────────────────────────────

func newDebugServer(addr string, application *app.App, metrics *observe.Metrics) *http.Server {
	mux := http.NewServeMux()
	health.New(health.Checker{Name: "media", Check: application.ReadyCheck}).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:    addr,
		Handler: observe.Middleware(metrics)(mux),
	}
}

// ── Conversation plumbing ─────────────────────────────────────────────────────

// waitReady blocks until the clip library is ready or ctx ends.
func waitReady(ctx context.Context, application *app.App) {
	for !application.Ready() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// transcriptPrinter prints transcript entries as they are appended. Observers
// run on whatever goroutine mutated the session, so the cursor is guarded.
type transcriptPrinter struct {
	mu      sync.Mutex
	sess    *session.Session
	printed int
}

func (p *transcriptPrinter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	tr := p.sess.Transcript()
	for ; p.printed < len(tr); p.printed++ {
		e := tr[p.printed]
		fmt.Printf("  [%s] %s\n", e.Speaker, e.Text)
	}
	if len(tr) == 0 {
		p.printed = 0
	}
}

// conversationEnder fires onEnd once, when a conversation that was active
// has wound all the way down to the pristine idle session.
type conversationEnder struct {
	mu        sync.Mutex
	sess      *session.Session
	sawActive bool
	fired     bool
	onEnd     func()
}

func (c *conversationEnder) check() {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.sess.Snapshot()
	if snap.Active {
		c.sawActive = true
		return
	}
	if c.sawActive && !c.fired && snap.State == session.StateIdle {
		c.fired = true
		slog.Info("conversation finished")
		if c.onEnd != nil {
			c.onEnd()
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          visage — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	engine := string(cfg.Recognition.Engine)
	if engine == "" {
		engine = string(config.EngineScript)
	}
	printRow("Engine", engine)
	if cfg.Recognition.Locale != "" {
		printRow("Locale", cfg.Recognition.Locale)
	}
	if cfg.Recognition.Engine == config.EngineScript {
		printRow("Script lines", fmt.Sprintf("%d", len(cfg.Recognition.Script)))
	}
	printRow("Clips", fmt.Sprintf("%d configured", len(cfg.Media.Clips)))
	printRow("Rules", fmt.Sprintf("%d keyword rules", len(cfg.Conversation.Rules)))
	if cfg.Server.DebugAddr != "" {
		printRow("Debug addr", cfg.Server.DebugAddr)
	} else {
		printRow("Debug addr", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(key, value string) {
	fmt.Printf("║  %-14s  : %-19s ║\n", key, truncate(value, 19))
}

// truncate shortens s to at most max runes, marking the cut with an
// ellipsis. Config-sourced values may not be ASCII, so the cut must land on
// a rune boundary.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "…"
}

// ── Logger ────────────────────────────────────────────────────────────────────

// newLogger builds the process logger with a runtime-adjustable level so a
// config reload can retune verbosity.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := &slog.LevelVar{}
	switch level {
	case config.LogDebug:
		lvl.Set(slog.LevelDebug)
	case config.LogWarn:
		lvl.Set(slog.LevelWarn)
	case config.LogError:
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}
