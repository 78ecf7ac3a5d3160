package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/visagelabs/visage/internal/session"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Timing — zero means "use the default", negative is always a mistake.
	for _, tc := range []struct {
		name string
		ms   int
	}{
		{"timing.restart_cooldown_ms", cfg.Timing.RestartCooldownMs},
		{"timing.silence_timeout_ms", cfg.Timing.SilenceTimeoutMs},
		{"timing.restart_delay_ms", cfg.Timing.RestartDelayMs},
		{"timing.load_timeout_ms", cfg.Timing.LoadTimeoutMs},
		{"timing.goodbye_grace_ms", cfg.Timing.GoodbyeGraceMs},
	} {
		if tc.ms < 0 {
			errs = append(errs, fmt.Errorf("%s is negative (%d)", tc.name, tc.ms))
		}
	}

	// Recognition
	if cfg.Recognition.Engine != "" && !cfg.Recognition.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("recognition.engine %q is invalid; valid values: script, sidecar", cfg.Recognition.Engine))
	}
	if cfg.Recognition.Engine == EngineSidecar && cfg.Recognition.SidecarURL == "" {
		errs = append(errs, errors.New("recognition.sidecar_url is required when recognition.engine is sidecar"))
	}
	if cfg.Recognition.Engine == EngineScript && len(cfg.Recognition.Script) == 0 {
		slog.Warn("recognition.script is empty; the script engine will never deliver an utterance")
	}
	for i, line := range cfg.Recognition.Script {
		if line.Text == "" {
			errs = append(errs, fmt.Errorf("recognition.script[%d].text is required", i))
		}
		if line.DelayMs < 0 {
			errs = append(errs, fmt.Errorf("recognition.script[%d].delay_ms is negative (%d)", i, line.DelayMs))
		}
	}

	// Media
	for name, clip := range cfg.Media.Clips {
		if !session.State(name).IsValid() {
			errs = append(errs, fmt.Errorf("media.clips.%s: unknown state; valid states: %s", name, stateNames()))
			continue
		}
		if clip.File == "" {
			errs = append(errs, fmt.Errorf("media.clips.%s.file is required", name))
		}
		if !clip.Loop && clip.DurationMs <= 0 {
			errs = append(errs, fmt.Errorf("media.clips.%s.duration_ms must be positive for non-looping clips", name))
		}
	}

	// Fallbacks — both endpoints must be real states and the merged chain
	// must terminate from every state. A cycle here would otherwise only
	// surface as a degraded conversation at runtime.
	for from, to := range cfg.Fallbacks {
		if !session.State(from).IsValid() {
			errs = append(errs, fmt.Errorf("fallbacks.%s: unknown state; valid states: %s", from, stateNames()))
		}
		if !session.State(to).IsValid() {
			errs = append(errs, fmt.Errorf("fallbacks.%s: unknown target state %q; valid states: %s", from, to, stateNames()))
		}
	}
	errs = append(errs, validateChainTermination(cfg.ResolvedFallbacks())...)

	// Conversation
	for i, rule := range cfg.Conversation.Rules {
		prefix := fmt.Sprintf("conversation.rules[%d]", i)
		if !session.State(rule.State).IsValid() {
			errs = append(errs, fmt.Errorf("%s.state %q is unknown; valid states: %s", prefix, rule.State, stateNames()))
		}
		if len(rule.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("%s.keywords must list at least one keyword", prefix))
		}
		for j, kw := range rule.Keywords {
			if kw == "" {
				errs = append(errs, fmt.Errorf("%s.keywords[%d] is empty", prefix, j))
			}
		}
	}
	for i, name := range cfg.Conversation.EligibleStates {
		if !session.State(name).IsValid() {
			errs = append(errs, fmt.Errorf("conversation.eligible_states[%d] %q is unknown; valid states: %s", i, name, stateNames()))
		}
	}

	return errors.Join(errs...)
}

// validateChainTermination walks the fallback chain from every defined state
// and reports the states from which the chain loops forever instead of
// reaching a terminal (a state with no fallback entry).
func validateChainTermination(chain map[session.State]session.State) []error {
	var errs []error
	for _, start := range session.All() {
		visited := map[session.State]bool{}
		cur := start
		for {
			next, ok := chain[cur]
			if !ok {
				break // terminal, chain ends here
			}
			if visited[cur] {
				errs = append(errs, fmt.Errorf("fallbacks: chain from state %q cycles at %q and never terminates", start, cur))
				break
			}
			visited[cur] = true
			cur = next
		}
	}
	return errs
}

// stateNames renders the defined states for error messages.
func stateNames() string {
	out := ""
	for i, s := range session.All() {
		if i > 0 {
			out += ", "
		}
		out += string(s)
	}
	return out
}
