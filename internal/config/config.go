// Package config provides the configuration schema and loader for the
// visage conversation engine.
package config

import (
	"time"

	"github.com/visagelabs/visage/internal/session"
)

// LogLevel controls log verbosity for the visage process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// EngineKind selects the speech recognition backend.
type EngineKind string

const (
	// EngineScript replays utterances from the configured script. Used by
	// the demo and anywhere no microphone is available.
	EngineScript EngineKind = "script"

	// EngineSidecar streams against a local recognition sidecar over a
	// websocket.
	EngineSidecar EngineKind = "sidecar"
)

// IsValid reports whether e is a recognised engine kind.
func (e EngineKind) IsValid() bool {
	return e == EngineScript || e == EngineSidecar
}

// Config is the root configuration structure for visage.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Timing       TimingConfig       `yaml:"timing"`
	Recognition  RecognitionConfig  `yaml:"recognition"`
	Media        MediaConfig        `yaml:"media"`
	Conversation ConversationConfig `yaml:"conversation"`

	// Fallbacks overrides entries of the default fallback chain, keyed by
	// state name. A state whose clip failed to load is substituted by its
	// fallback, transitively, until a loadable state is found.
	Fallbacks map[string]string `yaml:"fallbacks"`
}

// ServerConfig holds logging and diagnostics settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// DebugAddr is the TCP address for the diagnostics listener serving
	// /healthz, /readyz and /metrics (e.g., "127.0.0.1:6600"). Empty
	// disables the listener.
	DebugAddr string `yaml:"debug_addr"`
}

// TimingConfig holds the wall-clock knobs of the conversation, all in
// milliseconds. Zero values mean "use the built-in default"; the defaults
// are applied by the component consuming each value.
type TimingConfig struct {
	// RestartCooldownMs is the pause between the microphone becoming
	// eligible and recognition actually starting. Stops run immediately;
	// only starts are damped.
	RestartCooldownMs int `yaml:"restart_cooldown_ms"`

	// SilenceTimeoutMs is how long recognition may run without a result
	// before the character nudges the user.
	SilenceTimeoutMs int `yaml:"silence_timeout_ms"`

	// RestartDelayMs is the pause before re-arming recognition after an
	// attempt ended on its own.
	RestartDelayMs int `yaml:"restart_delay_ms"`

	// LoadTimeoutMs bounds the media preload; when it expires, states whose
	// clips are still pending are treated as failed so the conversation can
	// begin regardless.
	LoadTimeoutMs int `yaml:"load_timeout_ms"`

	// GoodbyeGraceMs is the hold on the goodbye clip's last frame before
	// the session resets to idle.
	GoodbyeGraceMs int `yaml:"goodbye_grace_ms"`
}

// RestartCooldown returns RestartCooldownMs as a [time.Duration].
func (t TimingConfig) RestartCooldown() time.Duration {
	return time.Duration(t.RestartCooldownMs) * time.Millisecond
}

// SilenceTimeout returns SilenceTimeoutMs as a [time.Duration].
func (t TimingConfig) SilenceTimeout() time.Duration {
	return time.Duration(t.SilenceTimeoutMs) * time.Millisecond
}

// RestartDelay returns RestartDelayMs as a [time.Duration].
func (t TimingConfig) RestartDelay() time.Duration {
	return time.Duration(t.RestartDelayMs) * time.Millisecond
}

// LoadTimeout returns LoadTimeoutMs as a [time.Duration].
func (t TimingConfig) LoadTimeout() time.Duration {
	return time.Duration(t.LoadTimeoutMs) * time.Millisecond
}

// GoodbyeGrace returns GoodbyeGraceMs as a [time.Duration].
func (t TimingConfig) GoodbyeGrace() time.Duration {
	return time.Duration(t.GoodbyeGraceMs) * time.Millisecond
}

// RecognitionConfig selects and parameterises the speech engine.
type RecognitionConfig struct {
	// Engine selects the backend. Defaults to [EngineScript].
	Engine EngineKind `yaml:"engine"`

	// Locale is the BCP-47 recognition language tag, fixed for the process
	// lifetime (e.g., "en-US").
	Locale string `yaml:"locale"`

	// SidecarURL is the websocket endpoint of the recognition sidecar.
	// Required when Engine is [EngineSidecar].
	SidecarURL string `yaml:"sidecar_url"`

	// Script lists the utterances the script engine replays, in order.
	// Used when Engine is [EngineScript].
	Script []ScriptLine `yaml:"script"`
}

// ScriptLine is one pre-scripted user utterance.
type ScriptLine struct {
	// Text is delivered as the recognition result.
	Text string `yaml:"text"`

	// DelayMs is how long after recognition starts the line is spoken.
	DelayMs int `yaml:"delay_ms"`
}

// Delay returns DelayMs as a [time.Duration].
func (s ScriptLine) Delay() time.Duration {
	return time.Duration(s.DelayMs) * time.Millisecond
}

// MediaConfig describes the per-state clip library.
type MediaConfig struct {
	// Dir is the directory clip file names are resolved against.
	Dir string `yaml:"dir"`

	// Clips maps state names to their clip. States without an entry are
	// treated as failed resources and resolve through the fallback chain.
	Clips map[string]ClipConfig `yaml:"clips"`
}

// ClipConfig describes one pre-recorded clip.
type ClipConfig struct {
	// File is the clip file name, relative to [MediaConfig.Dir].
	File string `yaml:"file"`

	// DurationMs is the playback length. Required for non-looping clips so
	// the simulated player knows when the clip ends.
	DurationMs int `yaml:"duration_ms"`

	// Loop restarts the clip silently at the end instead of signalling.
	Loop bool `yaml:"loop"`

	// Muted plays the clip without audio. Normally only the idle clip.
	Muted bool `yaml:"muted"`
}

// Duration returns DurationMs as a [time.Duration].
func (c ClipConfig) Duration() time.Duration {
	return time.Duration(c.DurationMs) * time.Millisecond
}

// ConversationConfig tunes classification and the fixed character lines.
// Empty fields fall back to the built-in table.
type ConversationConfig struct {
	// Rules is the ordered keyword table; the first rule with a matching
	// keyword wins. When empty, the built-in rules are used.
	Rules []KeywordRule `yaml:"rules"`

	// DefaultReply is spoken when no rule matches.
	DefaultReply string `yaml:"default_reply"`

	// ApologyReply is spoken after a recognition error.
	ApologyReply string `yaml:"apology_reply"`

	// SilencePrompt is spoken when the user says nothing for the silence
	// timeout.
	SilencePrompt string `yaml:"silence_prompt"`

	// EligibleStates overrides the set of states in which the microphone
	// may be armed. State names; when empty the built-in set is used.
	EligibleStates []string `yaml:"eligible_states"`
}

// KeywordRule maps keywords to a conversational state and a fixed reply.
type KeywordRule struct {
	// State is the state entered when one of Keywords matches.
	State string `yaml:"state"`

	// Keywords are matched case-insensitively as substrings of the
	// utterance.
	Keywords []string `yaml:"keywords"`

	// Reply is the character line appended to the transcript on a match.
	Reply string `yaml:"reply"`
}

// ResolvedFallbacks merges the configured overrides over the default
// fallback chain and returns the effective chain.
func (c *Config) ResolvedFallbacks() map[session.State]session.State {
	chain := DefaultFallbacks()
	for from, to := range c.Fallbacks {
		chain[session.State(from)] = session.State(to)
	}
	return chain
}

// DefaultFallbacks returns the built-in fallback chain: spoken states
// degrade to listening, listening degrades to idle, idle is terminal.
func DefaultFallbacks() map[session.State]session.State {
	return map[session.State]session.State{
		session.StateGreeting:  session.StateListening,
		session.StateResponse:  session.StateListening,
		session.StateWeather:   session.StateListening,
		session.StatePrompt:    session.StateListening,
		session.StateFallback:  session.StateListening,
		session.StateGoodbye:   session.StateIdle,
		session.StateListening: session.StateIdle,
	}
}
