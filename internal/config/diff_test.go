package config_test

import (
	"testing"

	"github.com/visagelabs/visage/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Conversation: config.ConversationConfig{
			Rules: []config.KeywordRule{
				{State: "greeting", Keywords: []string{"hello", "hi"}, Reply: "Hello! How are you?"},
			},
		},
	}
	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("expected empty diff for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiff_RuleKeywordsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Conversation: config.ConversationConfig{
			Rules: []config.KeywordRule{
				{State: "weather", Keywords: []string{"weather"}, Reply: "It's a beautiful day!"},
			},
		},
	}
	new := &config.Config{
		Conversation: config.ConversationConfig{
			Rules: []config.KeywordRule{
				{State: "weather", Keywords: []string{"weather", "today"}, Reply: "It's a beautiful day!"},
			},
		},
	}

	d := config.Diff(old, new)
	if !d.ConversationChanged {
		t.Error("expected ConversationChanged=true for keyword edit")
	}
	if d.TimingChanged || d.LogLevelChanged {
		t.Errorf("unrelated fields flagged: %+v", d)
	}
}

func TestDiff_RuleAdded(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	new := &config.Config{
		Conversation: config.ConversationConfig{
			Rules: []config.KeywordRule{
				{State: "goodbye", Keywords: []string{"bye"}, Reply: "Goodbye!"},
			},
		},
	}

	if d := config.Diff(old, new); !d.ConversationChanged {
		t.Error("expected ConversationChanged=true for added rule")
	}
}

func TestDiff_SilencePromptChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Conversation: config.ConversationConfig{SilencePrompt: "Are you still there?"},
	}
	new := &config.Config{
		Conversation: config.ConversationConfig{SilencePrompt: "Hello?"},
	}

	if d := config.Diff(old, new); !d.ConversationChanged {
		t.Error("expected ConversationChanged=true for prompt edit")
	}
}

func TestDiff_TimingChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Timing: config.TimingConfig{SilenceTimeoutMs: 8000}}
	new := &config.Config{Timing: config.TimingConfig{SilenceTimeoutMs: 5000}}

	d := config.Diff(old, new)
	if !d.TimingChanged {
		t.Error("expected TimingChanged=true")
	}
	if d.ConversationChanged {
		t.Error("conversation flagged for timing-only edit")
	}
}

func TestDiff_EligibleStatesChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Conversation: config.ConversationConfig{EligibleStates: []string{"listening", "prompt"}},
	}
	new := &config.Config{
		Conversation: config.ConversationConfig{EligibleStates: []string{"listening"}},
	}

	if d := config.Diff(old, new); !d.ConversationChanged {
		t.Error("expected ConversationChanged=true for eligibility edit")
	}
}
