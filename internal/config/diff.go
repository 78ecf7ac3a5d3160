package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// (engine selection, clip manifest, debug listener) needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ConversationChanged is true when the keyword rules, replies or the
	// eligibility override differ.
	ConversationChanged bool

	// TimingChanged is true when any of the wall-clock knobs differ. New
	// values apply to timers armed after the reload; timers already running
	// keep their old duration.
	TimingChanged bool
}

// Empty reports whether the diff carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ConversationChanged && !d.TimingChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if conversationChanged(old.Conversation, new.Conversation) {
		d.ConversationChanged = true
	}

	if old.Timing != new.Timing {
		d.TimingChanged = true
	}

	return d
}

func conversationChanged(old, new ConversationConfig) bool {
	if old.DefaultReply != new.DefaultReply ||
		old.ApologyReply != new.ApologyReply ||
		old.SilencePrompt != new.SilencePrompt {
		return true
	}
	if !slices.Equal(old.EligibleStates, new.EligibleStates) {
		return true
	}
	if len(old.Rules) != len(new.Rules) {
		return true
	}
	for i := range old.Rules {
		if old.Rules[i].State != new.Rules[i].State ||
			old.Rules[i].Reply != new.Rules[i].Reply ||
			!slices.Equal(old.Rules[i].Keywords, new.Rules[i].Keywords) {
			return true
		}
	}
	return false
}
