package session

// State identifies one conversational state of the character. Every state
// has exactly one associated video clip; which clip is actually shown may
// differ when the clip failed to load (see the video controller's
// fallback resolution).
type State string

const (
	// StateIdle is the resting pose before a conversation starts and after
	// it ends. Its clip loops silently.
	StateIdle State = "idle"
	// StateGreeting plays once when a conversation starts.
	StateGreeting State = "greeting"
	// StateListening loops silently while the microphone is armed.
	StateListening State = "listening"
	// StateResponse is the generic spoken reply to an unclassified utterance.
	StateResponse State = "response"
	// StateWeather is the spoken reply to weather-related utterances.
	StateWeather State = "weather"
	// StateGoodbye plays once when the conversation ends, then the whole
	// session resets to idle.
	StateGoodbye State = "goodbye"
	// StateFallback is the spoken apology after a recognition error.
	StateFallback State = "fallback"
	// StatePrompt is the spoken "are you still there?" nudge after a long
	// silence.
	StatePrompt State = "prompt"
)

// All returns every defined state in a stable order.
func All() []State {
	return []State{
		StateIdle,
		StateGreeting,
		StateListening,
		StateResponse,
		StateWeather,
		StateGoodbye,
		StateFallback,
		StatePrompt,
	}
}

// IsValid reports whether s is one of the defined states.
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateGreeting, StateListening, StateResponse,
		StateWeather, StateGoodbye, StateFallback, StatePrompt:
		return true
	}
	return false
}

// Speaking reports whether the character's clip for s carries spoken audio.
// While a speaking clip plays the microphone stays muted so the character
// does not hear itself. Idle and listening are silent poses.
func (s State) Speaking() bool {
	return s != StateIdle && s != StateListening
}
