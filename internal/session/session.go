// Package session holds the shared state of one simulated video
// conversation: the current conversational state, the activity and
// microphone flags, and the append-only transcript.
//
// The [Session] store is deliberately dumb. It owns no timers, talks to no
// engine and plays no media; the video and speech controllers subscribe to
// it and react to changes. Every mutation goes through a named operation,
// applies atomically and is visible to all readers before the registered
// observers run.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Observer is invoked synchronously after a mutating operation changed the
// store. Observers run on the mutating goroutine; under the cooperative
// event loop that is always the loop goroutine, so an observer may itself
// call back into the store.
type Observer func()

// Session is the single shared conversation store.
//
// All methods are safe for concurrent use. Mutations that would not change
// anything are dropped without notifying observers, which keeps observer
// cascades finite.
type Session struct {
	mu                sync.Mutex
	state             State
	active            bool
	characterSpeaking bool
	listening         bool
	transcript        []Entry
	observers         []Observer

	now func() time.Time
}

// New creates an inactive session in [StateIdle] with an empty transcript.
func New() *Session {
	return &Session{
		state: StateIdle,
		now:   time.Now,
	}
}

// Subscribe registers fn to run after every state-changing operation.
// Subscription order is notification order. There is no unsubscribe; the
// session and its observers share one lifetime.
func (s *Session) Subscribe(fn Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// SetState moves the conversation to next. Setting the current state again
// is a no-op.
func (s *Session) SetState(next State) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.notifyLocked()
}

// StartSession activates the session and moves it to [StateGreeting].
func (s *Session) StartSession() {
	s.mu.Lock()
	if s.active && s.state == StateGreeting {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.state = StateGreeting
	s.notifyLocked()
}

// EndSession deactivates the session and moves it to [StateGoodbye]. The
// transcript and the remaining flags are left for the controllers and the
// final [Session.Reset] to wind down.
func (s *Session) EndSession() {
	s.mu.Lock()
	if !s.active && s.state == StateGoodbye {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.state = StateGoodbye
	s.notifyLocked()
}

// AppendTranscript appends one line to the transcript and returns the stored
// entry. Appending never fails and never blocks on anything but the store
// lock.
func (s *Session) AppendTranscript(sp Speaker, text string) Entry {
	s.mu.Lock()
	e := Entry{
		ID:        uuid.NewString(),
		Speaker:   sp,
		Text:      text,
		Timestamp: s.now(),
	}
	s.transcript = append(s.transcript, e)
	s.notifyLocked()
	return e
}

// SetListening records whether the microphone is currently armed.
func (s *Session) SetListening(v bool) {
	s.mu.Lock()
	if s.listening == v {
		s.mu.Unlock()
		return
	}
	s.listening = v
	s.notifyLocked()
}

// SetCharacterSpeaking records whether a spoken clip is currently playing.
func (s *Session) SetCharacterSpeaking(v bool) {
	s.mu.Lock()
	if s.characterSpeaking == v {
		s.mu.Unlock()
		return
	}
	s.characterSpeaking = v
	s.notifyLocked()
}

// Reset returns the session to its initial shape: [StateIdle], inactive,
// not listening, not speaking, empty transcript. Controllers observing the
// reset cancel their own timers. Resetting an already pristine session is a
// no-op.
func (s *Session) Reset() {
	s.mu.Lock()
	pristine := s.state == StateIdle && !s.active && !s.listening &&
		!s.characterSpeaking && len(s.transcript) == 0
	if pristine {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.active = false
	s.listening = false
	s.characterSpeaking = false
	s.transcript = nil
	s.notifyLocked()
}

// State returns the current conversational state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether a conversation is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// CharacterSpeaking reports whether a spoken clip is playing.
func (s *Session) CharacterSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.characterSpeaking
}

// Listening reports whether the microphone is armed.
func (s *Session) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Transcript returns a copy of the transcript in append order.
func (s *Session) Transcript() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Snapshot is a consistent read-only projection of the store for UIs and
// diagnostics.
type Snapshot struct {
	State             State
	Active            bool
	CharacterSpeaking bool
	Listening         bool
	Transcript        []Entry
}

// Snapshot captures all fields under one lock acquisition.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr := make([]Entry, len(s.transcript))
	copy(tr, s.transcript)
	return Snapshot{
		State:             s.state,
		Active:            s.active,
		CharacterSpeaking: s.characterSpeaking,
		Listening:         s.listening,
		Transcript:        tr,
	}
}

// notifyLocked releases the store lock and then invokes the observers that
// were registered at the time of the mutation. Observers always run outside
// the lock so they may call back into the store.
func (s *Session) notifyLocked() {
	obs := make([]Observer, len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}
