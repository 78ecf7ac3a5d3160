package session

import "time"

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	// SpeakerUser marks recognized user utterances.
	SpeakerUser Speaker = "user"
	// SpeakerCharacter marks the character's scripted replies.
	SpeakerCharacter Speaker = "character"
)

// Entry is one immutable line of the conversation transcript. Entries are
// only ever appended; the log is cleared as a whole when the session resets.
type Entry struct {
	// ID is a process-unique opaque token for UI keying and deduplication.
	ID string
	// Speaker is who said it.
	Speaker Speaker
	// Text is the recognized or scripted line, verbatim.
	Text string
	// Timestamp is when the entry was appended.
	Timestamp time.Time
}
