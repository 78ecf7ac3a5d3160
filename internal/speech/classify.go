// Package speech owns the microphone side of the conversation: the keyword
// classifier that turns recognized utterances into conversational states and
// the controller that decides when the recognition engine may run at all.
//
// Utterances are classified before they reach anything else — matching is
// plain case-insensitive substring search against an ordered rule table, and
// the first rule with a hit wins.
package speech

import (
	"strings"

	"github.com/visagelabs/visage/internal/session"
)

// Rule pairs a keyword group with the state it selects and the fixed line
// the character answers with.
type Rule struct {
	// State is the conversational state entered when a keyword matches.
	State session.State

	// Keywords are checked as case-insensitive substrings of the utterance,
	// in order.
	Keywords []string

	// Reply is the character's transcript line for this rule.
	Reply string
}

// Classifier maps an utterance to a conversational state and a reply.
//
// Classifier is immutable after construction; swap in a new one to change
// the table. Classification is a pure function of its input.
type Classifier struct {
	rules        []Rule
	defaultState session.State
	defaultReply string
}

// DefaultRules returns the built-in rule table, in match order.
func DefaultRules() []Rule {
	return []Rule{
		{State: session.StateGreeting, Keywords: []string{"hello", "hi"}, Reply: "Hello! How are you?"},
		{State: session.StateWeather, Keywords: []string{"weather", "today"}, Reply: "It's a beautiful day!"},
		{State: session.StateGoodbye, Keywords: []string{"goodbye", "bye"}, Reply: "Goodbye! It was nice talking to you!"},
	}
}

// DefaultReply is the character's line when no rule matches.
const DefaultReply = "That's interesting! Tell me more."

// NewClassifier builds a classifier from rules. Empty rules fall back to
// [DefaultRules]; an empty defaultReply falls back to [DefaultReply].
// Unmatched utterances resolve to [session.StateResponse].
func NewClassifier(rules []Rule, defaultReply string) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if defaultReply == "" {
		defaultReply = DefaultReply
	}
	return &Classifier{
		rules:        rules,
		defaultState: session.StateResponse,
		defaultReply: defaultReply,
	}
}

// Classify returns the conversational state and character reply for text.
// The first rule with a matching keyword wins; without a match the default
// response state and reply are returned.
func (c *Classifier) Classify(text string) (session.State, string) {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(kw)) {
				return r.State, r.Reply
			}
		}
	}
	return c.defaultState, c.defaultReply
}
