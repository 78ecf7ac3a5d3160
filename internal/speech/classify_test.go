package speech

import (
	"testing"

	"github.com/visagelabs/visage/internal/session"
)

func TestClassifyDefaults(t *testing.T) {
	c := NewClassifier(nil, "")

	tests := []struct {
		text      string
		wantState session.State
		wantReply string
	}{
		{"Hello there", session.StateGreeting, "Hello! How are you?"},
		{"HI!", session.StateGreeting, "Hello! How are you?"},
		{"what's the weather today", session.StateWeather, "It's a beautiful day!"},
		{"is TODAY a good day", session.StateWeather, "It's a beautiful day!"},
		{"okay goodbye now", session.StateGoodbye, "Goodbye! It was nice talking to you!"},
		{"bye", session.StateGoodbye, "Goodbye! It was nice talking to you!"},
		{"tell me about trains", session.StateResponse, DefaultReply},
		{"", session.StateResponse, DefaultReply},
	}
	for _, tt := range tests {
		gotState, gotReply := c.Classify(tt.text)
		if gotState != tt.wantState {
			t.Errorf("Classify(%q) state = %s, want %s", tt.text, gotState, tt.wantState)
		}
		if gotReply != tt.wantReply {
			t.Errorf("Classify(%q) reply = %q, want %q", tt.text, gotReply, tt.wantReply)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// "hi" appears inside "this" — substring matching is deliberate, and
	// rule order decides ties.
	c := NewClassifier(nil, "")
	gotState, _ := c.Classify("this weather though")
	if gotState != session.StateGreeting {
		t.Errorf("Classify state = %s, want greeting (first rule listed wins)", gotState)
	}
}

func TestClassifyCustomRules(t *testing.T) {
	rules := []Rule{
		{State: session.StateWeather, Keywords: []string{"rain"}, Reply: "Take an umbrella."},
	}
	c := NewClassifier(rules, "Hmm.")

	if s, r := c.Classify("will it RAIN"); s != session.StateWeather || r != "Take an umbrella." {
		t.Errorf("Classify = (%s, %q)", s, r)
	}
	if s, r := c.Classify("hello"); s != session.StateResponse || r != "Hmm." {
		t.Errorf("custom default: Classify = (%s, %q)", s, r)
	}
}

func TestClassifyIsPure(t *testing.T) {
	c := NewClassifier(nil, "")
	s1, r1 := c.Classify("Hello there")
	s2, r2 := c.Classify("Hello there")
	if s1 != s2 || r1 != r2 {
		t.Errorf("repeated classification differs: (%s,%q) vs (%s,%q)", s1, r1, s2, r2)
	}
}
