package sidecar

import (
	"testing"
)

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
}

func TestParseServerMessage(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantOK   bool
		wantType string
		wantText string
	}{
		{
			name:     "result frame",
			data:     `{"type":"result","text":"hello there"}`,
			wantOK:   true,
			wantType: "result",
			wantText: "hello there",
		},
		{
			name:     "error frame",
			data:     `{"type":"error","message":"no speech detected"}`,
			wantOK:   true,
			wantType: "error",
		},
		{
			name:     "end frame",
			data:     `{"type":"end"}`,
			wantOK:   true,
			wantType: "end",
		},
		{
			name:   "missing type ignored",
			data:   `{"text":"hi"}`,
			wantOK: false,
		},
		{
			name:   "invalid JSON ignored",
			data:   `not json`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, ok := parseServerMessage([]byte(tt.data))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if sm.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", sm.Type, tt.wantType)
			}
			if tt.wantText != "" && sm.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", sm.Text, tt.wantText)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	e, err := New("ws://localhost:9090/stt", WithLocale("de-DE"), WithDialTimeout(100))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.locale != "de-DE" {
		t.Errorf("locale = %q", e.locale)
	}
	if e.dialTimeout != 100 {
		t.Errorf("dialTimeout = %v", e.dialTimeout)
	}
}
