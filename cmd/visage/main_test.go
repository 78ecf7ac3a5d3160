package main

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short untouched", "script", 19, "script"},
		{"exactly max untouched", "0123456789012345678", 19, "0123456789012345678"},
		{"long ascii cut", "/media/clips/characters/alice", 19, "/media/clips/cha…"},
		{"multi-byte locale", "de-DE-übermäßig-länglich", 19, "de-DE-übermäßig-…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8: %q", tt.in, tt.max, got)
			}
		})
	}
}
