package store

import (
	"strings"
	"testing"
)

func TestNewInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := NewInviteCode()
		if len(code) != inviteCodeLength {
			t.Fatalf("expected %d characters, got %q", inviteCodeLength, code)
		}
		for _, r := range code {
			if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyz0123456789", r) {
				t.Fatalf("unexpected character %q in code %q", r, code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 95 {
		t.Errorf("codes look far from random: %d distinct out of 100", len(seen))
	}
}
