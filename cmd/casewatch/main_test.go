package main

import (
	"testing"

	"github.com/user/casewatch/internal/state"
)

func TestWebhookURL(t *testing.T) {
	tests := []struct {
		explicit, public, want string
	}{
		{"https://hook.example/tg", "https://cases.example", "https://hook.example/tg"},
		{"", "https://cases.example/", "https://cases.example/telegram"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := webhookURL(tt.explicit, tt.public); got != tt.want {
			t.Errorf("webhookURL(%q, %q) = %q, want %q", tt.explicit, tt.public, got, tt.want)
		}
	}
}

func TestMask(t *testing.T) {
	if got := mask(""); got != "(not set)" {
		t.Errorf("mask empty = %q", got)
	}
	if got := mask("abc"); got != "***" {
		t.Errorf("mask short = %q", got)
	}
	if got := mask("123456:ABCDEFGH"); got != "****EFGH" {
		t.Errorf("mask token = %q", got)
	}
}

func TestTickAllowed(t *testing.T) {
	local := state.NewSemaphoreLocker()
	if err := tickAllowed(local, 0); err != nil {
		t.Errorf("no daemon: %v", err)
	}
	if err := tickAllowed(local, 4242); err == nil {
		t.Error("expected refusal while daemon holds a per-process lock")
	}
	shared := state.NewAdvisoryLocker("postgres://app@localhost/cases", "casewatch")
	if err := tickAllowed(shared, 4242); err != nil {
		t.Errorf("shared lock: %v", err)
	}
}
