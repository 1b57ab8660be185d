package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func fastPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		Multiplier:   1.0,
		MaxDelay:     10 * time.Millisecond,
	}
}

func TestRetryPolicyClassification(t *testing.T) {
	policy := DefaultRetryPolicy()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", errors.New("dial tcp: connection refused"), true},
		{"rate limited", &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}, true},
		{"server error", &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, true},
		{"bad request", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, false},
		{"blocked", &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked"}, false},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		if got := policy.ShouldRetry(tt.err, 1); got != tt.want {
			t.Errorf("%s: ShouldRetry = %v, want %v", tt.name, got, tt.want)
		}
	}

	if policy.ShouldRetry(errors.New("timeout"), 4) {
		t.Error("should not retry after max attempts")
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := DefaultRetryPolicy()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := policy.NextDelay(i + 1); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}

	capped := &RetryPolicy{MaxAttempts: 10, InitialDelay: time.Second, Multiplier: 10, MaxDelay: 30 * time.Second}
	if d := capped.NextDelay(5); d != capped.MaxDelay {
		t.Errorf("expected delay capped at %v, got %v", capped.MaxDelay, d)
	}
}

func TestRetryPolicyRetryAfterHint(t *testing.T) {
	policy := DefaultRetryPolicy()
	err := &tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 5}}
	if d := policy.delayFor(err, 1); d != 5*time.Second {
		t.Errorf("expected retry_after of 5s, got %v", d)
	}
	err.RetryAfter = 120
	if d := policy.delayFor(err, 1); d != policy.MaxDelay {
		t.Errorf("expected hint capped at %v, got %v", policy.MaxDelay, d)
	}
}

func TestRetryPolicyExecute(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &tgbotapi.Error{Code: 500, Message: "Internal Server Error"}
		}
		return nil
	})
	if err != nil {
		t.Errorf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryPolicyExecuteNonRetryable(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Execute(context.Background(), func() error {
		calls++
		return &tgbotapi.Error{Code: 400, Message: "Bad Request"}
	})
	if err == nil {
		t.Error("expected error for non-retryable failure")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestRetryPolicyExecuteAllFail(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Execute(context.Background(), func() error {
		calls++
		return errors.New("timeout")
	})
	if err == nil {
		t.Error("expected error after all attempts exhausted")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
