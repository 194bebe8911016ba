package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "boorufetch/pkg/errors"
	"boorufetch/pkg/logger"
)

func testConfig() *Config {
	return &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return nil
	}, testConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeNetwork, "transient")
		}
		return nil
	}, testConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExactAttemptAndDelayCounts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 5

	calls := 0
	delays := 0
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays++
	}

	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeNetwork, "always fails")
	}, cfg)

	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls != 5 {
		t.Errorf("expected exactly 5 attempts, got %d", calls)
	}
	if delays != 4 {
		t.Errorf("expected exactly 4 inter-attempt delays, got %d", delays)
	}
}

func TestDoWrapsLastError(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 2

	underlying := errs.New(errs.ErrorTypeNetwork, "connection reset")
	err := Do(func() error { return underlying }, cfg)

	if err == nil {
		t.Fatal("expected error")
	}
	var typed *errs.Error
	if !errors.As(err, &typed) {
		t.Fatalf("exhaustion error should wrap the last attempt error, got %v", err)
	}
	if typed.Message != "connection reset" {
		t.Errorf("wrapped wrong error: %v", typed)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeAPI, "bad request")
	}, testConfig())

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("fatal error should not be retried, got %d calls", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := testConfig()
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: time.Minute}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(func() error {
			calls++
			return errs.New(errs.ErrorTypeNetwork, "fail")
		}, cfg)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	result, err := DoWithResult(func() (string, error) {
		calls++
		if calls < 2 {
			return "", errs.New(errs.ErrorTypeNetwork, "flaky")
		}
		return "payload", nil
	}, testConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "payload" {
		t.Errorf("expected payload, got %q", result)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		retry bool
	}{
		{"nil error", nil, false},
		{"network error", errs.New(errs.ErrorTypeNetwork, "timeout"), true},
		{"api error", errs.New(errs.ErrorTypeAPI, "403"), false},
		{"decode error", errs.New(errs.ErrorTypeDecode, "bad magic"), false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"plain error", errors.New("something"), true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := DefaultRetryIf(test.err); got != test.retry {
				t.Errorf("DefaultRetryIf(%v) = %v, want %v", test.err, got, test.retry)
			}
		})
	}
}

func TestConstantBackoff(t *testing.T) {
	cb := &ConstantBackoff{Delay: 2 * time.Second}

	if cb.NextDelay(0) != 0 {
		t.Error("attempt 0 should produce no delay")
	}
	for attempt := 1; attempt <= 5; attempt++ {
		if d := cb.NextDelay(attempt); d != 2*time.Second {
			t.Errorf("attempt %d: expected 2s, got %v", attempt, d)
		}
	}
}

func TestExponentialBackoffGrowth(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0, // deterministic
	}

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for i, want := range expected {
		if got := eb.NextDelay(i + 1); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestLinearBackoffGrowth(t *testing.T) {
	lb := &LinearBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     3 * time.Second,
		Increment:    time.Second,
		JitterFactor: 0, // deterministic
	}

	expected := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, want := range expected {
		if got := lb.NextDelay(i + 1); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}

	for i := 0; i < 100; i++ {
		d := eb.NextDelay(2)
		if d < 1800*time.Millisecond || d > 2200*time.Millisecond {
			t.Fatalf("jittered delay %v outside [1.8s, 2.2s]", d)
		}
	}
}

func TestRetrierWithMaxAttempts(t *testing.T) {
	base := NewRetrier(testConfig())
	calls := 0

	err := base.WithMaxAttempts(2).Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeNetwork, "fail")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
	if base.config.MaxAttempts != 5 {
		t.Error("WithMaxAttempts must not mutate the base retrier")
	}
}
