package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:     maxRetries,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	val, attempts, err := Do(context.Background(), fastPolicy(2), func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Errorf("expected %q, got %q", "ok", val)
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("expected 1 call / 1 attempt, got %d / %d", calls, attempts)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	val, attempts, err := Do(context.Background(), fastPolicy(2), func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, Transient(errors.New("temporary"), 503)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_ExhaustsRetryBudget(t *testing.T) {
	// MaxRetries=2 means exactly 3 attempts total.
	var calls int
	_, attempts, err := Do(context.Background(), fastPolicy(2), func(_ context.Context) (struct{}, error) {
		calls++
		return struct{}{}, Transient(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 || attempts != 3 {
		t.Errorf("expected 3 calls / 3 attempts, got %d / %d", calls, attempts)
	}
}

func TestDo_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	var calls int
	_, attempts, err := Do(context.Background(), fastPolicy(0), func(_ context.Context) (struct{}, error) {
		calls++
		return struct{}{}, Transient(errors.New("fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("expected 1 call / 1 attempt, got %d / %d", calls, attempts)
	}
}

func TestDo_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	_, attempts, err := Do(context.Background(), fastPolicy(3), func(_ context.Context) (struct{}, error) {
		calls++
		return struct{}{}, errors.New("permanent error: bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("expected 1 call / 1 attempt, got %d / %d", calls, attempts)
	}
}

func TestDo_CustomShouldRetry(t *testing.T) {
	marker := errors.New("retry me")
	p := fastPolicy(2)
	p.ShouldRetry = func(err error) bool { return errors.Is(err, marker) }

	var calls int
	_, attempts, err := Do(context.Background(), p, func(_ context.Context) (struct{}, error) {
		calls++
		return struct{}{}, marker
	})
	if !errors.Is(err, marker) {
		t.Fatalf("expected marker error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_ContextCanceledStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	_, attempts, err := Do(ctx, fastPolicy(5), func(_ context.Context) (struct{}, error) {
		calls++
		cancel()
		return struct{}{}, Transient(errors.New("temporary"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || attempts != 1 {
		t.Errorf("expected 1 call / 1 attempt after cancel, got %d / %d", calls, attempts)
	}
}

func TestDo_ReturnsLastError(t *testing.T) {
	last := errors.New("final failure")
	var calls int
	_, _, err := Do(context.Background(), fastPolicy(1), func(_ context.Context) (struct{}, error) {
		calls++
		if calls == 1 {
			return struct{}{}, Transient(errors.New("first failure"), 503)
		}
		return struct{}{}, Transient(last, 503)
	})
	if !errors.Is(err, last) {
		t.Errorf("expected the last error, got %v", err)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var notified []int
	p := fastPolicy(2)
	p.OnRetry = func(attempt int, _ error) {
		notified = append(notified, attempt)
	}

	_, _, _ = Do(context.Background(), p, func(_ context.Context) (struct{}, error) {
		return struct{}{}, Transient(errors.New("fails"), 503)
	})

	if len(notified) != 2 || notified[0] != 2 || notified[1] != 3 {
		t.Errorf("expected retry notifications [2 3], got %v", notified)
	}
}

func TestPolicy_BackoffIsCapped(t *testing.T) {
	p := Policy{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     10.0,
	}.withDefaults()

	if d := p.backoff(5); d > 2*time.Second {
		t.Errorf("expected backoff capped at 2s, got %v", d)
	}
}
