package parallel

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rotisserie/eris"
)

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	val, err := Retry(context.Background(), RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Fatalf("expected ok, got %q", val)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryRecoversFromTransient(t *testing.T) {
	calls := 0
	val, err := Retry(context.Background(), RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("connection reset"), 0)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Fatalf("expected 42, got %d", val)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := eris.New("bad request")
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("permanent error should not be retried, got %d calls", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, NewTransientError(errors.New("service unavailable"), 503)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d calls", calls)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, RetryConfig{MaxRetries: 10, BaseDelay: time.Hour}, func(ctx context.Context) (struct{}, error) {
			calls++
			return struct{}{}, NewTransientError(errors.New("timeout"), 0)
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not return after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond, BackoffFactor: 2.0, JitterFraction: 0}
	cfg = applyDefaults(cfg)

	d0 := backoffDelay(0, cfg)
	d1 := backoffDelay(1, cfg)
	d4 := backoffDelay(4, cfg)

	if d0 != 100*time.Millisecond {
		t.Fatalf("attempt 0: expected 100ms, got %v", d0)
	}
	if d1 != 200*time.Millisecond {
		t.Fatalf("attempt 1: expected 200ms, got %v", d1)
	}
	if d4 != 500*time.Millisecond {
		t.Fatalf("attempt 4: expected cap of 500ms, got %v", d4)
	}
}

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return "status " + http.StatusText(e.code) }
func (e *statusErr) HTTPStatus() int { return e.code }

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("x"), 503), "call failed"), true},
		{"bare 503 status", &statusErr{code: 503}, true},
		{"wrapped 429 status", eris.Wrap(&statusErr{code: 429}, "gather"), true},
		{"bare 404 status", &statusErr{code: 404}, false},
		{"reset by message", errors.New("read tcp: connection reset by peer"), true},
		{"dial timeout by message", errors.New("dial tcp 10.0.0.1:443: i/o timeout"), true},
		{"permanent", errors.New("invalid HS code"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}
