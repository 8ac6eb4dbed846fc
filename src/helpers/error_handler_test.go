package helpers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"feed-observer/src/logger"
)

func TestRetryWithBackoffSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), "fetch", 3, time.Millisecond, logger.NewNopLogger(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoffStopsOnAuthenticationError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), "login", 5, time.Millisecond, nil, func() error {
		calls++
		return NewAuthenticationError("login rejected", nil)
	})
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestRetryWithBackoffHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, "fetch", 5, time.Hour, nil, func() error {
		calls++
		cancel()
		return errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("eof"), true},
		{NewRemoteCallError("GET /accounts", 503, ""), true},
		{NewRemoteCallError("GET /accounts", 429, ""), true},
		{NewRemoteCallError("GET /accounts", 404, ""), false},
		{fmt.Errorf("wrapped: %w", NewAuthenticationError("bad", nil)), false},
		{context.Canceled, false},
	}
	for i, c := range cases {
		if got := IsRetryable(c.err); got != c.want {
			t.Fatalf("case %d: IsRetryable(%v) = %v, want %v", i, c.err, got, c.want)
		}
	}
}

func TestErrNotLoggedInIsInvalidState(t *testing.T) {
	var stateErr *InvalidStateError
	if !errors.As(fmt.Errorf("details: %w", ErrNotLoggedIn), &stateErr) {
		t.Fatalf("ErrNotLoggedIn must be an InvalidStateError")
	}
}

func TestErrorHandlerCounts(t *testing.T) {
	h := NewErrorHandler(logger.NewNopLogger())
	h.Handle(nil, "noop")
	h.Handle(NewDeliveryError("CS.D.EURUSD.MINI.IP", "bad price"), "dispatch")
	h.Handle(errors.New("boom"), "dispatch")
	if h.ErrorCount() != 2 {
		t.Fatalf("expected 2 errors, got %d", h.ErrorCount())
	}
	h.ResetErrorCount()
	if h.ErrorCount() != 0 {
		t.Fatalf("expected reset")
	}
}
