package helpers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"feed-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type FeedObserverError struct {
	Message string
	Cause   error
}

func (e *FeedObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *FeedObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As
type ConfigurationError struct{ FeedObserverError }
type NetworkError struct{ FeedObserverError }
type DatabaseError struct{ FeedObserverError }
type AuthenticationError struct{ FeedObserverError }
type InvalidStateError struct{ FeedObserverError }

// DeliveryError reports a malformed or unexpected tick for one instrument.
type DeliveryError struct {
	FeedObserverError
	Epic string
}

// RemoteCallError reports a non-2xx answer from the broker.
type RemoteCallError struct {
	FeedObserverError
	Operation  string
	StatusCode int
}

// ErrNotLoggedIn is returned when login details are read while logged out.
var ErrNotLoggedIn = &InvalidStateError{FeedObserverError{Message: "not logged in"}}

// -----------------------------------------------------------------------------

func NewAuthenticationError(msg string, cause error) *AuthenticationError {
	return &AuthenticationError{FeedObserverError{Message: msg, Cause: cause}}
}

func NewDeliveryError(epic, msg string) *DeliveryError {
	return &DeliveryError{FeedObserverError: FeedObserverError{Message: msg}, Epic: epic}
}

func NewRemoteCallError(operation string, statusCode int, body string) *RemoteCallError {
	msg := fmt.Sprintf("%s failed with status %d", operation, statusCode)
	if body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}
	return &RemoteCallError{
		FeedObserverError: FeedObserverError{Message: msg},
		Operation:         operation,
		StatusCode:        statusCode,
	}
}

func NewNetworkError(msg string, cause error) *NetworkError {
	return &NetworkError{FeedObserverError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) *DatabaseError {
	return &DatabaseError{FeedObserverError{Message: msg, Cause: cause}}
}

func NewConfigurationError(msg string) *ConfigurationError {
	return &ConfigurationError{FeedObserverError{Message: msg}}
}

// -----------------------------------------------------------------------------

// IsRetryable reports whether err is worth another attempt.
// Authentication failures, 4xx answers and cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return false
	}
	var remoteErr *RemoteCallError
	if errors.As(err, &remoteErr) {
		return remoteErr.StatusCode >= 500 || remoteErr.StatusCode == 429
	}
	return true
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times with exponential backoff.
// It stops early when ctx is done or the error is not retryable.
func RetryWithBackoff(ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, log *logger.Logger, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 || !IsRetryable(err) {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s aborted: %w", operation, ctx.Err())
		case <-timer.C:
		}
	}

	return lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler counts and logs errors that are handled locally instead of returned.
type ErrorHandler struct {
	Logger     *logger.Logger
	errorCount atomic.Int64
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{Logger: log}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.errorCount.Store(0)
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ErrorCount() int64 {
	return e.errorCount.Load()
}

// -----------------------------------------------------------------------------

// Handle logs err with its context. Delivery errors are warnings, anything else is an error.
func (e *ErrorHandler) Handle(err error, context string) {
	if err == nil {
		return
	}
	e.errorCount.Add(1)

	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) {
		e.Logger.Warning("Dropped update in %s for %s: %v", context, deliveryErr.Epic, err)
		return
	}
	e.Logger.Error("Error in %s: %v", context, err)
}
