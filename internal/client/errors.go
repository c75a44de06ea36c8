package client

import (
	"errors"
	"fmt"
)

var (
	// ErrTransient marks a retryable failure: network blip, timeout, or
	// a 5xx response. The poller absorbs these up to its retry budget.
	ErrTransient = errors.New("transient error")

	// ErrRequestCancelled marks a request aborted by its caller, as
	// opposed to a timeout the transport hit on its own.
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrUnauthorized is fatal to the whole session, not one job.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientBalance aborts a single send attempt only.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

func IsRequestCancelled(err error) bool {
	return errors.Is(err, ErrRequestCancelled)
}
