package stilling

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// LookupError classifies failed stilling lookups as transient or permanent.
type LookupError struct {
	StillingID string
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *LookupError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := []string{fmt.Sprintf("stilling lookup %s", e.StillingID)}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *LookupError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether retrying the lookup later may succeed.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
