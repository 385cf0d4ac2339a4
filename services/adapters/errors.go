package adapters

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies adapter failures for the orchestrator.
type ErrorKind string

const (
	// KindValidation: the backend rejected the request data. Fatal for the chain.
	KindValidation ErrorKind = "validation"
	// KindUnavailable: backend down, blocked or not usable. Skip to the next adapter.
	KindUnavailable ErrorKind = "unavailable"
	// KindNoSlots: backend reachable but has nothing to book. Skip to the next adapter.
	KindNoSlots ErrorKind = "no_slots"
	// KindTransient: timeout or connection failure. Retried.
	KindTransient ErrorKind = "transient"
	// KindCanceled: the caller gave up.
	KindCanceled ErrorKind = "canceled"
)

// AdapterError is the only error type adapters surface to their callers.
type AdapterError struct {
	Kind      ErrorKind
	AdapterID string
	Message   string
	Err       error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.AdapterID, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.AdapterID, e.Kind, e.Message)
}

func (e *AdapterError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, adapterID, msg string, err error) *AdapterError {
	return &AdapterError{Kind: kind, AdapterID: adapterID, Message: msg, Err: err}
}

func NewValidationError(adapterID, msg string) error {
	return newError(KindValidation, adapterID, msg, nil)
}

func NewUnavailableError(adapterID, msg string, err error) error {
	return newError(KindUnavailable, adapterID, msg, err)
}

func NewNoSlotsError(adapterID, msg string) error {
	return newError(KindNoSlots, adapterID, msg, nil)
}

func NewTransientError(adapterID, msg string, err error) error {
	return newError(KindTransient, adapterID, msg, err)
}

// Classify converts any error returned by an adapter call into an
// AdapterError. ctx is the caller's context: a cancellation there is
// reported as canceled, while a deadline hit inside the call is transient.
func Classify(ctx context.Context, adapterID string, err error) *AdapterError {
	if err == nil {
		return nil
	}
	if ctx != nil && errors.Is(ctx.Err(), context.Canceled) {
		return newError(KindCanceled, adapterID, "request canceled", err)
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		if ae.AdapterID == "" {
			ae.AdapterID = adapterID
		}
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTransient, adapterID, "timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(KindCanceled, adapterID, "request canceled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newError(KindTransient, adapterID, "network error", err)
	}
	return newError(KindUnavailable, adapterID, "backend error", err)
}

// KindOf returns the kind of err, or "" when err is not an AdapterError.
func KindOf(err error) ErrorKind {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
