package domain

import (
	"errors"
	"fmt"
)

// ErrSourceNotAllowed is returned for source names outside the configured allow-list.
var ErrSourceNotAllowed = errors.New("source is not configured")

// SourceFetchError wraps a network or parse failure of one source.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// DeliveryError means the webhook was unreachable or rejected the message.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver digest: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// FallbackWriteError means the local fallback write failed too. Neither
// delivery channel worked, so this is fatal for the run.
type FallbackWriteError struct {
	Path string
	Err  error
}

func (e *FallbackWriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("write fallback digest: %v", e.Err)
	}
	return fmt.Sprintf("write fallback digest %s: %v", e.Path, e.Err)
}

func (e *FallbackWriteError) Unwrap() error { return e.Err }

// LedgerError wraps a failure of the dedup ledger.
type LedgerError struct {
	Op  string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }
