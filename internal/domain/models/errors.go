package models

import (
	"errors"
	"fmt"
)

// ErrSymbolNotFound is permanent: the vendor does not know the symbol.
// Never retried; surfaced as a per-symbol failure.
var ErrSymbolNotFound = errors.New("symbol not found")

// ErrInvalidRegistry is fatal: the ticker universe is malformed. The run
// aborts before any fetching starts.
var ErrInvalidRegistry = errors.New("invalid ticker registry")

// SourceUnavailableError is transient: the vendor could not be reached or
// answered with a server-side failure. Retried with bounded backoff, then
// demoted to a per-symbol failure.
type SourceUnavailableError struct {
	Op  string
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable during %s: %v", e.Op, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// IsSourceUnavailable reports whether err is a transient vendor failure.
func IsSourceUnavailable(err error) bool {
	var se *SourceUnavailableError
	return errors.As(err, &se)
}

// FailureKind labels a per-symbol failure in the run summary.
type FailureKind string

const (
	FailureSymbolNotFound    FailureKind = "symbol_not_found"
	FailureSourceUnavailable FailureKind = "source_unavailable"
	FailureWrite             FailureKind = "write"
)

// ClassifyFailure maps an error to its summary label.
func ClassifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, ErrSymbolNotFound):
		return FailureSymbolNotFound
	case IsSourceUnavailable(err):
		return FailureSourceUnavailable
	default:
		return FailureWrite
	}
}
