// Package domain holds the ledger's core types: accounts, periods, journal
// entries and lines, balance roll-ups, and the error taxonomy every
// component above the storage layer classifies its failures into.
//
// Pattern: Sentinel Errors + Custom Error Types, mirroring the rest of the
// platform's domain packages.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for governance and reversal failures. Wrapped by the
// typed errors below so callers can still errors.Is against them.
var (
	ErrNoPeriodForDate = errors.New("no accounting period covers this date")
	ErrPeriodClosed    = errors.New("accounting period is closed")
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account is inactive")
	ErrEntryNotFound   = errors.New("journal entry not found")
	ErrAlreadyReversed = errors.New("journal entry has already been reversed")
	ErrIsAReversal     = errors.New("cannot reverse a reversal entry")
	ErrPeriodNotFound  = errors.New("accounting period not found")
)

// Kind classifies an error along the recoverable/non-recoverable axis the
// consumer runner needs to decide between retry and DLQ.
type Kind int

const (
	// KindUnknown is the zero value; treated as non-recoverable by callers
	// that fail closed on an unclassified error.
	KindUnknown Kind = iota
	KindValidation
	KindGovernance
	KindDuplicate
	KindAlreadyReversed
	KindEntryNotFound
	KindHashMismatch
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindGovernance:
		return "governance"
	case KindDuplicate:
		return "duplicate"
	case KindAlreadyReversed:
		return "already_reversed"
	case KindEntryNotFound:
		return "entry_not_found"
	case KindHashMismatch:
		return "hash_mismatch"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// kindOf is implemented by every error type above that can name its own
// Kind; ClassifyKind falls back to KindUnknown for anything else.
type kindOf interface {
	Kind() Kind
}

// ClassifyKind reports the Kind of err for DLQ tagging and structured
// logging, walking the error chain the same way Recoverable does.
func ClassifyKind(err error) Kind {
	var k kindOf
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// ValidationError reports a malformed or logically inconsistent payload.
// Non-recoverable: routed straight to the DLQ.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error on %q: %s", e.Field, e.Message)
}

func (e *ValidationError) Recoverable() bool { return false }

func (e *ValidationError) Kind() Kind { return KindValidation }

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// GovernanceError wraps the four chart-of-accounts/period governance
// failures below, plus ErrPeriodNotFound when a period lookup by id
// misses. Non-recoverable.
type GovernanceError struct {
	Reason error // one of ErrNoPeriodForDate, ErrPeriodClosed, ErrAccountNotFound, ErrAccountInactive, ErrPeriodNotFound
	Detail string
}

func (e *GovernanceError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason.Error(), e.Detail)
}

func (e *GovernanceError) Unwrap() error { return e.Reason }

func (e *GovernanceError) Recoverable() bool { return false }

func (e *GovernanceError) Kind() Kind { return KindGovernance }

func NewGovernanceError(reason error, detail string) *GovernanceError {
	return &GovernanceError{Reason: reason, Detail: detail}
}

// DuplicateEvent is not really an error path, it signals the runner to
// silently absorb a redelivered event. Kept as a typed value so the
// posting/reversal services can return it through the same error channel
// the runner already understands.
type DuplicateEvent struct {
	EventID string
}

func (e *DuplicateEvent) Error() string {
	return fmt.Sprintf("event %s already processed", e.EventID)
}

func (e *DuplicateEvent) Recoverable() bool { return false }

func (e *DuplicateEvent) Kind() Kind { return KindDuplicate }

// ReversalError covers AlreadyReversed / EntryNotFound, the reversal
// service's own non-recoverable cases.
type ReversalError struct {
	Reason error // ErrEntryNotFound, ErrAlreadyReversed, or ErrIsAReversal
}

func (e *ReversalError) Error() string { return e.Reason.Error() }

func (e *ReversalError) Unwrap() error { return e.Reason }

func (e *ReversalError) Recoverable() bool { return false }

func (e *ReversalError) Kind() Kind {
	switch {
	case errors.Is(e.Reason, ErrAlreadyReversed):
		return KindAlreadyReversed
	case errors.Is(e.Reason, ErrEntryNotFound):
		return KindEntryNotFound
	default:
		return KindValidation
	}
}

func NewReversalError(reason error) *ReversalError {
	return &ReversalError{Reason: reason}
}

// HashMismatchError is a close-time integrity failure: the recomputed hash
// of a closed period no longer matches what was stored. This should never
// happen; it is surfaced so an operator investigates rather than retried.
type HashMismatchError struct {
	PeriodID string
	Expected string
	Got      string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("close hash mismatch for period %s: expected %s, got %s", e.PeriodID, e.Expected, e.Got)
}

func (e *HashMismatchError) Recoverable() bool { return false }

func (e *HashMismatchError) Kind() Kind { return KindHashMismatch }

// TransientError covers db connection failures, bus publish failures, and
// serialization conflicts, anything the retry helper should take
// another swing at before giving up to the DLQ.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient error: %v", e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Recoverable() bool { return true }

func (e *TransientError) Kind() Kind { return KindTransient }

func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// Classifiable is implemented by every error kind above; the consumer
// runner type-switches through it instead of pattern-matching strings.
type Classifiable interface {
	error
	Recoverable() bool
}

// Recoverable reports whether err should be retried before DLQ. An
// error that does not implement Classifiable is treated as recoverable:
// better to retry an unrecognized failure than to silently drop an event.
func Recoverable(err error) bool {
	var c Classifiable
	if errors.As(err, &c) {
		return c.Recoverable()
	}
	return true
}

// IsDuplicate reports whether err signals a redelivered, already-processed
// event rather than a genuine failure.
func IsDuplicate(err error) bool {
	var d *DuplicateEvent
	return errors.As(err, &d)
}
