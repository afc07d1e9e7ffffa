// Package engineerr defines the typed error kinds the position engine uses
// to decide how a failure propagates: terminal (DLQ), local retry, or
// redelivery.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error for dispatcher-level routing decisions.
type Kind int

const (
	// KindUnknown is returned by Classify for errors not produced by this
	// package; callers should treat it like Transient (safe to retry).
	KindUnknown Kind = iota
	KindInvalidArgument
	KindStateViolation
	KindNotFound
	KindVersionConflict
	KindTransient
	KindDataCorruption
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindStateViolation:
		return "StateViolation"
	case KindNotFound:
		return "NotFound"
	case KindVersionConflict:
		return "VersionConflict"
	case KindTransient:
		return "Transient"
	case KindDataCorruption:
		return "DataCorruption"
	case KindFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// engineError wraps a Kind, a human-readable reason, and an optional cause.
type engineError struct {
	kind   Kind
	reason string
	cause  error
}

func (e *engineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.reason)
}

func (e *engineError) Unwrap() error { return e.cause }

// sentinels for errors.Is comparisons against a bare kind, e.g.
// errors.Is(err, engineerr.ErrNotFound).
var (
	ErrInvalidArgument = &engineError{kind: KindInvalidArgument, reason: "invalid argument"}
	ErrStateViolation  = &engineError{kind: KindStateViolation, reason: "state violation"}
	ErrNotFound        = &engineError{kind: KindNotFound, reason: "not found"}
	ErrVersionConflict = &engineError{kind: KindVersionConflict, reason: "version conflict"}
	ErrTransient       = &engineError{kind: KindTransient, reason: "transient failure"}
	ErrDataCorruption  = &engineError{kind: KindDataCorruption, reason: "data corruption"}
	ErrFatal           = &engineError{kind: KindFatal, reason: "fatal"}
)

func (e *engineError) Is(target error) bool {
	te, ok := target.(*engineError)
	if !ok {
		return false
	}
	return te.kind == e.kind && te.cause == nil && te.reason == sentinelReason(te.kind)
}

func sentinelReason(k Kind) string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindStateViolation:
		return "state violation"
	case KindNotFound:
		return "not found"
	case KindVersionConflict:
		return "version conflict"
	case KindTransient:
		return "transient failure"
	case KindDataCorruption:
		return "data corruption"
	case KindFatal:
		return "fatal"
	default:
		return ""
	}
}

// New builds an error of the given kind carrying a human-readable reason.
func New(kind Kind, reason string) error {
	return &engineError{kind: kind, reason: reason}
}

// Wrap builds an error of the given kind carrying a reason and an
// underlying cause, preserved for errors.Unwrap/errors.As.
func Wrap(kind Kind, reason string, cause error) error {
	return &engineError{kind: kind, reason: reason, cause: cause}
}

// Classify extracts the Kind of err, walking the chain via errors.As.
// Errors not produced by this package classify as KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ee *engineError
	if errors.As(err, &ee) {
		return ee.kind
	}
	return KindUnknown
}

// Reason returns the human-readable reason carried by err, or err.Error()
// if err was not produced by this package.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var ee *engineError
	if errors.As(err, &ee) {
		return ee.reason
	}
	return err.Error()
}

// InvalidArgument, StateViolation, etc. are convenience constructors used
// throughout the engine instead of calling New/Wrap with a literal Kind.
func InvalidArgument(reason string) error { return New(KindInvalidArgument, reason) }
func StateViolation(reason string) error  { return New(KindStateViolation, reason) }
func NotFound(reason string) error        { return New(KindNotFound, reason) }
func VersionConflict(reason string) error { return New(KindVersionConflict, reason) }
func Transient(reason string, cause error) error {
	return Wrap(KindTransient, reason, cause)
}
func DataCorruption(reason string, cause error) error {
	return Wrap(KindDataCorruption, reason, cause)
}
func Fatal(reason string, cause error) error { return Wrap(KindFatal, reason, cause) }
