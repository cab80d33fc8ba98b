package fabric

import (
	"errors"
	"fmt"

	"github.com/contextfabric/fabric/internal/spin/template"
	"github.com/contextfabric/fabric/internal/store"
)

// ErrorKind is a string-backed enum covering exactly the kinds of
// spec.md §7, generalizing the teacher's integer ErrorCode
// (libravdb/errors.go) into a stable, loggable label.
type ErrorKind string

const (
	CorruptStore       ErrorKind = "CorruptStore"
	VersionMismatch    ErrorKind = "VersionMismatch"
	MissingFeature     ErrorKind = "MissingFeature"
	UnknownFeature     ErrorKind = "UnknownFeature"
	UnknownType        ErrorKind = "UnknownType"
	UnknownFormat      ErrorKind = "UnknownFormat"
	ArrayOutOfRange    ErrorKind = "ArrayOutOfRange"
	TemplateParseError ErrorKind = "TemplateParseError"
	UnknownName        ErrorKind = "UnknownName"
	TimeoutKind        ErrorKind = "Timeout"
	Cancelled          ErrorKind = "Cancelled"
	IoError            ErrorKind = "IoError"
)

// Sentinel errors for conditions that aren't corpus-data errors, kept
// as plain errors.New values the way the teacher keeps ErrDatabaseClosed
// et al. at the top of errors.go, rather than wrapped in Error.
var (
	ErrFabricClosed = errors.New("fabric: already closed")
	ErrEmptyResult  = errors.New("fabric: query bound no atoms")
)

// Error is Context-Fabric's single structured error type
// (spec.md §7's "every error carries a human-readable summary and a
// machine-readable kind"), generalizing the teacher's VectorDBError:
// Kind replaces Code, Message and Cause/Unwrap are kept, and the
// retry/recovery/circuit-breaker machinery (Severity, RecoveryAction,
// RetryCount, ErrorRecoveryManager) is dropped — there is nothing to
// retry or degrade into for a read-only, single-shot query.
type Error struct {
	Kind    ErrorKind
	Message string
	Path    string
	Cause   error

	// TemplateParseError detail.
	Line, Col       int
	Expected, Found string

	// UnknownName detail.
	NameKind string // "feature" | "type" | "relation"
	Name     string

	// Timeout detail.
	ElapsedMs int64
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path: %s)", e.Path)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// unknownName builds the UnknownName variant of spec.md §7.
func unknownName(kind, name string) *Error {
	return &Error{
		Kind:     UnknownName,
		Message:  fmt.Sprintf("unknown %s %q", kind, name),
		NameKind: kind,
		Name:     name,
	}
}

// fromParseError converts a template.ParseError into the public
// TemplateParseError variant.
func fromParseError(err error) *Error {
	var pe *template.ParseError
	if errors.As(err, &pe) {
		return &Error{
			Kind:     TemplateParseError,
			Message:  err.Error(),
			Line:     pe.Line,
			Col:      pe.Col,
			Expected: pe.Expected,
			Found:    pe.Found,
			Cause:    err,
		}
	}
	return newError(TemplateParseError, err.Error(), err)
}

// fromStoreErr maps one of internal/store's loader sentinel errors
// (corrupt store, version mismatch, out-of-range array, missing
// feature) onto the
// public ErrorKind enum, via errors.Is against the sentinels rather
// than string matching.
func fromStoreErr(path string, err error) *Error {
	if err == nil {
		return nil
	}
	var kind ErrorKind
	switch {
	case errors.Is(err, store.ErrCorruptStore):
		kind = CorruptStore
	case errors.Is(err, store.ErrVersionMismatch):
		kind = VersionMismatch
	case errors.Is(err, store.ErrArrayOutOfRange):
		kind = ArrayOutOfRange
	case errors.Is(err, store.ErrMissingFeature):
		kind = MissingFeature
	default:
		kind = IoError
	}
	return &Error{Kind: kind, Message: err.Error(), Path: path, Cause: err}
}
