package ragerr

import (
	"errors"
	"fmt"
)

// Error is the structured error type for the retrieval engine. It carries
// enough context for logging, for the caller's tagged result type, and for
// deciding whether a failure is recoverable per the taxonomy in spec §7.
type Error struct {
	// Code is the unique error code (e.g. "ERR_103_CHECKSUM_MISMATCH").
	Code string

	// Kind is the taxonomy kind this code belongs to.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Severity is derived from Kind.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates the caller (or the WAL writer, for wal_full) may
	// retry the operation.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is() to match by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with the given code and message. Kind, severity
// and retryable are derived from the code.
func New(code string, message string, cause error) *Error {
	kind := kindFromCode(code)
	return &Error{
		Code:      code,
		Kind:      kind,
		Message:   message,
		Severity:  severityFromKind(kind),
		Cause:     cause,
		Retryable: isRetryableKind(kind),
	}
}

// Wrap creates an Error from an existing error, using err.Error() as the
// message. Returns nil if err is nil.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// IOError, InvalidTOC, WALFull, Checksum, Encoding, CapacityExceeded,
// WriterContention, FrameNotFound, ProviderRejected, Canceled are
// convenience constructors for each taxonomy kind, mirroring the teacher's
// per-category helpers (ConfigError, IOError, ...).
func IOError(message string, cause error) *Error { return New(ErrCodeIO, message, cause) }

func InvalidTOC(message string, cause error) *Error { return New(ErrCodeInvalidTOC, message, cause) }

func WALFull(message string) *Error { return New(ErrCodeWALFull, message, nil) }

func Checksum(message string) *Error { return New(ErrCodeChecksum, message, nil) }

func Encoding(code, message string) *Error { return New(code, message, nil) }

func CapacityExceeded(message string) *Error { return New(ErrCodeCapacityExceeded, message, nil) }

func WriterContention(message string) *Error { return New(ErrCodeWriterContention, message, nil) }

func FrameNotFound(id uint64) *Error {
	return New(ErrCodeFrameNotFound, fmt.Sprintf("frame %d not found", id), nil)
}

func ProviderRejected(message string) *Error { return New(ErrCodeProviderRejected, message, nil) }

func Canceled(cause error) *Error { return New(ErrCodeCanceled, "operation canceled", cause) }

// IsRetryable reports whether err is an *Error with Retryable set.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsFatal reports whether err is an *Error with fatal severity.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity == SeverityFatal
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
