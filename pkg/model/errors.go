package model

import "errors"

// Error codes surfaced alongside evaluation failures. Kept as strings so the
// host can match on them without importing sentinel values.
const (
	FlagNotFoundErrorCode    = "FLAG_NOT_FOUND"
	SegmentNotFoundErrorCode = "SEGMENT_NOT_FOUND"
	KindMismatchErrorCode    = "TYPE_MISMATCH"
	MalformedValueErrorCode  = "PARSE_ERROR"
	MisconfiguredErrorCode   = "MISCONFIGURED"
)

// Sentinel evaluation errors. All of them are recoverable at the typed
// facade, which degrades to the caller-supplied default.
var (
	// ErrFlagNotFound is returned when storage has no flag for the key.
	ErrFlagNotFound = errors.New(FlagNotFoundErrorCode)
	// ErrSegmentNotFound is internal to segment resolution and surfaces as
	// a non-match, never as an evaluation failure.
	ErrSegmentNotFound = errors.New(SegmentNotFoundErrorCode)
	// ErrKindMismatch means the requested accessor does not match the
	// flag's declared kind.
	ErrKindMismatch = errors.New(KindMismatchErrorCode)
	// ErrMalformedValue means the stored variation value could not be
	// parsed as the requested kind.
	ErrMalformedValue = errors.New(MalformedValueErrorCode)
	// ErrMisconfigured means the flag definition references a variation
	// identifier that does not exist.
	ErrMisconfigured = errors.New(MisconfiguredErrorCode)
)
