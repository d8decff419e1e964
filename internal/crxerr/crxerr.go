// Package crxerr defines the closed error vocabulary of the extraction
// pipeline. Every failure carries a Kind (the broad family callers branch
// on) and a stable machine-readable Code.
package crxerr

import (
	"errors"
	"fmt"
)

// Kind is the broad error family.
type Kind int

const (
	KindValidation Kind = iota
	KindDownload
	KindSecurity
	KindExtraction
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDownload:
		return "download"
	case KindSecurity:
		return "security"
	case KindExtraction:
		return "extraction"
	}
	return "unknown"
}

// Stable machine codes. These are part of the tool's contract and must not
// be renamed.
const (
	CodeMalformedInput             = "MalformedInput"
	CodeUnsupportedVersion         = "UnsupportedVersion"
	CodeInternalState              = "InternalState"
	CodeDownloadTimeout            = "DownloadTimeout"
	CodeDownloadFailed             = "DownloadFailed"
	CodeNotFound                   = "NotFound"
	CodeTooLarge                   = "TooLarge"
	CodeInspectionFailed           = "InspectionFailed"
	CodeSuspiciousCompressionRatio = "SuspiciousCompressionRatio"
	CodeTooManyFiles               = "TooManyFiles"
	CodeExtractedSizeTooLarge      = "ExtractedSizeTooLarge"
	CodePathOutsideAllowedRoots    = "PathOutsideAllowedRoots"
	CodeInvalidManifest            = "InvalidManifest"
	CodeExtractionFailed           = "ExtractionFailed"
	CodeDirCreateFailed            = "DirCreateFailed"
)

// Error is the single error type produced by the pipeline.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Artifact is the path of a preserved recovery artifact, when the
	// failure leaves one behind (extraction-stage failures only).
	Artifact string
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches errors by Code so callers can use errors.Is with a sentinel
// built from the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New constructs an Error with no cause.
func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error around a cause.
func Wrap(kind Kind, code string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Validation builds a KindValidation error.
func Validation(code, format string, args ...any) *Error {
	return New(KindValidation, code, format, args...)
}

// Download builds a KindDownload error.
func Download(code, format string, args ...any) *Error {
	return New(KindDownload, code, format, args...)
}

// Security builds a KindSecurity error.
func Security(code, format string, args ...any) *Error {
	return New(KindSecurity, code, format, args...)
}

// Extraction builds a KindExtraction error.
func Extraction(code, format string, args ...any) *Error {
	return New(KindExtraction, code, format, args...)
}

// CodeOf returns the machine code of err, or "" when err is not a pipeline
// error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf returns the Kind of err and whether err is a pipeline error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// ArtifactOf returns the recovery-artifact path carried by err, if any.
func ArtifactOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Artifact
	}
	return ""
}
