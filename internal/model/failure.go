package model

import (
	"context"
	"errors"
)

// FailureKind classifies why a target (or export) failed. Kinds are
// preserved through to the run summary so partial failures stay auditable.
type FailureKind string

const (
	FailureNone                FailureKind = ""
	FailureNavigationTimeout   FailureKind = "navigation_timeout"
	FailureSessionCrashed      FailureKind = "session_crashed"
	FailureExtractionEmpty     FailureKind = "extraction_empty"
	FailureGenerationExhausted FailureKind = "generation_exhausted"
	FailureGenerationRejected  FailureKind = "generation_rejected"
	FailureGenerationMalformed FailureKind = "generation_malformed"
	FailureExportIO            FailureKind = "export_io"
	FailureCanceled            FailureKind = "canceled"
	FailureUnknown             FailureKind = "unknown"
)

// Sentinel errors for the pipeline failure taxonomy. Components wrap these
// with context via eris; classification happens with errors.Is.
var (
	ErrNavigationTimeout   = errors.New("navigation timeout")
	ErrSessionCrashed      = errors.New("browser session crashed")
	ErrExtractionEmpty     = errors.New("extraction produced no content")
	ErrGenerationExhausted = errors.New("generation retry budget exhausted")
	ErrGenerationRejected  = errors.New("generation request rejected")
	ErrGenerationMalformed = errors.New("generation response malformed")
	ErrExportIO            = errors.New("export write failed")
)

// KindOf maps an error to its failure kind. Context cancellation maps to
// FailureCanceled; anything unrecognized is FailureUnknown.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrNavigationTimeout):
		return FailureNavigationTimeout
	case errors.Is(err, ErrSessionCrashed):
		return FailureSessionCrashed
	case errors.Is(err, ErrExtractionEmpty):
		return FailureExtractionEmpty
	case errors.Is(err, ErrGenerationExhausted):
		return FailureGenerationExhausted
	case errors.Is(err, ErrGenerationRejected):
		return FailureGenerationRejected
	case errors.Is(err, ErrGenerationMalformed):
		return FailureGenerationMalformed
	case errors.Is(err, ErrExportIO):
		return FailureExportIO
	case errors.Is(err, context.Canceled):
		return FailureCanceled
	default:
		return FailureUnknown
	}
}

// Retryable reports whether a failure kind is transient from the
// pipeline's perspective. Content and protocol errors are not.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureNavigationTimeout, FailureSessionCrashed:
		return true
	default:
		return false
	}
}
