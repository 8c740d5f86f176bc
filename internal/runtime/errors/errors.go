package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired    = sterrors.New("docrelay: configuration is required")
	ErrLoggerRequired    = sterrors.New("docrelay: logger is required")
	ErrTopicRequired     = sterrors.New("docrelay: topic is required")
	ErrPublisherRequired = sterrors.New("docrelay: publisher is required")
	ErrFactoryRequired   = sterrors.New("docrelay: pipeline factory is required")
	ErrSinkRequired      = sterrors.New("docrelay: sink is required")

	ErrUnrecognizedDocumentKind = sterrors.New("docrelay: unrecognized document kind")
	ErrMissingField             = sterrors.New("docrelay: document field missing")
	ErrNoActivePipeline         = sterrors.New("docrelay: no active pipeline for run")
	ErrDuplicateRun             = sterrors.New("docrelay: run already has an active pipeline")

	ErrResolutionLookup   = sterrors.New("docrelay: resolution lookup failed")
	ErrResolverNotFound   = sterrors.New("docrelay: no resolver registered for source kind")
	ErrExternalResolution = sterrors.New("docrelay: external resolution failed")
	ErrCatalogLookup      = sterrors.New("docrelay: catalog lookup failed")
)

// ConfigValidationError wraps the joined errors returned by Config.Validate.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "docrelay: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// ResolutionError reports a failed call into an external resolver. It matches
// both ErrExternalResolution and the resolver's own error under errors.Is.
type ResolutionError struct {
	Spec     string
	Resource string
	Datum    string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("docrelay: external resolution failed (spec=%s resource=%s datum=%s): %v",
		e.Spec, e.Resource, e.Datum, e.Err)
}

func (e *ResolutionError) Unwrap() []error {
	return []error{ErrExternalResolution, e.Err}
}
