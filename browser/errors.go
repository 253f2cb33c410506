package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/pageflow/types"
)

var (
	// ErrUnknownKind reports a descriptor whose kind is not one of the
	// supported actions. The interpreter skips such descriptors.
	ErrUnknownKind = errors.New("unknown action kind")
	// ErrMissingParam reports a descriptor lacking a required parameter.
	// The interpreter skips such descriptors.
	ErrMissingParam = errors.New("missing required action parameter")
	// ErrDuplicateField reports a locator map that declares a field twice.
	ErrDuplicateField = errors.New("duplicate locator field")
	// ErrInvalidLocator reports a locator with an empty field or selector.
	ErrInvalidLocator = errors.New("invalid locator")
	// ErrUnsupported reports a primitive the provider cannot perform.
	ErrUnsupported = errors.New("operation not supported by provider")
	// ErrLimiterClosed reports an acquisition attempted after Close.
	ErrLimiterClosed = errors.New("session limiter is closed")
	// ErrBodyTooLarge reports a static page larger than MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body exceeds limit")
)

// NavigationError reports that a target could not be reached or did not
// settle before the deadline.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ActionExecutionError reports the first action whose primitive failed.
type ActionExecutionError struct {
	Index int
	Kind  Kind
	Err   error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %d (%s) failed: %v", e.Index, e.Kind, e.Err)
}

func (e *ActionExecutionError) Unwrap() error { return e.Err }

// IOError reports an artifact that could not be written.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write artifact %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ExtractionError reports a provider query that failed while building
// records for Field.
type ExtractionError struct {
	Field    string
	Selector string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract field %q (%s): %v", e.Field, e.Selector, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ToError converts an engine error into the structured form exposed to
// calling agents. It returns nil for a nil error.
func ToError(err error) *types.Error {
	if err == nil {
		return nil
	}

	var typed *types.Error
	if errors.As(err, &typed) {
		return typed
	}

	var (
		navErr    *NavigationError
		actionErr *ActionExecutionError
		ioErr     *IOError
		extErr    *ExtractionError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return types.NewError(types.ErrCanceled, "operation canceled").WithCause(err)
	case errors.As(err, &actionErr):
		// 动作错误优先于其内部的导航/IO 错误，保留失败索引
		return types.NewError(types.ErrActionFailed, actionErr.Error()).
			WithCause(err).
			WithRetryable(errors.Is(err, context.DeadlineExceeded))
	case errors.As(err, &navErr):
		return types.NewError(types.ErrNavigationFailed, navErr.Error()).
			WithCause(err).
			WithRetryable(true)
	case errors.As(err, &ioErr):
		return types.NewError(types.ErrArtifactIO, ioErr.Error()).WithCause(err)
	case errors.As(err, &extErr):
		return types.NewError(types.ErrExtractionFailed, extErr.Error()).
			WithCause(err).
			WithRetryable(errors.Is(err, context.DeadlineExceeded))
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewError(types.ErrTimeout, "operation timed out").
			WithCause(err).
			WithRetryable(true)
	case errors.Is(err, ErrUnsupported):
		return types.NewError(types.ErrUnsupported, err.Error()).WithCause(err)
	case errors.Is(err, ErrDuplicateField), errors.Is(err, ErrInvalidLocator),
		errors.Is(err, ErrUnknownKind), errors.Is(err, ErrMissingParam):
		return types.NewError(types.ErrInvalidRequest, err.Error()).WithCause(err)
	default:
		return types.NewError(types.ErrInternalError, err.Error()).WithCause(err)
	}
}
