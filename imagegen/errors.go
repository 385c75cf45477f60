package imagegen

import (
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure. Every error leaving the pipeline
// carries exactly one Kind.
type Kind string

// Caller input errors. No provider is contacted when these occur.
const (
	KindEmptyPrompt         Kind = "EmptyPrompt"
	KindMissingIdentity     Kind = "MissingIdentity"
	KindFileTooLarge        Kind = "FileTooLarge"
	KindUnsupportedFileType Kind = "UnsupportedFileType"
)

// Upstream provider errors, attributed to the stage that produced them.
const (
	KindProviderAuthError     Kind = "ProviderAuthError"
	KindProviderQuotaExceeded Kind = "ProviderQuotaExceeded"
	KindProviderWarmingUp     Kind = "ProviderWarmingUp"
	KindProviderBadResponse   Kind = "ProviderBadResponse"
	KindProviderEmptyResult   Kind = "ProviderEmptyResult"
	KindProviderUnavailable   Kind = "ProviderUnavailable"
	KindPersistenceError      Kind = "PersistenceError"
)

// HTTPStatus maps the kind to the status code returned to clients.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindEmptyPrompt, KindUnsupportedFileType, KindFileTooLarge:
		return http.StatusBadRequest
	case KindMissingIdentity:
		return http.StatusUnauthorized
	case KindProviderQuotaExceeded:
		return http.StatusTooManyRequests
	case KindProviderWarmingUp:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsInputError reports whether the kind is a caller mistake rather than an
// upstream or storage failure.
func (k Kind) IsInputError() bool {
	switch k {
	case KindEmptyPrompt, KindMissingIdentity, KindFileTooLarge, KindUnsupportedFileType:
		return true
	}
	return false
}

// IsTransient reports whether another attempt at the same call can succeed.
// Only these kinds may appear in a RetryPolicy: quota, auth, bad response and
// empty result failures are final for the request.
func (k Kind) IsTransient() bool {
	return k == KindProviderWarmingUp || k == KindProviderUnavailable
}

// IsProviderError reports whether the kind comes from an upstream AI call.
func (k Kind) IsProviderError() bool {
	switch k {
	case KindProviderAuthError, KindProviderQuotaExceeded, KindProviderWarmingUp,
		KindProviderBadResponse, KindProviderEmptyResult, KindProviderUnavailable:
		return true
	}
	return false
}

// DefaultMessage is the client-facing text for the kind.
func (k Kind) DefaultMessage() string {
	switch k {
	case KindEmptyPrompt:
		return "Prompt is required"
	case KindMissingIdentity:
		return "Not authorized"
	case KindFileTooLarge:
		return "Image file is too large"
	case KindUnsupportedFileType:
		return "Only image files are allowed"
	case KindProviderAuthError:
		return "AI provider rejected the configured credentials"
	case KindProviderQuotaExceeded:
		return "AI provider quota exceeded. Please try again later"
	case KindProviderWarmingUp:
		return "Model is loading. Please try again in a few seconds"
	case KindProviderBadResponse:
		return "AI provider returned an unexpected response"
	case KindProviderEmptyResult:
		return "AI provider returned an empty description"
	case KindProviderUnavailable:
		return "AI provider is unavailable"
	case KindPersistenceError:
		return "Failed to save the generated image"
	default:
		return "Failed to generate image"
	}
}

// ProviderFailure is the raw upstream signal a classification was based on.
// It is used for logs and diagnostics only and is never persisted.
type ProviderFailure struct {
	Stage Stage

	// Status is the upstream HTTP status, 0 when the call never got one.
	Status int

	// Code is the provider's own error code or status string, if any.
	Code string

	// Raw is a truncated diagnostic payload (error body or message).
	Raw string
}

// GenerationError is the only error type that crosses a stage boundary.
type GenerationError struct {
	Kind    Kind
	Stage   Stage
	Message string

	// Failure is set for upstream provider errors.
	Failure *ProviderFailure

	Err error
}

func (e *GenerationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.DefaultMessage()
	}
	if e.Err != nil {
		return fmt.Sprintf("imagegen: %s at %s: %s: %v", e.Kind, e.Stage, msg, e.Err)
	}
	return fmt.Sprintf("imagegen: %s at %s: %s", e.Kind, e.Stage, msg)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// HTTPStatus is a shortcut for e.Kind.HTTPStatus().
func (e *GenerationError) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// UserMessage is the text shown to the client.
func (e *GenerationError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.DefaultMessage()
}

// Details returns a diagnostic string for development responses.
func (e *GenerationError) Details() string {
	if e.Failure != nil && e.Failure.Raw != "" {
		return e.Failure.Raw
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func newInputError(kind Kind, message string) *GenerationError {
	return &GenerationError{Kind: kind, Stage: StageValidating, Message: message}
}

func newProviderError(kind Kind, failure ProviderFailure, err error) *GenerationError {
	failure.Raw = truncateText(failure.Raw, 500)
	return &GenerationError{
		Kind:    kind,
		Stage:   failure.Stage,
		Failure: &failure,
		Err:     err,
	}
}
