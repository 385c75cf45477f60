package chat

import (
	"fmt"
	"net/http"
)

// Kind classifies a chat failure.
type Kind string

const (
	KindEmptyMessage          Kind = "EmptyMessage"
	KindMissingIdentity       Kind = "MissingIdentity"
	KindProviderAuthError     Kind = "ProviderAuthError"
	KindProviderQuotaExceeded Kind = "ProviderQuotaExceeded"
	KindProviderBadResponse   Kind = "ProviderBadResponse"
	KindProviderUnavailable   Kind = "ProviderUnavailable"
	KindPersistenceError      Kind = "PersistenceError"
)

// HTTPStatus maps the kind to a response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindEmptyMessage:
		return http.StatusBadRequest
	case KindMissingIdentity:
		return http.StatusUnauthorized
	case KindProviderQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) defaultMessage() string {
	switch k {
	case KindEmptyMessage:
		return "Message is required"
	case KindMissingIdentity:
		return "Not authorized"
	case KindProviderQuotaExceeded:
		return "AI provider quota exceeded. Please try again later"
	case KindPersistenceError:
		return "Failed to save chat"
	default:
		return "Failed to get AI response"
	}
}

// Error is returned by Service for every failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat: %s: %s: %v", e.Kind, e.UserMessage(), e.Err)
	}
	return fmt.Sprintf("chat: %s: %s", e.Kind, e.UserMessage())
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus is a shortcut for e.Kind.HTTPStatus().
func (e *Error) HTTPStatus() int { return e.Kind.HTTPStatus() }

// UserMessage is the text shown to the client.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.defaultMessage()
}

// Details returns diagnostics for development responses.
func (e *Error) Details() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}
