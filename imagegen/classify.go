package imagegen

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Classification order used by every adapter:
//
//  1. HTTP 401, 403, 429 and 503, which mean the same thing everywhere.
//  2. The provider's own error code or status string (for example
//     RESOURCE_EXHAUSTED or insufficient_quota).
//  3. Any other non-success HTTP status, as ProviderUnavailable.
//  4. Message substrings, only when no structured signal exists.
//
// The description stage has no warming-up member in its taxonomy, so
// warming and 503 signals there become ProviderUnavailable.

// classifyStatus maps the statuses that carry a specific meaning. Other
// non-success statuses are decided after the provider code is consulted.
func classifyStatus(stage Stage, status int) (kind Kind, ok bool) {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindProviderAuthError, true
	case http.StatusTooManyRequests:
		return KindProviderQuotaExceeded, true
	case http.StatusServiceUnavailable:
		return warmingKind(stage), true
	default:
		return "", false
	}
}

func isFailureStatus(status int) bool {
	return status != 0 && (status < 200 || status >= 300)
}

// classifyCode maps provider error codes and gRPC-style status strings.
func classifyCode(stage Stage, code string) (kind Kind, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "":
		return "", false
	case "UNAUTHENTICATED", "PERMISSION_DENIED", "INVALID_API_KEY", "API_KEY_INVALID":
		return KindProviderAuthError, true
	case "RESOURCE_EXHAUSTED", "INSUFFICIENT_QUOTA", "RATE_LIMIT_EXCEEDED":
		return KindProviderQuotaExceeded, true
	case "UNAVAILABLE", "MODEL_LOADING":
		return warmingKind(stage), true
	default:
		return "", false
	}
}

// classifyMessage is the fallback for failures with no status or code, such
// as SDK errors raised before a response was parsed.
func classifyMessage(stage Stage, msg string) Kind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "api key"), strings.Contains(lower, "api_key"),
		strings.Contains(lower, "unauthorized"), strings.Contains(lower, "permission"):
		return KindProviderAuthError
	case strings.Contains(lower, "quota"), strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "resource_exhausted"), strings.Contains(lower, "too many requests"):
		return KindProviderQuotaExceeded
	case strings.Contains(lower, "loading"), strings.Contains(lower, "warming"):
		return warmingKind(stage)
	default:
		return KindProviderUnavailable
	}
}

func warmingKind(stage Stage) Kind {
	if stage == StageSynthesizing {
		return KindProviderWarmingUp
	}
	return KindProviderUnavailable
}

// classifyFailure applies the full order to one upstream failure and wraps
// it as a *GenerationError.
func classifyFailure(failure ProviderFailure, err error) *GenerationError {
	if kind, ok := classifyStatus(failure.Stage, failure.Status); ok {
		return newProviderError(kind, failure, err)
	}
	if kind, ok := classifyCode(failure.Stage, failure.Code); ok {
		return newProviderError(kind, failure, err)
	}
	if isFailureStatus(failure.Status) {
		return newProviderError(KindProviderUnavailable, failure, err)
	}
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return newProviderError(KindProviderUnavailable, failure, err)
	}
	msg := failure.Raw
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return newProviderError(classifyMessage(failure.Stage, msg), failure, err)
}

// asGenerationError passes classified errors through and classifies anything
// else as unavailable at stage. Provider adapters supplied by callers are not
// trusted to classify.
func asGenerationError(stage Stage, err error) *GenerationError {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		if genErr.Stage == "" {
			genErr.Stage = stage
		}
		return genErr
	}
	return classifyFailure(ProviderFailure{Stage: stage, Raw: err.Error()}, err)
}
