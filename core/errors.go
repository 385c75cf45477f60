package core

import (
	"fmt"
)

// ConfigError represents a configuration problem with an actionable fix.
// Code is stable for programmatic handling; Message and Action are for humans.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

const (
	ErrCodeEnvFileMissing = "ENV_FILE_MISSING"
	ErrCodeMissingAuth    = "MISSING_AUTH"
	ErrCodeMissingConfig  = "MISSING_CONFIG"
	ErrCodeInvalidValue   = "INVALID_VALUE"
)

// ErrEnvFileMissing reports a missing .env file.
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env and configure the required values",
	}
}

// ErrMissingAuth reports a provider whose credentials are not configured.
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case ImageProviderHuggingFace:
		action = "Set HUGGINGFACE_API_KEY in your .env file (or choose another IMAGE_PROVIDER)"
	case ImageProviderOpenAI, ImageProviderAzure:
		action = "Set OPENAI_API_KEY in your .env file"
	case "groq":
		action = "Set GROQ_API_KEY in your .env file"
	case "gemini":
		action = "Set GEMINI_API_KEY in your .env file"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrMissingConfig reports a required variable that is unset.
func ErrMissingConfig(field string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", field),
		Action:  fmt.Sprintf("Set %s in your .env file", field),
	}
}

// ErrInvalidValue reports a variable that is set but out of range.
func ErrInvalidValue(field, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid value for %s: %s", field, reason),
		Action:  fmt.Sprintf("Fix %s in your .env file", field),
	}
}
