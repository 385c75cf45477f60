package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces any detected secret.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match credential-shaped substrings inside free text,
// such as provider error bodies that echo the request headers.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),        // OpenAI
	regexp.MustCompile(`(AIza[a-zA-Z0-9_-]{35})`),            // Google / Gemini
	regexp.MustCompile(`(hf_[a-zA-Z0-9]{30,})`),              // HuggingFace
	regexp.MustCompile(`(gsk_[a-zA-Z0-9]{40,})`),             // Groq
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`), // Authorization headers and JWTs
	regexp.MustCompile(`(eyJ[a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]{10,})`),

	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{6,})`),
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;]{8,})`),
}

// sensitiveFieldNames are substrings of field names whose values are never logged.
var sensitiveFieldNames = []string{
	"API_KEY",
	"APIKEY",
	"GROQ",
	"GEMINI_KEY",
	"HUGGINGFACE_KEY",
	"JWT_SECRET",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"AUTHORIZATION",
}

// RedactSensitiveData replaces credential-shaped substrings in value.
//
// Example:
//
//	RedactSensitiveData("Incorrect API key provided: sk-abc...")
//	// "Incorrect API key provided: [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// IsSensitiveField reports whether a field name indicates a secret.
// Only the name is checked, never the value.
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, name := range sensitiveFieldNames {
		if strings.Contains(upperName, name) {
			return true
		}
	}
	return false
}
