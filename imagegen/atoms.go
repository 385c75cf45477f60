// Package imagegen implements the text-to-image and image-to-image
// generation pipeline.
//
// atoms.go contains pure utility functions with no dependencies.
package imagegen

import (
	"encoding/base64"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// DescriptionPreviewRunes is how much of the intermediate description is
// echoed back to the client on the derived branch.
const DescriptionPreviewRunes = 200

// IsAzureEndpoint checks if the given endpoint URL is an Azure OpenAI endpoint.
// It performs case-insensitive substring matching against known Azure domain patterns.
//
// Example:
//
//	IsAzureEndpoint("https://myresource.openai.azure.com")        // true
//	IsAzureEndpoint("https://myresource.cognitiveservices.azure.com") // true
//	IsAzureEndpoint("https://api.openai.com")                     // false
func IsAzureEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	lower := strings.ToLower(endpoint)
	return strings.Contains(lower, "openai.azure.com") ||
		strings.Contains(lower, "cognitiveservices.azure.com")
}

// IsImageMediaType reports whether a declared media type names an image.
// Parameters such as "; charset=binary" are ignored.
//
// Example:
//
//	IsImageMediaType("image/png")        // true
//	IsImageMediaType("IMAGE/JPEG")       // true
//	IsImageMediaType("application/pdf")  // false
//	IsImageMediaType("")                 // false
func IsImageMediaType(mediaType string) bool {
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(parsed, "image/") && len(parsed) > len("image/")
}

// TruncateDescription shortens s to DescriptionPreviewRunes runes and appends
// "..." when anything was cut.
func TruncateDescription(s string) string {
	if utf8.RuneCountInString(s) <= DescriptionPreviewRunes {
		return s
	}
	return truncateText(s, DescriptionPreviewRunes) + "..."
}

// truncateText cuts s to at most n runes without adding a suffix.
func truncateText(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// DetectImageMediaType sniffs generated bytes. Providers occasionally return
// JPEG or WebP even when PNG was requested; anything that does not sniff as
// an image is labelled image/png.
func DetectImageMediaType(data []byte) string {
	detected := http.DetectContentType(data)
	if strings.HasPrefix(detected, "image/") {
		return detected
	}
	return "image/png"
}

// EncodeDataURI renders image bytes as a data: URI suitable for an <img> src.
func EncodeDataURI(data []byte) string {
	return "data:" + DetectImageMediaType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// trimDescription removes whitespace and a single pair of wrapping quotes,
// which vision models add despite being asked not to.
func trimDescription(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
