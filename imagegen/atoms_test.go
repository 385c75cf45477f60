package imagegen

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestIsAzureEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		expected bool
	}{
		{"empty string returns false", "", false},
		{"openai.azure.com returns true", "https://myresource.openai.azure.com", true},
		{"cognitiveservices.azure.com returns true", "https://myresource.cognitiveservices.azure.com", true},
		{"case insensitive", "https://myresource.OpenAI.Azure.COM", true},
		{"standard OpenAI returns false", "https://api.openai.com/v1", false},
		{"localhost returns false", "http://localhost:1234", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAzureEndpoint(tt.endpoint); got != tt.expected {
				t.Errorf("IsAzureEndpoint(%q) = %v, want %v", tt.endpoint, got, tt.expected)
			}
		})
	}
}

func TestIsImageMediaType(t *testing.T) {
	tests := []struct {
		mediaType string
		expected  bool
	}{
		{"image/png", true},
		{"image/jpeg", true},
		{"IMAGE/WEBP", true},
		{"image/png; charset=binary", true},
		{"image/", false},
		{"application/pdf", false},
		{"text/plain", false},
		{"", false},
		{"not a media type", false},
	}

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			if got := IsImageMediaType(tt.mediaType); got != tt.expected {
				t.Errorf("IsImageMediaType(%q) = %v, want %v", tt.mediaType, got, tt.expected)
			}
		})
	}
}

func TestTruncateDescription(t *testing.T) {
	t.Run("short text is unchanged", func(t *testing.T) {
		if got := TruncateDescription("a purple sky"); got != "a purple sky" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("exactly the limit is unchanged", func(t *testing.T) {
		s := strings.Repeat("x", DescriptionPreviewRunes)
		if got := TruncateDescription(s); got != s {
			t.Errorf("expected no truncation at the limit")
		}
	})

	t.Run("long text is cut on rune boundaries", func(t *testing.T) {
		s := strings.Repeat("é", DescriptionPreviewRunes+10)
		got := TruncateDescription(s)
		if !strings.HasSuffix(got, "...") {
			t.Fatalf("expected ellipsis, got %q", got)
		}
		if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != DescriptionPreviewRunes {
			t.Errorf("expected %d runes before ellipsis, got %d", DescriptionPreviewRunes, n)
		}
		if !utf8.ValidString(got) {
			t.Error("truncation produced invalid UTF-8")
		}
	})
}

func TestEncodeDataURI(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	uri := EncodeDataURI(buf.Bytes())
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("unexpected prefix: %q", uri[:30])
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, buf.Bytes()) {
		t.Error("round trip changed the bytes")
	}
}

func TestDetectImageMediaType_FallsBackToPNG(t *testing.T) {
	if got := DetectImageMediaType([]byte("definitely not an image")); got != "image/png" {
		t.Errorf("got %q, want image/png", got)
	}
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
	if got := DetectImageMediaType(jpeg); got != "image/jpeg" {
		t.Errorf("got %q, want image/jpeg", got)
	}
}

func TestTrimDescription(t *testing.T) {
	tests := map[string]string{
		"  plain  ":         "plain",
		`"quoted prompt"`:   "quoted prompt",
		`'single quoted'`:   "single quoted",
		`"unbalanced`:       `"unbalanced`,
		"   ":               "",
		`" spaced inside "`: "spaced inside",
	}
	for in, want := range tests {
		if got := trimDescription(in); got != want {
			t.Errorf("trimDescription(%q) = %q, want %q", in, got, want)
		}
	}
}
