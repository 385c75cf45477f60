package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newHFTestServer(t *testing.T, handler http.HandlerFunc) *HuggingFaceSynthesizer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	synth, err := NewHuggingFaceSynthesizer(HuggingFaceConfig{
		APIKey:  "hf_test",
		BaseURL: server.URL + "/models/",
		Model:   "stabilityai/sdxl",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return synth
}

func TestHuggingFaceSynthesizer_Success(t *testing.T) {
	want := pngBytes(t, 5, 5)

	synth := newHFTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/models/stabilityai/sdxl" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer hf_test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Inputs     string `json:"inputs"`
			Parameters struct {
				Width  int `json:"width"`
				Height int `json:"height"`
			} `json:"parameters"`
			Options struct {
				WaitForModel bool `json:"wait_for_model"`
			} `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Inputs != "a red bicycle" || body.Parameters.Width != 1024 || body.Parameters.Height != 1024 || !body.Options.WaitForModel {
			t.Errorf("unexpected body: %+v", body)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(want)
	})

	data, err := synth.Synthesize(context.Background(), "a red bicycle")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Error("bytes differ")
	}
}

// The inference API speaks its own format: no OpenAI-style fields on the way
// out, raw image bytes on the way back. A base64 JSON payload is not an image.
func TestHuggingFaceSynthesizer_InferenceWireFormat(t *testing.T) {
	synth := newHFTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		for _, key := range []string{"prompt", "model", "n", "size", "response_format"} {
			if _, ok := body[key]; ok {
				t.Errorf("request carries %q", key)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"b64_json":"iVBORw0KGgo="}]}`))
	})

	_, err := synth.Synthesize(context.Background(), "a red bicycle")
	if got := kindOf(t, err); got != KindProviderBadResponse {
		t.Errorf("kind = %s, want ProviderBadResponse", got)
	}
}

func TestHuggingFaceSynthesizer_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		want        Kind
	}{
		{"model loading", 503, "application/json", `{"error":"Model stabilityai/sdxl is currently loading","estimated_time":20.5}`, KindProviderWarmingUp},
		{"rate limited", 429, "application/json", `{"error":"Rate limit reached"}`, KindProviderQuotaExceeded},
		{"bad token", 401, "application/json", `{"error":"Invalid credentials in Authorization header"}`, KindProviderAuthError},
		{"server error", 500, "text/plain", `boom`, KindProviderUnavailable},
		{"json on success", 200, "application/json", `{"generated_text":"nope"}`, KindProviderBadResponse},
		{"empty body", 200, "image/png", ``, KindProviderBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := newHFTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := synth.Synthesize(context.Background(), "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := kindOf(t, err); got != tt.want {
				t.Errorf("kind = %s, want %s (%v)", got, tt.want, err)
			}
		})
	}
}

func TestHuggingFaceSynthesizer_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	synth := newHFTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := synth.Synthesize(ctx, "x")
	if got := kindOf(t, err); got != KindProviderUnavailable {
		t.Errorf("kind = %s, want ProviderUnavailable", got)
	}
}

func TestHuggingFaceSynthesizer_CancelledContext(t *testing.T) {
	called := false
	synth := newHFTestServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := synth.Synthesize(ctx, "x"); kindOf(t, err) != KindProviderUnavailable {
		t.Errorf("err = %v", err)
	}
	if called {
		t.Error("request should not be sent after cancellation")
	}
}

func TestNewHuggingFaceSynthesizer_Validation(t *testing.T) {
	if _, err := NewHuggingFaceSynthesizer(HuggingFaceConfig{Model: "m"}); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := NewHuggingFaceSynthesizer(HuggingFaceConfig{APIKey: "k"}); err == nil {
		t.Error("expected error without model")
	}
}
