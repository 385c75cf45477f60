package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAISynthesizer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	synth, err := NewOpenAISynthesizer(OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    server.URL + "/v1",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return synth
}

func TestOpenAISynthesizer_Success(t *testing.T) {
	want := pngBytes(t, 3, 3)
	var got map[string]interface{}

	synth := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"created": 1,
			"data":    []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(want)}},
		})
	})

	data, err := synth.Synthesize(context.Background(), "a red bicycle")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Error("decoded bytes differ")
	}

	checks := map[string]interface{}{
		"prompt":          "a red bicycle",
		"model":           "dall-e-3",
		"n":               float64(1),
		"size":            "1024x1024",
		"response_format": "b64_json",
	}
	for key, value := range checks {
		if got[key] != value {
			t.Errorf("request %s = %v, want %v", key, got[key], value)
		}
	}
}

func TestOpenAISynthesizer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"rate limited", 429, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, KindProviderQuotaExceeded},
		{"bad key", 401, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`, KindProviderAuthError},
		{"overloaded", 503, `{"error":{"message":"The engine is currently overloaded","type":"server_error"}}`, KindProviderWarmingUp},
		{"server error", 500, `{"error":{"message":"internal","type":"server_error"}}`, KindProviderUnavailable},
		{"missing image field", 200, `{"created":1,"data":[{"url":"https://example.com/x.png"}]}`, KindProviderBadResponse},
		{"empty data", 200, `{"created":1,"data":[]}`, KindProviderBadResponse},
		{"bad base64", 200, `{"created":1,"data":[{"b64_json":"***"}]}`, KindProviderBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := synth.Synthesize(context.Background(), "x")
			var genErr *GenerationError
			if err == nil {
				t.Fatal("expected error")
			}
			genErr = asGenerationError(StageSynthesizing, err)
			if genErr.Kind != tt.want {
				t.Errorf("kind = %s, want %s (%v)", genErr.Kind, tt.want, err)
			}
			if genErr.Stage != StageSynthesizing {
				t.Errorf("stage = %s", genErr.Stage)
			}
		})
	}
}

func TestNewOpenAISynthesizer_RequiresKey(t *testing.T) {
	if _, err := NewOpenAISynthesizer(OpenAIConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestNewAzureSynthesizer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AzureConfig
		wantErr bool
	}{
		{"valid", AzureConfig{APIKey: "k", Endpoint: "https://res.openai.azure.com", Deployment: "dalle3"}, false},
		{"missing key", AzureConfig{Endpoint: "https://res.openai.azure.com", Deployment: "dalle3"}, true},
		{"not azure", AzureConfig{APIKey: "k", Endpoint: "https://api.openai.com/v1", Deployment: "dalle3"}, true},
		{"missing deployment", AzureConfig{APIKey: "k", Endpoint: "https://res.openai.azure.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth, err := NewAzureSynthesizer(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && synth.Model() != "dalle3" {
				t.Errorf("model = %s", synth.Model())
			}
		})
	}
}
