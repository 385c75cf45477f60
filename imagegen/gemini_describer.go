package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig configures the vision model used by the description stage.
type GeminiConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API endpoint. Empty uses the SDK default.
	BaseURL string

	// HTTPClient carries the AI_TIMEOUT transport deadline. nil uses the SDK default.
	HTTPClient *http.Client
}

// GeminiDescriber implements Describer with Gemini's generateContent API,
// sending the instruction and the image as inline bytes in one user turn.
type GeminiDescriber struct {
	client *genai.Client
	model  string
}

// NewGeminiDescriber creates the client up front; the describer is safe for
// concurrent use.
func NewGeminiDescriber(ctx context.Context, cfg GeminiConfig) (*GeminiDescriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("imagegen: gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to create genai client: %w", err)
	}
	return &GeminiDescriber{client: client, model: cfg.Model}, nil
}

// Describe sends in to the vision model and returns its trimmed text.
func (g *GeminiDescriber) Describe(ctx context.Context, in DescribeInput) (string, error) {
	mediaType := in.MediaType
	if mediaType == "" {
		mediaType = "image/png"
	}
	parts := []*genai.Part{
		genai.NewPartFromText(in.Instruction),
		genai.NewPartFromBytes(in.Image, mediaType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", newProviderError(KindProviderEmptyResult,
			ProviderFailure{Stage: StageDescribing, Status: http.StatusOK, Raw: "model returned no text"}, nil)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// classifyGeminiError uses the APIError code and status when the SDK parsed
// an error body. Transport failures carry no structured signal and fall back
// to message inspection.
func classifyGeminiError(err error) *GenerationError {
	failure := ProviderFailure{Stage: StageDescribing}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		failure.Raw = err.Error()
		return classifyFailure(failure, err)
	}

	failure.Status, failure.Code, failure.Raw = apiErr.Code, apiErr.Status, apiErr.Message
	// An invalid key is reported as 400 INVALID_ARGUMENT; the ErrorInfo
	// reason is the only structured signal that tells it apart.
	if reason := errorInfoReason(apiErr.Details); reason != "" {
		failure.Code = reason
	}
	return classifyFailure(failure, err)
}

func errorInfoReason(details []map[string]any) string {
	for _, d := range details {
		if reason, ok := d["reason"].(string); ok && reason != "" {
			return reason
		}
	}
	return ""
}
