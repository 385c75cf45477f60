package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI-compatible image endpoint.
type OpenAIConfig struct {
	// APIKey is the OpenAI (or Azure OpenAI) key (required).
	APIKey string

	// BaseURL is the API endpoint (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the image model to use (default: dall-e-3).
	Model string

	HTTPClient *http.Client
}

// AzureConfig configures an Azure OpenAI image deployment.
type AzureConfig struct {
	APIKey     string
	Endpoint   string
	Deployment string
	APIVersion string
	HTTPClient *http.Client
}

// OpenAISynthesizer implements Synthesizer against the images/generations
// endpoint of OpenAI or Azure OpenAI. It always asks for one 1024x1024 image
// in b64_json so nothing has to be downloaded afterwards.
//
// Thread Safety: OpenAISynthesizer is safe for concurrent use.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
}

// NewOpenAISynthesizer creates a synthesizer for api.openai.com or any
// compatible endpoint.
func NewOpenAISynthesizer(cfg OpenAIConfig) (*OpenAISynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("imagegen: OpenAI API key is required for image generation")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = openai.CreateImageModelDallE3
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}, nil
}

// NewAzureSynthesizer creates a synthesizer for an Azure OpenAI deployment.
// Azure addresses models by deployment name, so every model maps to it.
func NewAzureSynthesizer(cfg AzureConfig) (*OpenAISynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("imagegen: API key is required for Azure image generation")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("imagegen: Azure endpoint is required; set AZURE_OPENAI_ENDPOINT")
	}
	if !IsAzureEndpoint(cfg.Endpoint) {
		return nil, fmt.Errorf("imagegen: endpoint (%s) is not an Azure OpenAI endpoint", cfg.Endpoint)
	}
	if cfg.Deployment == "" {
		return nil, errors.New("imagegen: Azure deployment name is required; set AZURE_OPENAI_DEPLOYMENT")
	}

	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		clientConfig.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	clientConfig.AzureModelMapperFunc = func(string) string { return deployment }
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  deployment,
	}, nil
}

// Model returns the configured model or deployment name.
func (s *OpenAISynthesizer) Model() string {
	return s.model
}

// Synthesize generates one image and decodes the base64 payload.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, prompt string) ([]byte, error) {
	req := openai.ImageRequest{
		Prompt:         prompt,
		Model:          s.model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}

	response, err := s.client.CreateImage(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(StageSynthesizing, err)
	}

	if len(response.Data) == 0 {
		return nil, badResponse("response has no data entries")
	}
	encoded := response.Data[0].B64JSON
	if encoded == "" {
		return nil, badResponse("response is missing b64_json")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, newProviderError(KindProviderBadResponse,
			ProviderFailure{Stage: StageSynthesizing, Status: http.StatusOK, Raw: "b64_json is not valid base64"}, err)
	}
	if len(data) == 0 {
		return nil, badResponse("decoded image is empty")
	}
	return data, nil
}

func badResponse(reason string) *GenerationError {
	return newProviderError(KindProviderBadResponse,
		ProviderFailure{Stage: StageSynthesizing, Status: http.StatusOK, Raw: reason}, nil)
}

// classifyOpenAIError reads the status code and error code go-openai parsed
// from the response. Errors raised before any response (DNS, TLS, timeouts)
// have neither and fall back to message inspection.
func classifyOpenAIError(stage Stage, err error) *GenerationError {
	failure := ProviderFailure{Stage: stage, Raw: err.Error()}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		failure.Status = apiErr.HTTPStatusCode
		failure.Raw = apiErr.Message
		if code, ok := apiErr.Code.(string); ok {
			failure.Code = code
		}
		if failure.Code == "" && strings.Contains(apiErr.Type, "quota") {
			failure.Code = apiErr.Type
		}
	case errors.As(err, &reqErr):
		failure.Status = reqErr.HTTPStatusCode
		if len(reqErr.Body) > 0 {
			failure.Raw = string(reqErr.Body)
		}
	}
	return classifyFailure(failure, err)
}
