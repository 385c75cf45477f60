package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
)

// HuggingFaceConfig configures the hosted inference API.
type HuggingFaceConfig struct {
	APIKey string

	// BaseURL is the models root (default: https://api-inference.huggingface.co/models).
	BaseURL string

	// Model is the repository id, e.g. stabilityai/stable-diffusion-xl-base-1.0.
	Model string

	// Timeout bounds a call when the context carries no deadline.
	Timeout time.Duration
}

// HuggingFaceSynthesizer implements Synthesizer with the HuggingFace
// text-to-image inference API, which answers with raw image bytes.
//
// Thread Safety: HuggingFaceSynthesizer is safe for concurrent use.
type HuggingFaceSynthesizer struct {
	client   *fasthttp.Client
	endpoint string
	apiKey   string
	timeout  time.Duration
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfParameters struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// NewHuggingFaceSynthesizer validates cfg and builds a pooled fasthttp client.
func NewHuggingFaceSynthesizer(cfg HuggingFaceConfig) (*HuggingFaceSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("imagegen: HuggingFace API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("imagegen: HuggingFace model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-inference.huggingface.co/models"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &HuggingFaceSynthesizer{
		client: &fasthttp.Client{
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			// Generated images can be several MB.
			MaxResponseBodySize: 32 << 20,
		},
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Model, "/"),
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
	}, nil
}

// Synthesize posts the prompt and returns the image bytes from the body.
func (h *HuggingFaceSynthesizer) Synthesize(ctx context.Context, prompt string) ([]byte, error) {
	body, err := sonic.Marshal(hfRequest{
		Inputs:     prompt,
		Parameters: hfParameters{Width: 1024, Height: 1024},
		Options:    hfOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to encode huggingface request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(h.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Accept", "image/png")
	req.SetBody(body)

	// fasthttp has no context support; the context deadline becomes the
	// request deadline and cancellation is checked before sending.
	if err := ctx.Err(); err != nil {
		return nil, classifyFailure(ProviderFailure{Stage: StageSynthesizing, Raw: err.Error()}, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		err = h.client.DoDeadline(req, resp, deadline)
	} else {
		err = h.client.DoTimeout(req, resp, h.timeout)
	}
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, classifyFailure(ProviderFailure{Stage: StageSynthesizing, Raw: err.Error()}, err)
	}

	status := resp.StatusCode()
	payload := append([]byte(nil), resp.Body()...)
	contentType := string(resp.Header.ContentType())

	if status < 200 || status >= 300 {
		failure := ProviderFailure{Stage: StageSynthesizing, Status: status, Raw: string(payload)}
		var apiErr hfError
		if sonic.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			failure.Raw = apiErr.Error
			if apiErr.EstimatedTime > 0 {
				failure.Code = "MODEL_LOADING"
			}
		}
		return nil, classifyFailure(failure, fmt.Errorf("huggingface returned HTTP %d", status))
	}

	if len(payload) == 0 {
		return nil, badResponse("response body is empty")
	}
	if strings.HasPrefix(contentType, "application/json") {
		return nil, badResponse("expected image bytes, got JSON: " + string(payload))
	}
	return payload, nil
}
