package core

import (
	"net/http"
	"os"
	"strings"
	"time"
)

// Image synthesis backends selectable with IMAGE_PROVIDER.
const (
	ImageProviderHuggingFace = "huggingface"
	ImageProviderOpenAI      = "openai"
	ImageProviderAzure       = "azure"
)

// DefaultMaxUploadSize is the byte ceiling for uploaded source images (10 MiB).
const DefaultMaxUploadSize int64 = 10 << 20

// Config holds all configuration values
type Config struct {
	// Server Configuration
	Host        string
	Port        int
	DevMode     bool
	LogFile     string
	FrontendURL string

	// Storage
	DatabasePath string
	OrphanDir    string

	// Authentication
	JWTSecret string
	JWTTTL    time.Duration

	// Chat (Groq, OpenAI-compatible API)
	GroqAPIKey  string
	GroqBaseURL string
	ChatModel   string

	// Description stage (Gemini vision)
	GeminiAPIKey  string
	GeminiBaseURL string
	VisionModel   string

	// Synthesis stage
	ImageProvider         string
	OpenAIAPIKey          string
	ImageLLMURL           string
	ImageGenModel         string
	AzureOpenAIEndpoint   string
	AzureOpenAIDeployment string
	AzureOpenAIAPIVersion string
	HuggingFaceAPIKey     string
	HuggingFaceBaseURL    string
	HuggingFaceModel      string

	// Pipeline limits
	MaxUploadSize     int64
	AITimeout         time.Duration
	ImageHistoryLimit int
	ChatHistoryLimit  int

	// Retry policy (0 attempts keeps the pipeline single-shot)
	RetryMaxAttempts   int
	RetryInitialDelay  time.Duration
	RetryMaxDelay      time.Duration
	PipelineConfigPath string

	// Admission control
	RateLimitRequests      int
	RateLimitWindowMinutes int
	TrustProxy             bool
}

// LoadConfig reads the configuration from the environment. Callers that want
// a .env file honoured load it with godotenv before calling this.
//
// The first validation failure is returned as a *ConfigError.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Host:        GetEnvOrDefault("HOST", "0.0.0.0"),
		Port:        ParseIntEnv("PORT", 5000),
		DevMode:     ParseBoolEnv("DEV_MODE", false),
		LogFile:     GetEnvOrDefault("LOG_FILE", "app.log"),
		FrontendURL: GetEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),

		DatabasePath: GetEnvOrDefault("DATABASE_PATH", "data/aichat.db"),
		OrphanDir:    GetEnvOrDefault("ORPHAN_DIR", "orphans"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    time.Duration(ParseIntEnv("JWT_TTL_HOURS", 168)) * time.Hour,

		GroqAPIKey:  os.Getenv("GROQ_API_KEY"),
		GroqBaseURL: GetEnvOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		ChatModel:   GetEnvOrDefault("CHAT_MODEL", "llama3-8b-8192"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: os.Getenv("GEMINI_BASE_URL"),
		VisionModel:   GetEnvOrDefault("VISION_MODEL", "gemini-1.5-flash"),

		ImageProvider:         strings.ToLower(GetEnvOrDefault("IMAGE_PROVIDER", ImageProviderHuggingFace)),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		ImageLLMURL:           GetEnvOrDefault("IMAGE_LLM_URL", "https://api.openai.com/v1"),
		ImageGenModel:         GetEnvOrDefault("IMAGE_GEN_MODEL", "dall-e-3"),
		AzureOpenAIEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureOpenAIDeployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
		AzureOpenAIAPIVersion: GetEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),
		HuggingFaceAPIKey:     os.Getenv("HUGGINGFACE_API_KEY"),
		HuggingFaceBaseURL:    GetEnvOrDefault("HUGGINGFACE_BASE_URL", "https://api-inference.huggingface.co/models"),
		HuggingFaceModel:      GetEnvOrDefault("HUGGINGFACE_MODEL", "stabilityai/stable-diffusion-xl-base-1.0"),

		MaxUploadSize:     ParseInt64Env("MAX_UPLOAD_SIZE", DefaultMaxUploadSize),
		AITimeout:         ParseDurationEnv("AI_TIMEOUT", 120),
		ImageHistoryLimit: ParseIntEnv("IMAGE_HISTORY_LIMIT", 20),
		ChatHistoryLimit:  ParseIntEnv("CHAT_HISTORY_LIMIT", 50),

		RetryMaxAttempts:   ParseIntEnv("RETRY_MAX_ATTEMPTS", 0),
		RetryInitialDelay:  ParseMillisEnv("RETRY_INITIAL_DELAY_MS", 1000),
		RetryMaxDelay:      ParseMillisEnv("RETRY_MAX_DELAY_MS", 10000),
		PipelineConfigPath: os.Getenv("PIPELINE_CONFIG"),

		RateLimitRequests:      ParseIntEnv("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindowMinutes: ParseIntEnv("RATE_LIMIT_WINDOW_MINUTES", 15),
		TrustProxy:             ParseBoolEnv("TRUST_PROXY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingConfig("JWT_SECRET")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidValue("PORT", "must be between 1 and 65535")
	}
	if c.MaxUploadSize <= 0 {
		return ErrInvalidValue("MAX_UPLOAD_SIZE", "must be positive")
	}
	if c.ImageHistoryLimit <= 0 {
		return ErrInvalidValue("IMAGE_HISTORY_LIMIT", "must be positive")
	}
	if c.ChatHistoryLimit <= 0 {
		return ErrInvalidValue("CHAT_HISTORY_LIMIT", "must be positive")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindowMinutes <= 0 {
		return ErrInvalidValue("RATE_LIMIT_REQUESTS", "rate limit and window must be positive")
	}

	switch c.ImageProvider {
	case ImageProviderHuggingFace:
		if c.HuggingFaceAPIKey == "" {
			return ErrMissingAuth(ImageProviderHuggingFace)
		}
	case ImageProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return ErrMissingAuth(ImageProviderOpenAI)
		}
	case ImageProviderAzure:
		if c.OpenAIAPIKey == "" {
			return ErrMissingAuth(ImageProviderAzure)
		}
		if c.AzureOpenAIEndpoint == "" || c.AzureOpenAIDeployment == "" {
			return ErrMissingConfig("AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_DEPLOYMENT")
		}
	default:
		return ErrInvalidValue("IMAGE_PROVIDER", "must be one of huggingface, openai, azure")
	}

	return nil
}

// ChatEnabled reports whether a chat provider key is configured.
func (c *Config) ChatEnabled() bool {
	return c.GroqAPIKey != ""
}

// DescriptionEnabled reports whether the image-to-image branch can run.
func (c *Config) DescriptionEnabled() bool {
	return c.GeminiAPIKey != ""
}

// GetHTTPClient returns an HTTP client for calls to external AI APIs.
func GetHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}
