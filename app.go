package main

import (
	"context"
	"fmt"
	"time"

	"aichat_backend/chat"
	"aichat_backend/core"
	"aichat_backend/db"
	"aichat_backend/imagegen"
	"aichat_backend/logging"
	"aichat_backend/metrics"
	"aichat_backend/shutdown"
	"aichat_backend/webui"
	"aichat_backend/webui/auth"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// application holds the wired server and what has to be released on exit.
type application struct {
	logger   *logging.Logger
	server   *webui.Server
	shutdown *shutdown.Manager
}

// newApplication opens storage, builds the providers and pipelines and
// registers every cleanup step. On error everything opened so far is closed.
func newApplication(ctx context.Context, cfg *core.Config, logger *logging.Logger) (app *application, err error) {
	manager := shutdown.NewManager(logger.Zap())
	defer func() {
		if err != nil {
			_ = manager.Shutdown()
		}
	}()

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	manager.Register("database", 20, func(context.Context) error {
		return database.Close()
	})
	repo := db.NewRepository(database)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	store := metrics.NewStore(metrics.StoreConfig{HistoryCapacity: 200, Version: core.Version}, time.Now())
	collector, err := metrics.NewCollector(registry, store)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	pipeline, err := newPipeline(ctx, cfg, repo, logger, collector, manager)
	if err != nil {
		return nil, err
	}

	var chatService webui.ChatService
	if cfg.ChatEnabled() {
		completer, err := chat.NewGroqClient(chat.GroqConfig{
			APIKey:     cfg.GroqAPIKey,
			BaseURL:    cfg.GroqBaseURL,
			Model:      cfg.ChatModel,
			HTTPClient: core.GetHTTPClient(cfg.AITimeout),
		})
		if err != nil {
			return nil, err
		}
		chatService = chat.NewService(completer, repo, logger.Named("chat"), collector, cfg.ChatHistoryLimit)
	} else {
		logger.Warn("GROQ_API_KEY not set, chat routes will answer 503")
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, err
	}

	serverConfig := webui.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	serverConfig.DevMode = cfg.DevMode
	serverConfig.AllowedOrigins = webui.SplitOrigins(cfg.FrontendURL)
	serverConfig.RateLimitRequests = cfg.RateLimitRequests
	serverConfig.RateLimitWindow = time.Duration(cfg.RateLimitWindowMinutes) * time.Minute
	serverConfig.TrustProxy = cfg.TrustProxy
	serverConfig.Version = core.Version
	// Synthesis alone may take up to AITimeout, plus description and storage.
	if minWrite := 2*cfg.AITimeout + 30*time.Second; serverConfig.WriteTimeout < minWrite {
		serverConfig.WriteTimeout = minWrite
	}

	server, err := webui.NewServer(serverConfig, webui.Dependencies{
		Images:   pipeline,
		Chat:     chatService,
		Accounts: auth.NewHandlers(repo, tokens, logger.Named("auth").Zap()),
		Auth:     auth.NewMiddleware(tokens, logger.Named("auth").Zap()),
		Database: database,
		Metrics:  collector,
		Gatherer: registry,
	}, logger.Named("http").Zap())
	if err != nil {
		return nil, err
	}
	manager.Register("http", 0, server.Shutdown)

	return &application{logger: logger, server: server, shutdown: manager}, nil
}

// newPipeline builds the image pipeline for the configured providers.
func newPipeline(ctx context.Context, cfg *core.Config, repo *db.Repository, logger *logging.Logger, collector *metrics.Collector, manager *shutdown.Manager) (*imagegen.Pipeline, error) {
	synthesizer, err := newSynthesizer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s synthesizer: %w", cfg.ImageProvider, err)
	}

	policies, err := retryPolicies(cfg)
	if err != nil {
		return nil, err
	}

	orphans, err := imagegen.NewDirOrphanSink(cfg.OrphanDir)
	if err != nil {
		return nil, err
	}

	journal := imagegen.NewAsyncFailureJournal(repo, logger.Named("journal"), 0)
	manager.Register("failure-journal", 10, func(context.Context) error {
		journal.Close()
		return nil
	})

	opts := []imagegen.Option{
		imagegen.WithValidator(imagegen.NewValidator(cfg.MaxUploadSize)),
		imagegen.WithFailureJournal(journal),
		imagegen.WithOrphanSink(orphans),
		imagegen.WithMetrics(collector),
		imagegen.WithLogger(logger.Named("imagegen")),
		imagegen.WithRetryPolicies(policies),
		imagegen.WithHistoryLimit(cfg.ImageHistoryLimit),
	}

	if cfg.DescriptionEnabled() {
		describer, err := imagegen.NewGeminiDescriber(ctx, imagegen.GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.VisionModel,
			BaseURL:    cfg.GeminiBaseURL,
			HTTPClient: core.GetHTTPClient(cfg.AITimeout),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini describer: %w", err)
		}
		opts = append(opts, imagegen.WithDescriber(describer))
	} else {
		logger.Warn("GEMINI_API_KEY not set, image-to-image requests will fail")
	}

	return imagegen.NewPipeline(synthesizer, imagegen.NewRepositoryGateway(repo), opts...)
}

func newSynthesizer(cfg *core.Config) (imagegen.Synthesizer, error) {
	switch cfg.ImageProvider {
	case core.ImageProviderOpenAI:
		return imagegen.NewOpenAISynthesizer(imagegen.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.ImageLLMURL,
			Model:      cfg.ImageGenModel,
			HTTPClient: core.GetHTTPClient(cfg.AITimeout),
		})
	case core.ImageProviderAzure:
		return imagegen.NewAzureSynthesizer(imagegen.AzureConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Endpoint:   cfg.AzureOpenAIEndpoint,
			Deployment: cfg.AzureOpenAIDeployment,
			APIVersion: cfg.AzureOpenAIAPIVersion,
			HTTPClient: core.GetHTTPClient(cfg.AITimeout),
		})
	default:
		return imagegen.NewHuggingFaceSynthesizer(imagegen.HuggingFaceConfig{
			APIKey:  cfg.HuggingFaceAPIKey,
			BaseURL: cfg.HuggingFaceBaseURL,
			Model:   cfg.HuggingFaceModel,
			Timeout: cfg.AITimeout,
		})
	}
}

// retryPolicies applies RETRY_* to the synthesis stage, then the optional
// PIPELINE_CONFIG file on top.
func retryPolicies(cfg *core.Config) (imagegen.StagePolicies, error) {
	policies := imagegen.DefaultStagePolicies()
	if cfg.RetryMaxAttempts > 0 {
		policies.Synthesize.MaxAttempts = cfg.RetryMaxAttempts
		policies.Synthesize.InitialDelay = cfg.RetryInitialDelay
		policies.Synthesize.MaxDelay = cfg.RetryMaxDelay
	}
	if cfg.PipelineConfigPath == "" {
		return policies, nil
	}
	return imagegen.LoadRetryPolicyFile(cfg.PipelineConfigPath, policies)
}

// Run serves until a shutdown signal arrives or the listener fails, runs the
// cleanups and returns the exit code.
func (a *application) Run() int {
	ctx := a.shutdown.Context()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start(ctx)
	}()
	a.logger.Info("Starting server", zap.String("addr", a.server.Addr()))

	exitCode := core.ExitCodeSuccess
	select {
	case <-ctx.Done():
		exitCode = core.ExitCodeForSignal(a.shutdown.Signal())
	case err := <-serveErr:
		if err != nil {
			a.logger.Error("Server stopped", zap.Error(err))
			exitCode = core.ExitCodeError
		}
	}

	if err := a.shutdown.Shutdown(); err != nil && exitCode == core.ExitCodeSuccess {
		exitCode = core.ExitCodeError
	}
	a.logger.Info("Goodbye!", zap.Int("exit_code", exitCode), zap.String("reason", core.ExitCodeName(exitCode)))
	return exitCode
}
