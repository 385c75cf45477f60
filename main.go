package main

import (
	"context"
	"fmt"
	"os"

	"aichat_backend/core"
	"aichat_backend/logging"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const envPath = ".env"

func main() {
	if handleServiceCommand(os.Args) {
		return
	}
	os.Exit(run())
}

// run serves in the foreground and returns the process exit code.
func run() int {
	app, closeLogger, code := setup()
	if app == nil {
		return code
	}
	defer closeLogger()

	app.shutdown.Start()
	return app.Run()
}

// setup loads configuration and wires the application. On failure it returns
// a nil application and the exit code to use.
func setup() (*application, func(), int) {
	if err := godotenv.Load(envPath); err != nil {
		// Logger isn't initialized yet
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := core.LoadConfig()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return nil, nil, core.ExitCodeError
	}
	core.PrintCheckResults(os.Stdout, core.CheckConfig(cfg, envPath))

	logger, err := logging.NewLogger(cfg.DevMode, cfg.LogFile)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return nil, nil, core.ExitCodeError
	}
	closeLogger := func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Printf("Failed to sync logger: %v\n", syncErr)
		}
	}

	logger.Info("Configuration loaded",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("image_provider", cfg.ImageProvider),
		zap.Bool("image_to_image", cfg.DescriptionEnabled()),
		zap.Bool("chat", cfg.ChatEnabled()),
		zap.String("database", cfg.DatabasePath),
		zap.Duration("ai_timeout", cfg.AITimeout),
		zap.Bool("dev_mode", cfg.DevMode),
		zap.String("version", core.Version),
	)

	app, err := newApplication(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to start", zap.Error(err))
		closeLogger()
		return nil, nil, core.ExitCodeError
	}
	return app, closeLogger, core.ExitCodeSuccess
}
