package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"aichat_backend/core"

	"github.com/kardianos/service"
)

const serviceStopTimeout = 45 * time.Second

// program adapts the application to the OS service manager.
type program struct {
	app         *application
	closeLogger func()
	exit        chan struct{}
	exitCode    int
}

func (p *program) Start(s service.Service) error {
	app, closeLogger, code := setup()
	if app == nil {
		return fmt.Errorf("startup failed: %s", core.ExitCodeName(code))
	}
	p.app = app
	p.closeLogger = closeLogger
	p.exit = make(chan struct{})

	go func() {
		defer close(p.exit)
		p.exitCode = p.app.Run()
		p.closeLogger()
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.app == nil {
		return nil
	}
	p.app.shutdown.Trigger(syscall.SIGTERM)

	select {
	case <-p.exit:
		return nil
	case <-time.After(serviceStopTimeout):
		return errors.New("timeout waiting for service to stop")
	}
}

// serviceConfig describes the installed service. The service manager starts
// it with the "run" command from the executable's directory so .env and the
// relative data paths resolve the same way as in the foreground.
func serviceConfig() *service.Config {
	cfg := &service.Config{
		Name:        "aichat-backend",
		DisplayName: "AI Chat Backend",
		Description: "Image generation and chat API",
		Arguments:   []string{"run"},
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
	if exe, err := os.Executable(); err == nil {
		cfg.WorkingDirectory = filepath.Dir(exe)
	}
	return cfg
}

func newService() (service.Service, error) {
	s, err := service.New(&program{}, serviceConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

// handleServiceCommand runs args[1] if it is a service command and reports
// whether it did. Without a recognized command the caller serves in the
// foreground.
func handleServiceCommand(args []string) bool {
	if len(args) < 2 {
		return false
	}

	command := args[1]
	switch command {
	case "help", "-h", "--help", "-help":
		printServiceUsage()
		return true
	case "install", "uninstall", "remove", "start", "stop", "restart", "status", "run":
	default:
		return false
	}

	s, err := newService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(core.ExitCodeError)
	}

	switch command {
	case "run":
		err = s.Run()
	case "status":
		err = printServiceStatus(s)
	case "uninstall", "remove":
		err = service.Control(s, "uninstall")
	default:
		err = service.Control(s, command)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(core.ExitCodeError)
	}
	if command != "run" && command != "status" {
		fmt.Printf("Service %s: ok\n", command)
	}
	return true
}

func printServiceStatus(s service.Service) error {
	status, err := s.Status()
	if err != nil {
		return fmt.Errorf("failed to get service status: %w", err)
	}
	switch status {
	case service.StatusRunning:
		fmt.Println("Service is running")
	case service.StatusStopped:
		fmt.Println("Service is stopped")
	default:
		fmt.Println("Service status unknown")
	}
	return nil
}

func printServiceUsage() {
	fmt.Println("aichat-backend service management")
	fmt.Println()
	fmt.Println("Usage: aichat-backend <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  install    Install as an OS service")
	fmt.Println("  uninstall  Remove the service (alias: remove)")
	fmt.Println("  start      Start the service")
	fmt.Println("  stop       Stop the service")
	fmt.Println("  restart    Restart the service")
	fmt.Println("  status     Show the service status")
	fmt.Println("  run        Run under the service manager (or in the foreground)")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Run without arguments to serve in the foreground.")
}
