package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Manager turns the first SIGINT/SIGTERM into a cancelled context, remembers
// which signal it was for the exit code, and runs the registry on Shutdown.
// A second signal forces the process out.
//
//	manager := shutdown.NewManager(logger)
//	manager.Register("database", 20, func(ctx context.Context) error {
//	    return database.Close()
//	})
//	manager.Start()
//	<-manager.Context().Done()
//	err := manager.Shutdown()
//	os.Exit(core.ExitCodeForSignal(manager.Signal()))
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	started  bool
	shutdown bool
	received os.Signal

	ctx    context.Context
	cancel context.CancelFunc

	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal
	forceFn  func()
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout bounds the whole cleanup sequence (default 30s).
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithForceExit replaces os.Exit(1) on the second signal.
func WithForceExit(fn func()) ManagerOption {
	return func(m *Manager) {
		m.forceFn = fn
	}
}

// NewManager creates a Manager. Call Start to listen for OS signals.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger:   logger,
		timeout:  30 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 2),
		forceFn:  func() { os.Exit(1) },
	}
	for _, opt := range opts {
		opt(m)
	}

	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("Received second signal, forcing immediate shutdown")
		m.forceFn()
	})
	return m
}

// Context is cancelled when the first signal arrives or Trigger is called.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup step. Lower priorities run first.
func (m *Manager) Register(name string, priority int, fn Func) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered shutdown handler", zap.String("name", name), zap.Int("priority", priority))
}

// Start listens for SIGINT and SIGTERM. Repeated calls are no-ops.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range m.sigChan {
			m.Trigger(sig)
		}
	}()
}

// Trigger behaves as if sig had been delivered. The service control manager
// uses it to stop the server.
func (m *Manager) Trigger(sig os.Signal) {
	if m.signals.Increment() != 1 {
		return
	}
	m.mu.Lock()
	m.received = sig
	m.mu.Unlock()

	m.logger.Info("Received shutdown signal, initiating graceful shutdown", zap.Stringer("signal", sig))
	m.cancel()
}

// Signal returns the first signal received, or nil if none was.
func (m *Manager) Signal() os.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

// Shutdown runs the registered cleanups within the timeout. Only the first
// call does anything; later calls return nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	started := m.started
	m.mu.Unlock()

	if started {
		signal.Stop(m.sigChan)
	}
	m.cancel()

	startTime := time.Now()
	m.logger.Info("Executing cleanup functions",
		zap.Duration("timeout", m.timeout),
		zap.Strings("handlers", m.registry.Names()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	errs := m.registry.Shutdown(ctx)
	for _, err := range errs {
		m.logger.Error("Cleanup function failed", zap.Error(err))
	}

	duration := time.Since(startTime)
	if len(errs) > 0 {
		m.logger.Error("Shutdown completed with errors", zap.Duration("duration", duration), zap.Int("error_count", len(errs)))
		return fmt.Errorf("shutdown had %d errors", len(errs))
	}
	m.logger.Info("Graceful shutdown completed", zap.Duration("duration", duration))
	return nil
}

// RegisteredHandlers returns the cleanup names in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}
