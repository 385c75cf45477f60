package db

import (
	"context"
	"sync"
	"time"
)

// DefaultChannelCapacity bounds queued writes before Write starts dropping.
const DefaultChannelCapacity = 100

// WriteHandler persists one queued item. Errors are reported to OnError.
type WriteHandler func(ctx context.Context, item interface{}) error

// AsyncWriter moves best-effort writes off the request path.
// Items are handled in order by a single goroutine; when the queue is full
// Write returns false and the caller decides whether to write synchronously.
type AsyncWriter struct {
	writeChan chan interface{}
	handler   WriteHandler
	onError   func(error)
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	mu        sync.Mutex
}

// NewAsyncWriter creates a writer with the given queue capacity.
// onError may be nil.
func NewAsyncWriter(handler WriteHandler, capacity int, onError func(error)) *AsyncWriter {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncWriter{
		writeChan: make(chan interface{}, capacity),
		handler:   handler,
		onError:   onError,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background goroutine. Calling Start twice is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.processWrites()
}

func (w *AsyncWriter) processWrites() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case item := <-w.writeChan:
			w.handle(item)
		}
	}
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case item := <-w.writeChan:
			w.handle(item)
		default:
			return
		}
	}
}

func (w *AsyncWriter) handle(item interface{}) {
	// The writer's own context is cancelled during drain, so handlers get a
	// fresh bounded one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.handler(ctx, item); err != nil && w.onError != nil {
		w.onError(err)
	}
}

// Write queues item without blocking. It returns false if the writer is not
// started or the queue is full.
//
// The started check and the send happen under w.mu, so an item accepted here
// is always in the queue before Stop cancels the worker and gets drained.
func (w *AsyncWriter) Write(item interface{}) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return false
	}
	select {
	case w.writeChan <- item:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued items.
func (w *AsyncWriter) Pending() int {
	return len(w.writeChan)
}

// Stop flushes queued items and waits for the goroutine to exit.
// Writes after Stop return false.
func (w *AsyncWriter) Stop() {
	w.mu.Lock()
	w.started = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}

// IsStarted reports whether Start has been called.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}
