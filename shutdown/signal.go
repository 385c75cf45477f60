package shutdown

import "sync"

// SignalCounter counts shutdown signals: the first starts a graceful
// shutdown, reaching forceAfter calls onForce.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	forceAfter int
	onForce    func()
}

// NewSignalCounter creates a counter that calls onForce once forceAfter
// signals have been seen.
//
// Parameters:
//   - forceAfter: signal count that triggers onForce (2 means a second Ctrl+C)
//   - onForce: called from Increment with the lock held; may be nil
//
// Example:
//
//	counter := shutdown.NewSignalCounter(2, func() { os.Exit(core.ExitCodeError) })
//	for range sigChan {
//	    if counter.Increment() == 1 {
//	        go manager.Shutdown()
//	    }
//	}
func NewSignalCounter(forceAfter int, onForce func()) *SignalCounter {
	return &SignalCounter{forceAfter: forceAfter, onForce: onForce}
}

// Increment records one signal and returns the new count. onForce runs with
// the lock held, so it should exit the process or return quickly.
func (s *SignalCounter) Increment() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.count >= s.forceAfter && s.onForce != nil {
		s.onForce()
	}
	return s.count
}

// Count returns the number of signals seen.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
