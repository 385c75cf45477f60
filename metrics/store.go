// Package metrics provides the Store for in-memory run statistics.
package metrics

import (
	"sync"
	"time"
)

// Store keeps a bounded history of recent runs plus running totals.
// It is safe for concurrent use.
//
// Usage:
//
//	store := NewStore(DefaultStoreConfig(), time.Now())
//	store.RecordRun(rec)
//	stats := store.Stats()
type Store struct {
	mu sync.RWMutex

	history []RunRecord // circular buffer of recent runs
	cap     int
	head    int // write index
	size    int

	totalRuns    int64
	totalSuccess int64
	totalErrors  int64
	byType       map[string]*runTypeAccum
	byKind       map[string]int64

	startTime time.Time
	version   string
}

type runTypeAccum struct {
	count         int64
	successCount  int64
	totalDuration time.Duration
}

// StoreConfig configures the Store.
type StoreConfig struct {
	// HistoryCapacity is the max number of runs to retain
	HistoryCapacity int
	Version         string
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		HistoryCapacity: 100,
		Version:         "0.0.0",
	}
}

// NewStore creates a Store. startTime is used to report uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = 100
	}

	return &Store{
		history:   make([]RunRecord, capacity),
		cap:       capacity,
		byType:    make(map[string]*runTypeAccum),
		byKind:    make(map[string]int64),
		startTime: startTime,
		version:   config.Version,
	}
}

// RecordRun adds a finished run.
func (s *Store) RecordRun(rec RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = rec
	s.head = (s.head + 1) % s.cap
	if s.size < s.cap {
		s.size++
	}

	s.totalRuns++
	switch rec.Status {
	case RunStatusSuccess:
		s.totalSuccess++
	case RunStatusError:
		s.totalErrors++
		if rec.ErrorKind != "" {
			s.byKind[rec.ErrorKind]++
		}
	}

	accum, ok := s.byType[rec.Type]
	if !ok {
		accum = &runTypeAccum{}
		s.byType[rec.Type] = accum
	}
	accum.count++
	if rec.Status == RunStatusSuccess {
		accum.successCount++
	}
	accum.totalDuration += rec.Duration
}

// Stats returns aggregated statistics.
func (s *Store) Stats() RunStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := RunStats{
		TotalRuns:    s.totalRuns,
		TotalSuccess: s.totalSuccess,
		TotalErrors:  s.totalErrors,
		ByType:       make(map[string]*RunTypeStats, len(s.byType)),
		ErrorsByKind: make(map[string]int64, len(s.byKind)),
	}

	for runType, accum := range s.byType {
		var successRate float64
		var avgDuration time.Duration
		if accum.count > 0 {
			successRate = float64(accum.successCount) / float64(accum.count) * 100
			avgDuration = accum.totalDuration / time.Duration(accum.count)
		}
		stats.ByType[runType] = &RunTypeStats{
			Count:       accum.count,
			SuccessRate: successRate,
			AvgDuration: avgDuration,
		}
	}
	for kind, n := range s.byKind {
		stats.ErrorsByKind[kind] = n
	}

	return stats
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []RunRecord{}
	}
	if limit > s.size {
		limit = s.size
	}

	result := make([]RunRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - 1 - i + s.cap) % s.cap
		result[i] = s.history[idx]
	}
	return result
}

// Uptime is the time since the store was created.
func (s *Store) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Version returns the configured application version.
func (s *Store) Version() string {
	return s.version
}
