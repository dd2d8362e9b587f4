package loader

import (
	"sync"
	"time"
)

// Stats carries the monotonic counters of one load plus the last-progress
// snapshots that drive the byte-cadence reporting. Safe for concurrent
// reads (the status endpoint polls a running load).
type Stats struct {
	mu sync.Mutex

	LoadID    string
	Table     string
	StartedAt time.Time

	totalRows   int64
	totalErrors int64
	committed   int64
	totalBytes  int64

	lastProgressBytes int64
}

// Snapshot is a consistent copy of the counters.
type Snapshot struct {
	LoadID      string        `json:"loadId"`
	Table       string        `json:"table"`
	TotalRows   int64         `json:"totalRows"`
	TotalErrors int64         `json:"totalErrors"`
	Committed   int64         `json:"committed"`
	TotalBytes  int64         `json:"totalBytes"`
	Elapsed     time.Duration `json:"elapsed"`
}

func (s *Stats) addRow(bytes int64) {
	s.mu.Lock()
	s.totalRows++
	s.totalBytes += bytes
	s.mu.Unlock()
}

func (s *Stats) addError() int64 {
	s.mu.Lock()
	s.totalErrors++
	n := s.totalErrors
	s.mu.Unlock()
	return n
}

func (s *Stats) addCommitted(n int) {
	s.mu.Lock()
	s.committed += int64(n)
	s.mu.Unlock()
}

// progressDue reports whether intervalBytes have accumulated since the
// last progress line, and advances the snapshot when they have.
func (s *Stats) progressDue(intervalBytes int64) bool {
	if intervalBytes <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalBytes-s.lastProgressBytes < intervalBytes {
		return false
	}
	s.lastProgressBytes = s.totalBytes
	return true
}

// Snapshot returns a consistent copy for logging or the status endpoint.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		LoadID:      s.LoadID,
		Table:       s.Table,
		TotalRows:   s.totalRows,
		TotalErrors: s.totalErrors,
		Committed:   s.committed,
		TotalBytes:  s.totalBytes,
		Elapsed:     time.Since(s.StartedAt),
	}
}
