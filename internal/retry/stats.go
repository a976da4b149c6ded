package retry

import "sync"

// Stats is the Retry Stats of §3: cumulative totals, updated additively.
// Exposed as a snapshot struct so callers can log/export it without holding
// the internal mutex.
type Stats struct {
	mu sync.Mutex

	totalAttempts     int64
	successfulRetries int64
	failedRetries     int64
	sumDelayMs        int64
	delayCount        int64
	maxDelayMs        int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	TotalAttempts     int64
	SuccessfulRetries int64
	FailedRetries     int64
	MeanDelayMs       float64
	MaxDelayMs        int64
}

// recordAttempt counts one retry actually taken (Decide returned Retry),
// not every failed op invocation -- the initial attempt is never a retry.
func (s *Stats) recordAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalAttempts++
}

func (s *Stats) recordDelay(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sumDelayMs += ms
	s.delayCount++
	if ms > s.maxDelayMs {
		s.maxDelayMs = ms
	}
}

func (s *Stats) recordSuccessAfterRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successfulRetries++
}

func (s *Stats) recordFailedRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedRetries++
}

// Snapshot returns the current cumulative totals.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mean float64
	if s.delayCount > 0 {
		mean = float64(s.sumDelayMs) / float64(s.delayCount)
	}
	return Snapshot{
		TotalAttempts:     s.totalAttempts,
		SuccessfulRetries: s.successfulRetries,
		FailedRetries:     s.failedRetries,
		MeanDelayMs:       mean,
		MaxDelayMs:        s.maxDelayMs,
	}
}
