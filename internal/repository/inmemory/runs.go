package inmemory

import (
	"context"
	"sync"
	"time"
)

// RunStore remembers the last successful scheduler pass per job for the lifetime of the process.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]time.Time
}

func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]time.Time)}
}

func (s *RunStore) LastSuccess(ctx context.Context, job string) (time.Time, bool, error) {
	s.mu.RLock()
	at, ok := s.runs[job]
	s.mu.RUnlock()
	return at, ok, nil
}

func (s *RunStore) RecordSuccess(ctx context.Context, job string, at time.Time) error {
	s.mu.Lock()
	if prev, ok := s.runs[job]; !ok || at.After(prev) {
		s.runs[job] = at
	}
	s.mu.Unlock()
	return nil
}
