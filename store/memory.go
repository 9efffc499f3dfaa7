package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sicko7947/fraudflow"
)

// MemoryStore implements fraudflow.RecordStore using in-memory storage
type MemoryStore struct {
	steps []fraudflow.StepRecord
	final *fraudflow.FinalFunction
	now   func() time.Time
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory record store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		steps: []fraudflow.StepRecord{},
		now:   time.Now,
	}
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.steps = []fraudflow.StepRecord{}
	s.final = nil
	return nil
}

func (s *MemoryStore) AppendStep(ctx context.Context, rec fraudflow.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	s.steps = append(s.steps, rec)
	return nil
}

func (s *MemoryStore) SetFinalFunction(ctx context.Context, sql, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.final = &fraudflow.FinalFunction{
		Name:      name,
		SQL:       sql,
		Timestamp: s.now(),
	}
	return nil
}

func (s *MemoryStore) Steps(ctx context.Context) ([]fraudflow.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedSteps(s.steps), nil
}

func (s *MemoryStore) Final(ctx context.Context) (*fraudflow.FinalFunction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.final == nil {
		return nil, nil
	}
	// Deep copy
	finalCopy := *s.final
	return &finalCopy, nil
}

func (s *MemoryStore) Location() string {
	return "memory"
}

// snapshot returns copies of the records for rendering
func (s *MemoryStore) snapshot() ([]fraudflow.StepRecord, *fraudflow.FinalFunction) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var final *fraudflow.FinalFunction
	if s.final != nil {
		finalCopy := *s.final
		final = &finalCopy
	}
	return sortedSteps(s.steps), final
}

// sortedSteps copies records into step order
func sortedSteps(steps []fraudflow.StepRecord) []fraudflow.StepRecord {
	out := make([]fraudflow.StepRecord, len(steps))
	copy(out, steps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StepIndex < out[j].StepIndex })
	return out
}
