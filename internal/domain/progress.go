package domain

import (
	"sync"
	"time"
)

// Stage names reported by the pipeline.
const (
	StageExtracting = "extracting"
	StageRendering  = "rendering"
	StageRewriting  = "rewriting"
	StageNarrating  = "narrating"
	StagePolishing  = "polishing"
	StageComplete   = "complete"
	StageFailed     = "failed"
)

// ProgressReporter receives coarse-grained pipeline progress. The pipeline is
// transport-agnostic; callers may bridge a reporter onto polling, streaming,
// or a message channel.
type ProgressReporter interface {
	Report(stage string, percent int, detail string)
}

// ProgressFunc adapts a function to the ProgressReporter interface.
type ProgressFunc func(stage string, percent int, detail string)

func (f ProgressFunc) Report(stage string, percent int, detail string) {
	f(stage, percent, detail)
}

// NopReporter discards progress updates.
var NopReporter ProgressReporter = ProgressFunc(func(string, int, string) {})

// ProgressSnapshot is the last reported state for a run.
type ProgressSnapshot struct {
	Stage     string    `json:"stage"`
	Percent   int       `json:"percent"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressStore keeps run-keyed progress snapshots for polling clients.
// Safe for concurrent use.
type ProgressStore struct {
	mu       sync.RWMutex
	state    map[string]ProgressSnapshot
	observer ProgressFunc
}

// NewProgressStore creates an empty progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{state: make(map[string]ProgressSnapshot)}
}

// Observe registers a callback invoked on every reported update, in addition
// to snapshot recording. Register before any run starts.
func (s *ProgressStore) Observe(fn ProgressFunc) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Reporter returns a reporter that writes snapshots for the given run id.
func (s *ProgressStore) Reporter(runID string) ProgressReporter {
	return ProgressFunc(func(stage string, percent int, detail string) {
		s.mu.Lock()
		s.state[runID] = ProgressSnapshot{
			Stage:     stage,
			Percent:   percent,
			Detail:    detail,
			UpdatedAt: time.Now(),
		}
		observer := s.observer
		s.mu.Unlock()

		if observer != nil {
			observer(stage, percent, detail)
		}
	})
}

// Get returns the snapshot for a run and whether one exists.
func (s *ProgressStore) Get(runID string) (ProgressSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.state[runID]
	return snap, ok
}

// Clear removes a run's snapshot.
func (s *ProgressStore) Clear(runID string) {
	s.mu.Lock()
	delete(s.state, runID)
	s.mu.Unlock()
}
