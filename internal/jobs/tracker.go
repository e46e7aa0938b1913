package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/demandcast/backend/internal/models"
)

var ErrJobRunning = errors.New("job already running")

// entry is the mutable state behind one job id. A single worker goroutine
// writes it; any number of pollers read it through snapshots.
type entry struct {
	progress   int
	complete   bool
	err        string
	startedAt  time.Time
	finishedAt time.Time
}

// Tracker is the process-wide training-job registry.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

func NewTracker() *Tracker {
	return &Tracker{jobs: map[string]*entry{}}
}

// Start registers a fresh job instance under id. A finished job is
// overwritten; a still-running one is left untouched and ErrJobRunning comes
// back, so two writers never share an entry.
func (t *Tracker) Start(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.jobs[id]; ok && !e.complete {
		return ErrJobRunning
	}
	t.jobs[id] = &entry{startedAt: time.Now().UTC()}
	return nil
}

// SetProgress raises the job's progress. Values below the current one are
// dropped, keeping the published sequence monotonic, and nothing moves once
// the job is complete.
func (t *Tracker) SetProgress(id string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[id]
	if !ok || e.complete {
		return
	}
	if pct > e.progress {
		e.progress = pct
	}
}

// Complete marks success: progress 100, complete true, empty error.
func (t *Tracker) Complete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[id]
	if !ok || e.complete {
		return
	}
	e.progress = 100
	e.complete = true
	e.finishedAt = time.Now().UTC()
}

// Fail marks failure: progress keeps its last value, complete flips true,
// the error message is recorded.
func (t *Tracker) Fail(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.jobs[id]
	if !ok || e.complete {
		return
	}
	e.complete = true
	if err != nil {
		e.err = err.Error()
	}
	e.finishedAt = time.Now().UTC()
}

// Get reads one job's snapshot.
func (t *Tracker) Get(id string) (models.JobStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.jobs[id]
	if !ok {
		return models.JobStatus{}, false
	}
	return models.JobStatus{
		JobID:      id,
		Progress:   e.progress,
		Complete:   e.complete,
		Error:      e.err,
		StartedAt:  e.startedAt,
		FinishedAt: e.finishedAt,
	}, true
}

// Sweep drops finished jobs whose completion is older than retention.
// Running jobs are never touched. Returns how many entries went away.
func (t *Tracker) Sweep(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, e := range t.jobs {
		if e.complete && e.finishedAt.Before(cutoff) {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}
