package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stylebench/internal/domain"
)

// Store is the process-wide mapping from job id to job record and the single
// source of truth for job state. It is injected, not a package singleton, so
// tests and multi-instance deployments can own their table. Many readers may
// query it concurrently; for a given job the scheduler is the sole writer.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewStore returns an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*domain.Job)}
}

// Create validates the spec and registers a new running job under a fresh id.
// The result id is allocated here too, so partial results are discoverable
// under a stable path before any work completes.
func (s *Store) Create(spec domain.JobSpec) (domain.Job, error) {
	if err := spec.Validate(); err != nil {
		return domain.Job{}, err
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		SuiteID:   spec.SuiteID,
		StyleID:   spec.StyleID,
		Model:     spec.Model,
		Status:    domain.JobStatusRunning,
		Progress:  domain.Progress{Current: 0, Total: spec.Total},
		ResultID:  uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return snapshot(job), nil
}

// Get returns a snapshot of the job, or domain.ErrNotFound.
func (s *Store) Get(id string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return snapshot(job), nil
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, snapshot(job))
	}
	sortJobs(out)
	return out
}

// Mutate applies an in-place transition under the store lock and returns the
// resulting snapshot. Only the scheduler and the cancel operation call this;
// everyone else treats Job values as immutable snapshots.
func (s *Store) Mutate(id string, fn func(*domain.Job)) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	fn(job)
	return snapshot(job), nil
}

// Reap removes terminal jobs whose completion is older than maxAge and
// returns how many were dropped. Running jobs are never touched.
func (s *Store) Reap(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if !job.Status.Terminal() || job.CompletedAt == nil {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

func snapshot(job *domain.Job) domain.Job {
	out := *job
	if job.CompletedAt != nil {
		at := *job.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

func sortJobs(jobs []domain.Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })
}
