package jobs

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"stylebench/internal/domain"
	"stylebench/internal/infra"
)

// Generator is the generation collaborator: one generate call per work item
// and a follow-up materialize call that moves the image to stable storage and
// returns the local reference stored in the result.
type Generator interface {
	Generate(ctx context.Context, prompt string, seed int64, settings domain.GenerationSettings) (domain.ImageRef, error)
	Materialize(ctx context.Context, ref domain.ImageRef, key string) (string, error)
}

// BundleSink persists a job's cumulative result bundle. Save must be an
// idempotent overwrite and must never leave a half-written document.
type BundleSink interface {
	Save(ctx context.Context, resultID string, bundle *domain.ResultBundle) error
}

// Handle supervises one detached scheduler task. The launcher keeps it so the
// run can be awaited on shutdown and inspected in tests.
type Handle struct {
	JobID string
	done  chan struct{}
}

// Done is closed when the scheduler task for this job has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Runner drives jobs to completion: it partitions a suite's work items into
// fixed-size batches, runs each batch's items concurrently, polls for
// cancellation between batches and persists the partial bundle after every
// batch.
//
// Cancellation policy: cooperative, observed only at batch boundaries. A
// batch already in flight when cancellation is requested runs to completion
// and its outcomes are still recorded and persisted; batches after the one
// in flight never start.
type Runner struct {
	ctx       context.Context
	store     *Store
	broker    *Broker
	gen       Generator
	sink      BundleSink
	logger    infra.Logger
	batchSize int
	seedFn    func() int64

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewRunner wires a Runner. ctx bounds every launched job; cancelling it
// aborts in-flight generation calls on shutdown.
func NewRunner(ctx context.Context, store *Store, broker *Broker, gen Generator, sink BundleSink, logger infra.Logger, batchSize int) *Runner {
	if batchSize <= 0 {
		batchSize = 2
	}
	return &Runner{
		ctx:       ctx,
		store:     store,
		broker:    broker,
		gen:       gen,
		sink:      sink,
		logger:    logger,
		batchSize: batchSize,
		seedFn:    func() int64 { return rand.Int63n(math.MaxUint32) },
		handles:   make(map[string]*Handle),
	}
}

// Start registers a new job for the suite and launches exactly one scheduler
// task for it. Validation failures surface synchronously; after Start returns
// the caller owns only snapshots.
func (r *Runner) Start(suite domain.TestSuite, spec domain.JobSpec, settings domain.GenerationSettings) (domain.Job, *Handle, error) {
	spec.Total = len(suite.Items)
	job, err := r.store.Create(spec)
	if err != nil {
		return domain.Job{}, nil, err
	}

	handle := &Handle{JobID: job.ID, done: make(chan struct{})}
	r.mu.Lock()
	r.handles[job.ID] = handle
	r.mu.Unlock()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.fail(job.ID, fmt.Sprintf("scheduler panic: %v", rec))
			}
			r.mu.Lock()
			delete(r.handles, job.ID)
			r.mu.Unlock()
			close(handle.done)
		}()
		r.run(job, suite.Items, settings)
	}()

	return job, handle, nil
}

// Cancel transitions a running job to cancelled and publishes the snapshot.
// Cancelling an already-terminal job is a no-op, not an error. The scheduler
// notices at the next batch boundary.
func (r *Runner) Cancel(jobID string) (domain.Job, error) {
	changed := false
	snap, err := r.store.Mutate(jobID, func(j *domain.Job) {
		if j.Status != domain.JobStatusRunning {
			return
		}
		j.Status = domain.JobStatusCancelled
		now := time.Now().UTC()
		j.CompletedAt = &now
		changed = true
	})
	if err != nil {
		return domain.Job{}, err
	}
	if changed {
		r.broker.Publish(jobID, snap)
		r.logger.Info().Str("job_id", jobID).Msg("scheduler: job cancelled")
	}
	return snap, nil
}

// Shutdown waits for every in-flight scheduler task, or until ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type outcome struct {
	result domain.GenerationResult
	err    error
}

// run drives all batches for one job. It never returns an error: every
// failure is converted into a job-state mutation.
func (r *Runner) run(job domain.Job, items []domain.WorkItem, settings domain.GenerationSettings) {
	bundle := &domain.ResultBundle{
		ResultID: job.ResultID,
		JobID:    job.ID,
		SuiteID:  job.SuiteID,
		StyleID:  job.StyleID,
		Model:    job.Model,
		Settings: settings,
		Images:   []domain.GenerationResult{},
	}

	err := func() error {
		for start := 0; start < len(items); start += r.batchSize {
			current, err := r.store.Get(job.ID)
			if err != nil {
				return err
			}
			if current.Status == domain.JobStatusCancelled {
				r.logger.Info().Str("job_id", job.ID).Int("attempted", current.Progress.Current).
					Msg("scheduler: cancellation observed, stopping")
				return nil
			}

			end := min(start+r.batchSize, len(items))
			outcomes := r.runBatch(items[start:end], job.ResultID, settings)

			// Outcomes are walked in dispatch order; completion order never
			// reorders the images sequence.
			for i, out := range outcomes {
				item := items[start+i]
				if out.err != nil {
					r.logger.Warn().Err(out.err).
						Str("job_id", job.ID).
						Str("item_id", item.ID).
						Msg("scheduler: work item failed")
				} else {
					bundle.Images = append(bundle.Images, out.result)
				}
				snap, err := r.store.Mutate(job.ID, func(j *domain.Job) {
					if j.Progress.Current < j.Progress.Total {
						j.Progress.Current++
					}
				})
				if err != nil {
					return err
				}
				r.broker.Publish(job.ID, snap)
			}

			bundle.UpdatedAt = time.Now().UTC()
			if err := r.sink.Save(r.ctx, job.ResultID, bundle); err != nil {
				return fmt.Errorf("persist bundle: %w", err)
			}
		}
		return nil
	}()

	if err != nil {
		r.fail(job.ID, err.Error())
		return
	}
	r.complete(job.ID)
}

// runBatch launches every item in the batch concurrently and waits for all
// settled outcomes; one item's failure never aborts its siblings.
func (r *Runner) runBatch(batch []domain.WorkItem, resultID string, settings domain.GenerationSettings) []outcome {
	outcomes := make([]outcome, len(batch))
	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(i int, item domain.WorkItem) {
			defer wg.Done()
			outcomes[i] = r.runItem(item, resultID, settings)
		}(i, item)
	}
	wg.Wait()
	return outcomes
}

func (r *Runner) runItem(item domain.WorkItem, resultID string, settings domain.GenerationSettings) outcome {
	seed := settings.Seed
	if !settings.SeedLocked {
		seed = r.seedFn()
	}
	prompt := settings.ComposePrompt(item.Prompt)

	ref, err := r.gen.Generate(r.ctx, prompt, seed, settings)
	if err != nil {
		return outcome{err: fmt.Errorf("generate: %w", err)}
	}

	key := fmt.Sprintf("results/%s/images/%s.png", resultID, item.ID)
	local, err := r.gen.Materialize(r.ctx, ref, key)
	if err != nil {
		return outcome{err: fmt.Errorf("materialize: %w", err)}
	}

	return outcome{result: domain.GenerationResult{
		ItemID:      item.ID,
		Category:    item.Category,
		Description: item.Description,
		Image:       local,
		Prompt:      prompt,
		Seed:        seed,
		CompletedAt: time.Now().UTC(),
	}}
}

// complete marks the job completed unless a cancel won the race during the
// final batch; terminal states are never overwritten.
func (r *Runner) complete(jobID string) {
	changed := false
	snap, err := r.store.Mutate(jobID, func(j *domain.Job) {
		if j.Status != domain.JobStatusRunning {
			return
		}
		j.Status = domain.JobStatusCompleted
		now := time.Now().UTC()
		j.CompletedAt = &now
		changed = true
	})
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", jobID).Msg("scheduler: completion mutation failed")
		return
	}
	if changed {
		r.broker.Publish(jobID, snap)
		r.logger.Info().Str("job_id", jobID).Msg("scheduler: job completed")
	}
}

// fail is the only path that sets the error field: it records errors that
// escaped the per-item isolation boundary, such as bundle persistence.
func (r *Runner) fail(jobID, msg string) {
	changed := false
	snap, err := r.store.Mutate(jobID, func(j *domain.Job) {
		if j.Status != domain.JobStatusRunning {
			return
		}
		j.Status = domain.JobStatusFailed
		j.Error = msg
		now := time.Now().UTC()
		j.CompletedAt = &now
		changed = true
	})
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", jobID).Msg("scheduler: failure mutation failed")
		return
	}
	if changed {
		r.broker.Publish(jobID, snap)
		r.logger.Error().Str("job_id", jobID).Str("reason", msg).Msg("scheduler: job failed")
	}
}
