package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stylebench/internal/domain"
)

func validSpec(total int) domain.JobSpec {
	return domain.JobSpec{SuiteID: "faces", StyleID: "watercolor", Model: "adapter-v3", Total: total}
}

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore()

	job, err := store.Create(validSpec(4))
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.NotEmpty(t, job.ResultID)
	assert.Equal(t, domain.JobStatusRunning, job.Status)
	assert.Equal(t, domain.Progress{Current: 0, Total: 4}, job.Progress)
	assert.Nil(t, job.CompletedAt)

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job, got)

	_, err = store.Get("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreCreateValidatesSpec(t *testing.T) {
	store := NewStore()

	for _, spec := range []domain.JobSpec{
		{StyleID: "s", Model: "m", Total: 1},
		{SuiteID: "s", Model: "m", Total: 1},
		{SuiteID: "s", StyleID: "st", Total: 1},
		{SuiteID: "s", StyleID: "st", Model: "m", Total: 0},
	} {
		_, err := store.Create(spec)
		assert.ErrorIs(t, err, domain.ErrInvalidSpec, "spec %+v", spec)
	}
	assert.Empty(t, store.List())
}

func TestStoreMutateReturnsSnapshot(t *testing.T) {
	store := NewStore()
	job, err := store.Create(validSpec(2))
	require.NoError(t, err)

	snap, err := store.Mutate(job.ID, func(j *domain.Job) {
		j.Progress.Current = 1
	})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Progress.Current)

	// Mutating the returned snapshot must not leak into the store.
	snap.Progress.Current = 99
	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Progress.Current)

	_, err = store.Mutate("nope", func(j *domain.Job) {})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreReapDropsOnlyOldTerminalJobs(t *testing.T) {
	store := NewStore()

	running, err := store.Create(validSpec(1))
	require.NoError(t, err)

	old, err := store.Create(validSpec(1))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	_, err = store.Mutate(old.ID, func(j *domain.Job) {
		j.Status = domain.JobStatusCompleted
		j.CompletedAt = &past
	})
	require.NoError(t, err)

	fresh, err := store.Create(validSpec(1))
	require.NoError(t, err)
	now := time.Now()
	_, err = store.Mutate(fresh.ID, func(j *domain.Job) {
		j.Status = domain.JobStatusCancelled
		j.CompletedAt = &now
	})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Reap(time.Hour))

	_, err = store.Get(old.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Get(running.ID)
	assert.NoError(t, err)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)
}
