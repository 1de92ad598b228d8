package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stylebench/internal/domain"
)

type startJobRequest struct {
	SuiteID  string            `json:"suite_id"`
	StyleID  string            `json:"style_id"`
	Model    string            `json:"model"`
	Settings *settingsOverride `json:"settings,omitempty"`
}

// settingsOverride lets a caller tweak individual knobs without restating the
// style's defaults. Pointer fields distinguish "absent" from zero.
type settingsOverride struct {
	Sampler       *string  `json:"sampler,omitempty"`
	Steps         *int     `json:"steps,omitempty"`
	Guidance      *float64 `json:"guidance,omitempty"`
	Width         *int     `json:"width,omitempty"`
	Height        *int     `json:"height,omitempty"`
	AdapterWeight *float64 `json:"adapter_weight,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	SeedLocked    *bool    `json:"seed_locked,omitempty"`
}

type startJobResponse struct {
	JobID    string `json:"job_id"`
	ResultID string `json:"result_id"`
	Status   string `json:"status"`
}

// StartJob registers a job for a suite/style pairing and launches its
// scheduler. The response is written before any batch work completes.
func (a *App) StartJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	suite, err := a.Registry.Suite(req.SuiteID)
	if err != nil {
		a.error(w, http.StatusUnprocessableEntity, "unknown_suite", "suite not registered")
		return
	}
	style, err := a.Registry.Style(req.StyleID)
	if err != nil {
		a.error(w, http.StatusUnprocessableEntity, "unknown_style", "style not registered")
		return
	}

	spec := domain.JobSpec{SuiteID: suite.ID, StyleID: style.ID, Model: req.Model}
	job, _, err := a.Runner.Start(suite, spec, buildSettings(style, req.Settings))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSpec) {
			a.error(w, http.StatusBadRequest, "bad_request", "suite_id, style_id and model are required")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: failed to start job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to start job")
		return
	}

	a.json(w, http.StatusAccepted, startJobResponse{JobID: job.ID, ResultID: job.ResultID, Status: string(job.Status)})
}

// JobStatus returns the current job snapshot verbatim.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Store.Get(jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, job)
}

// ListJobs returns snapshots of every known job, newest first.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Store.List()})
}

// CancelJob requests cooperative cancellation. Cancelling a job that already
// reached a terminal state is a no-op, not an error.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Runner.Cancel(jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, job)
}

// buildSettings layers the caller's overrides over the style's defaults.
func buildSettings(style domain.Style, override *settingsOverride) domain.GenerationSettings {
	settings := domain.GenerationSettings{
		Sampler:       "euler_a",
		Steps:         28,
		Guidance:      7.0,
		Width:         1024,
		Height:        1024,
		Adapter:       style.Adapter,
		AdapterWeight: style.AdapterWeight,
		PromptPrefix:  style.PromptPrefix,
		PromptSuffix:  style.PromptSuffix,
	}
	if override == nil {
		return settings
	}
	if override.Sampler != nil {
		settings.Sampler = *override.Sampler
	}
	if override.Steps != nil {
		settings.Steps = *override.Steps
	}
	if override.Guidance != nil {
		settings.Guidance = *override.Guidance
	}
	if override.Width != nil {
		settings.Width = *override.Width
	}
	if override.Height != nil {
		settings.Height = *override.Height
	}
	if override.AdapterWeight != nil {
		settings.AdapterWeight = *override.AdapterWeight
	}
	if override.Seed != nil {
		settings.Seed = *override.Seed
	}
	if override.SeedLocked != nil {
		settings.SeedLocked = *override.SeedLocked
	}
	return settings
}
