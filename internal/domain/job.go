package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Running is the only
// non-terminal state; no transition ever leaves a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Progress counts attempted work items against the fixed suite size.
// Current never exceeds Total and Total never changes after creation.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Job tracks one run of a test suite against one trained adapter, from
// creation until it reaches a terminal state. Job values handed out by the
// store are snapshots; only the scheduler mutates the stored record.
type Job struct {
	ID          string     `json:"id"`
	SuiteID     string     `json:"suite_id"`
	StyleID     string     `json:"style_id"`
	Model       string     `json:"model"`
	Status      JobStatus  `json:"status"`
	Progress    Progress   `json:"progress"`
	ResultID    string     `json:"result_id"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobSpec carries everything needed to register a new job.
type JobSpec struct {
	SuiteID string
	StyleID string
	Model   string
	Total   int
}

// Validate reports the first missing required field.
func (s JobSpec) Validate() error {
	if s.SuiteID == "" || s.StyleID == "" || s.Model == "" {
		return ErrInvalidSpec
	}
	if s.Total <= 0 {
		return ErrInvalidSpec
	}
	return nil
}
