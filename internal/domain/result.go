package domain

import "time"

// ImageRef is an opaque reference to a generated image held by the backend:
// addressable by URL, carried inline, or both.
type ImageRef struct {
	URL  string
	Data []byte
}

// GenerationResult is the output of one successful work item: the local image
// reference, the fully assembled prompt that was sent and the resolved seed.
// Failed items produce no GenerationResult.
type GenerationResult struct {
	ItemID      string    `json:"item_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Prompt      string    `json:"prompt"`
	Seed        int64     `json:"seed"`
	CompletedAt time.Time `json:"completed_at"`
}

// ResultBundle is a job's cumulative output. It is overwritten after every
// batch, so a persisted bundle is always a valid, possibly incomplete
// document. The scheduler exclusively owns the in-memory bundle for a job.
type ResultBundle struct {
	ResultID  string             `json:"result_id"`
	JobID     string             `json:"job_id"`
	SuiteID   string             `json:"suite_id"`
	StyleID   string             `json:"style_id"`
	Model     string             `json:"model"`
	Settings  GenerationSettings `json:"settings"`
	Images    []GenerationResult `json:"images"`
	UpdatedAt time.Time          `json:"updated_at"`
}
