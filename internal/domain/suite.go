package domain

import "strings"

// WorkItem is one prompt drawn from a suite's ordered list. Category and
// description are echoed back into the result for display.
type WorkItem struct {
	ID          string `json:"id" yaml:"id"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description" yaml:"description"`
	Prompt      string `json:"prompt" yaml:"prompt"`
}

// TestSuite is an ordered list of work items run against one adapter.
type TestSuite struct {
	ID    string     `json:"id" yaml:"id"`
	Name  string     `json:"name" yaml:"name"`
	Items []WorkItem `json:"items" yaml:"items"`
}

// Style describes a trained adapter and the prompt padding applied around
// every work item's prompt text.
type Style struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Adapter       string  `json:"adapter" yaml:"adapter"`
	AdapterWeight float64 `json:"adapter_weight" yaml:"adapter_weight"`
	PromptPrefix  string  `json:"prompt_prefix" yaml:"prompt_prefix"`
	PromptSuffix  string  `json:"prompt_suffix" yaml:"prompt_suffix"`
}

// GenerationSettings is the full settings bundle forwarded to the generation
// backend for every item in a job.
type GenerationSettings struct {
	Sampler       string  `json:"sampler" yaml:"sampler"`
	Steps         int     `json:"steps" yaml:"steps"`
	Guidance      float64 `json:"guidance" yaml:"guidance"`
	Width         int     `json:"width" yaml:"width"`
	Height        int     `json:"height" yaml:"height"`
	Adapter       string  `json:"adapter" yaml:"adapter"`
	AdapterWeight float64 `json:"adapter_weight" yaml:"adapter_weight"`
	Seed          int64   `json:"seed" yaml:"seed"`
	SeedLocked    bool    `json:"seed_locked" yaml:"seed_locked"`
	PromptPrefix  string  `json:"prompt_prefix" yaml:"prompt_prefix"`
	PromptSuffix  string  `json:"prompt_suffix" yaml:"prompt_suffix"`
}

// ComposePrompt assembles the full prompt actually sent: front-pad, the work
// item's prompt and back-pad, joined and trimmed of incidental whitespace.
func (s GenerationSettings) ComposePrompt(itemPrompt string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.PromptPrefix, itemPrompt, s.PromptSuffix} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
