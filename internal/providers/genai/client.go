// Package genai talks to the image-generation backend. The backend's response
// envelope is not uniform across deployments, so decoding goes through one
// explicit extraction step with a fixed priority order instead of ad-hoc
// field probing at every call site.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"stylebench/internal/domain"
	"stylebench/internal/infra"
	"stylebench/internal/storage"
)

// Options controls how the generation client is configured.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Files      *storage.FileStore
	// Timeout bounds one item's generate call including retries.
	Timeout time.Duration
	// RetryMax caps retry attempts for transient transport failures.
	RetryMax int
}

// Client issues generation and materialization requests. It satisfies the
// scheduler's Generator contract.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	files      *storage.FileStore
	timeout    time.Duration
	retryMax   int
}

// NewClient constructs a generation client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("genai: base url is required")
	}
	if opts.Files == nil {
		return nil, fmt.Errorf("genai: file store is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	retryMax := opts.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      opts.Model,
		httpClient: httpClient,
		logger:     logger,
		files:      opts.Files,
		timeout:    timeout,
		retryMax:   retryMax,
	}, nil
}

type generateRequest struct {
	Prompt        string  `json:"prompt"`
	Seed          int64   `json:"seed"`
	Sampler       string  `json:"sampler,omitempty"`
	Steps         int     `json:"steps,omitempty"`
	Guidance      float64 `json:"cfg_scale,omitempty"`
	Width         int     `json:"width,omitempty"`
	Height        int     `json:"height,omitempty"`
	Model         string  `json:"model,omitempty"`
	Adapter       string  `json:"adapter,omitempty"`
	AdapterWeight float64 `json:"adapter_weight,omitempty"`
}

// generateResponse covers every envelope shape the backend is known to emit.
type generateResponse struct {
	Output *struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
		Choices []struct {
			Message struct {
				Content []map[string]string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	ImageURL string `json:"image_url"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// Generate runs one generation request and returns the backend's image
// reference. Transient transport failures are retried with exponential
// backoff up to RetryMax attempts inside the per-item timeout; client errors
// and unresolvable responses fail immediately.
func (c *Client) Generate(ctx context.Context, prompt string, seed int64, settings domain.GenerationSettings) (domain.ImageRef, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload := generateRequest{
		Prompt:        prompt,
		Seed:          seed,
		Sampler:       settings.Sampler,
		Steps:         settings.Steps,
		Guidance:      settings.Guidance,
		Width:         settings.Width,
		Height:        settings.Height,
		Model:         c.model,
		Adapter:       settings.Adapter,
		AdapterWeight: settings.AdapterWeight,
	}

	var ref domain.ImageRef
	operation := func() error {
		resp, err := c.invoke(ctx, "/v1/generate", payload)
		if err != nil {
			return err
		}
		ref, err = extractImageRef(resp)
		if err != nil {
			// The response arrived but carried nothing usable; retrying the
			// same request will not change that.
			return backoff.Permanent(err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Dur("retry_in", wait).Msg("genai: transient generation failure")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.retryMax)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return domain.ImageRef{}, err
	}
	return ref, nil
}

// Materialize moves the referenced image to stable storage under key and
// returns the local reference. Inline bytes win over a URL when both are set.
func (c *Client) Materialize(ctx context.Context, ref domain.ImageRef, key string) (string, error) {
	data := ref.Data
	if len(data) == 0 {
		if ref.URL == "" {
			return "", domain.ErrNoImage
		}
		var err error
		data, err = c.download(ctx, ref.URL)
		if err != nil {
			return "", err
		}
	}
	localKey, err := c.files.Write(ctx, key, data)
	if err != nil {
		return "", err
	}
	return localKey, nil
}

func (c *Client) invoke(ctx context.Context, path string, payload any) (generateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return generateResponse{}, backoff.Permanent(fmt.Errorf("genai: marshal request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return generateResponse{}, backoff.Permanent(fmt.Errorf("genai: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return generateResponse{}, fmt.Errorf("genai: invoke backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		data, _ := io.ReadAll(resp.Body)
		return generateResponse{}, fmt.Errorf("genai: %w: status %d: %s", domain.ErrProviderFailure, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return generateResponse{}, backoff.Permanent(fmt.Errorf("genai: %w: %s (%s)", domain.ErrProviderFailure, apiErr.Message, apiErr.Code))
		}
		return generateResponse{}, backoff.Permanent(fmt.Errorf("genai: %w: status %d", domain.ErrProviderFailure, resp.StatusCode))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return generateResponse{}, backoff.Permanent(fmt.Errorf("genai: decode response: %w", err))
	}
	return out, nil
}

// extractImageRef resolves the image reference from a response envelope. The
// known locations are tried in a fixed priority order and the first non-empty
// match wins:
//
//  1. output.images[].url
//  2. output.choices[].message.content[].image
//  3. data[].url
//  4. data[].b64_json
//  5. image_url
//
// No match is a hard failure for the item, not a retry condition.
func extractImageRef(resp generateResponse) (domain.ImageRef, error) {
	if resp.Output != nil {
		for _, img := range resp.Output.Images {
			if url := strings.TrimSpace(img.URL); url != "" {
				return domain.ImageRef{URL: url}, nil
			}
		}
		for _, choice := range resp.Output.Choices {
			for _, content := range choice.Message.Content {
				if url := strings.TrimSpace(content["image"]); url != "" {
					return domain.ImageRef{URL: url}, nil
				}
			}
		}
	}
	for _, d := range resp.Data {
		if url := strings.TrimSpace(d.URL); url != "" {
			return domain.ImageRef{URL: url}, nil
		}
		if d.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				return domain.ImageRef{}, fmt.Errorf("genai: decode inline image: %w", err)
			}
			return domain.ImageRef{Data: data}, nil
		}
	}
	if url := strings.TrimSpace(resp.ImageURL); url != "" {
		return domain.ImageRef{URL: url}, nil
	}
	return domain.ImageRef{}, domain.ErrNoImage
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("genai: create download request: %w", err)
	}
	if c.apiKey != "" && strings.HasPrefix(url, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("genai: %w: download status %d", domain.ErrProviderFailure, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("genai: read image: %w", err)
	}
	return data, nil
}
