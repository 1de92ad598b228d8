package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"stylebench/internal/domain"
)

// client is a thin wrapper over the server's REST and SSE surface.
type client struct {
	base string
	http *http.Client
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type startResponse struct {
	JobID    string `json:"job_id"`
	ResultID string `json:"result_id"`
	Status   string `json:"status"`
}

type jobList struct {
	Items []domain.Job `json:"items"`
}

type suiteList struct {
	Items []domain.TestSuite `json:"items"`
}

type styleList struct {
	Items []domain.Style `json:"items"`
}

func (c *client) startJob(payload map[string]any) (startResponse, error) {
	var out startResponse
	err := c.do(http.MethodPost, "/v1/jobs", payload, &out)
	return out, err
}

func (c *client) job(id string) (domain.Job, error) {
	var out domain.Job
	err := c.do(http.MethodGet, "/v1/jobs/"+id, nil, &out)
	return out, err
}

func (c *client) jobs() ([]domain.Job, error) {
	var out jobList
	err := c.do(http.MethodGet, "/v1/jobs", nil, &out)
	return out.Items, err
}

func (c *client) cancel(id string) (domain.Job, error) {
	var out domain.Job
	err := c.do(http.MethodPost, "/v1/jobs/"+id+"/cancel", nil, &out)
	return out, err
}

func (c *client) suites() ([]domain.TestSuite, error) {
	var out suiteList
	err := c.do(http.MethodGet, "/v1/suites", nil, &out)
	return out.Items, err
}

func (c *client) styles() ([]domain.Style, error) {
	var out styleList
	err := c.do(http.MethodGet, "/v1/styles", nil, &out)
	return out.Items, err
}

// watch consumes the SSE progress stream and invokes fn for every snapshot
// until the stream closes or ctx is cancelled.
func (c *client) watch(ctx context.Context, jobID string, fn func(domain.Job)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/jobs/"+jobID+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream stays open for the job's lifetime, so the shared client's
	// request timeout cannot apply here.
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &job); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		fn(job)
	}
	return scanner.Err()
}

func (c *client) do(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	var apiErr apiError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("%s (%s)", apiErr.Message, apiErr.Error)
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}
