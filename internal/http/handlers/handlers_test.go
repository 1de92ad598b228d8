package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stylebench/internal/domain"
	"stylebench/internal/infra"
	"stylebench/internal/jobs"
	"stylebench/internal/registry"
	"stylebench/internal/storage"
)

type stubGenerator struct {
	files *storage.FileStore
	fail  string        // item prompt fragment that fails
	gate  chan struct{} // when set, Generate blocks until closed
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, seed int64, settings domain.GenerationSettings) (domain.ImageRef, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return domain.ImageRef{}, ctx.Err()
		}
	}
	if g.fail != "" && strings.Contains(prompt, g.fail) {
		return domain.ImageRef{}, domain.ErrProviderFailure
	}
	return domain.ImageRef{Data: []byte("png:" + prompt)}, nil
}

func (g *stubGenerator) Materialize(ctx context.Context, ref domain.ImageRef, key string) (string, error) {
	return g.files.Write(ctx, key, ref.Data)
}

const suiteDoc = `id: faces
name: Faces
items:
  - id: item-1
    category: portrait
    description: frontal portrait
    prompt: a frontal portrait
  - id: item-2
    category: portrait
    description: profile portrait
    prompt: a profile portrait
`

const stylesDoc = `styles:
  - id: watercolor
    name: Watercolor
    adapter: watercolor-v2
    adapter_weight: 0.8
    prompt_prefix: watercolor painting of
`

func writeRegistry(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "suites"), 0o755); err != nil {
		t.Fatalf("mkdir suites: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "suites", "faces.yaml"), []byte(suiteDoc), 0o644); err != nil {
		t.Fatalf("write suite: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "styles.yaml"), []byte(stylesDoc), 0o644); err != nil {
		t.Fatalf("write styles: %v", err)
	}
	return dir
}

func newTestApp(t *testing.T) (*App, http.Handler) {
	t.Helper()
	app, router, _ := newTestAppWithGenerator(t)
	return app, router
}

func newTestAppWithGenerator(t *testing.T) (*App, http.Handler, *stubGenerator) {
	t.Helper()

	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	bundles := storage.NewBundleStore(files)

	reg, err := registry.Load(writeRegistry(t))
	if err != nil {
		t.Fatalf("registry.Load: %v", err)
	}

	store := jobs.NewStore()
	broker := jobs.NewBroker()
	gen := &stubGenerator{files: files}
	runner := jobs.NewRunner(context.Background(), store, broker, gen, bundles, zerolog.Nop(), 2)

	app := &App{
		Config:   &infra.Config{BatchSize: 2},
		Logger:   zerolog.Nop(),
		Store:    store,
		Broker:   broker,
		Runner:   runner,
		Registry: reg,
		Bundles:  bundles,
		Files:    files,
	}

	r := chi.NewRouter()
	r.Post("/v1/jobs", app.StartJob)
	r.Get("/v1/jobs", app.ListJobs)
	r.Get("/v1/jobs/{job_id}", app.JobStatus)
	r.Post("/v1/jobs/{job_id}/cancel", app.CancelJob)
	r.Get("/v1/jobs/{job_id}/events", app.JobEvents)
	r.Get("/v1/jobs/{job_id}/ws", app.JobSocket)
	r.Get("/v1/suites", app.ListSuites)
	r.Get("/v1/suites/{suite_id}", app.GetSuite)
	r.Get("/v1/styles", app.ListStyles)
	r.Get("/v1/results/{result_id}", app.GetResultBundle)
	r.Get("/v1/results/{result_id}/images/{item_id}", app.GetResultImage)
	r.Get("/v1/results/{result_id}/download", app.DownloadResultZip)
	return app, r, gen
}

func startJob(t *testing.T, router http.Handler, body string) startJobResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start job: got %d: %s", rec.Code, rec.Body.String())
	}
	var out startJobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	return out
}

func awaitJobs(t *testing.T, app *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Runner.Shutdown(ctx); err != nil {
		t.Fatalf("jobs did not finish: %v", err)
	}
}

func TestStartJobRunsSuiteToCompletion(t *testing.T) {
	app, router := newTestApp(t)

	started := startJob(t, router, `{"suite_id":"faces","style_id":"watercolor","model":"adapter-v3"}`)
	if started.Status != string(domain.JobStatusRunning) {
		t.Fatalf("unexpected initial status %q", started.Status)
	}
	awaitJobs(t, app)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+started.JobID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("job status: got %d", rec.Code)
	}
	var job domain.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("got status %q, want completed", job.Status)
	}
	if job.Progress.Current != 2 || job.Progress.Total != 2 {
		t.Fatalf("unexpected progress %+v", job.Progress)
	}
}

func TestStartJobValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "unknown suite", body: `{"suite_id":"nope","style_id":"watercolor","model":"m"}`, code: http.StatusUnprocessableEntity},
		{name: "unknown style", body: `{"suite_id":"faces","style_id":"nope","model":"m"}`, code: http.StatusUnprocessableEntity},
		{name: "missing model", body: `{"suite_id":"faces","style_id":"watercolor"}`, code: http.StatusBadRequest},
		{name: "malformed json", body: `{"suite_id":`, code: http.StatusBadRequest},
	}

	_, router := newTestApp(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.code {
				t.Fatalf("got %d, want %d: %s", rec.Code, tt.code, rec.Body.String())
			}
		})
	}
}

func TestCancelUnknownJob(t *testing.T) {
	_, router := newTestApp(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/nope/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}

func TestJobEventsClosesAfterTerminalSnapshot(t *testing.T) {
	app, router := newTestApp(t)
	started := startJob(t, router, `{"suite_id":"faces","style_id":"watercolor","model":"adapter-v3"}`)
	awaitJobs(t, app)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+started.JobID+"/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type %q", got)
	}

	// A terminal job yields exactly one event: the snapshot.
	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %q", len(events), rec.Body.String())
	}
	lines := strings.SplitN(events[0], "\n", 2)
	if lines[0] != "event: job" {
		t.Fatalf("unexpected event line %q", lines[0])
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &job); err != nil {
		t.Fatalf("decode event payload: %v", err)
	}
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("got status %q, want completed", job.Status)
	}

	if n := app.Broker.Subscribers(started.JobID); n != 0 {
		t.Fatalf("stream left %d subscribers behind", n)
	}
}

func TestJobEventsStreamsMidRunProgress(t *testing.T) {
	app, router, gen := newTestAppWithGenerator(t)
	gen.gate = make(chan struct{})

	srv := httptest.NewServer(router)
	defer srv.Close()

	started := startJob(t, router, `{"suite_id":"faces","style_id":"watercolor","model":"adapter-v3"}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/jobs/"+started.JobID+"/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect stream: got %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	decode := func(line string) domain.Job {
		t.Helper()
		var job domain.Job
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &job); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return job
	}

	// The first event is the connect snapshot; the gate is still closed so the
	// job cannot have progressed.
	var first domain.Job
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			first = decode(line)
			break
		}
	}
	if first.Status != domain.JobStatusRunning {
		t.Fatalf("first snapshot status %q, want running", first.Status)
	}

	close(gen.gate)

	// Every subsequent publish is forwarded and the terminal one ends the
	// stream; the server closing the response terminates the scanner.
	last, count := first, 1
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		job := decode(line)
		if job.Progress.Current < last.Progress.Current {
			t.Fatalf("progress went backwards: %d after %d", job.Progress.Current, last.Progress.Current)
		}
		last = job
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if last.Status != domain.JobStatusCompleted {
		t.Fatalf("final snapshot status %q, want completed", last.Status)
	}
	if last.Progress.Current != 2 || last.Progress.Total != 2 {
		t.Fatalf("final progress %+v", last.Progress)
	}
	if count < 3 {
		t.Fatalf("got %d events, want per-item updates plus the terminal snapshot", count)
	}
	awaitJobs(t, app)
}

func TestJobEventsUnknownJob(t *testing.T) {
	_, router := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/nope/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("stream opened before the id check: content type %q", got)
	}
}

func TestResultBundleAndImages(t *testing.T) {
	app, router := newTestApp(t)
	started := startJob(t, router, `{"suite_id":"faces","style_id":"watercolor","model":"adapter-v3"}`)
	awaitJobs(t, app)

	req := httptest.NewRequest(http.MethodGet, "/v1/results/"+started.ResultID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("bundle: got %d", rec.Code)
	}
	var bundle domain.ResultBundle
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if len(bundle.Images) != 2 {
		t.Fatalf("got %d images, want 2", len(bundle.Images))
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/results/"+started.ResultID+"/images/item-1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("image: got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("image content type %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/results/nope", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing bundle: got %d, want 404", rec.Code)
	}
}

func TestDownloadResultZip(t *testing.T) {
	app, router := newTestApp(t)
	started := startJob(t, router, `{"suite_id":"faces","style_id":"watercolor","model":"adapter-v3"}`)
	awaitJobs(t, app)

	req := httptest.NewRequest(http.MethodGet, "/v1/results/"+started.ResultID+"/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download: got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("content type %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty archive")
	}
}

func TestListSuitesAndStyles(t *testing.T) {
	_, router := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/suites", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("suites: got %d", rec.Code)
	}
	var suites struct {
		Items []domain.TestSuite `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &suites); err != nil {
		t.Fatalf("decode suites: %v", err)
	}
	if len(suites.Items) != 1 || suites.Items[0].ID != "faces" {
		t.Fatalf("unexpected suites %+v", suites.Items)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/styles", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("styles: got %d", rec.Code)
	}
}
