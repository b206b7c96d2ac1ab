package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/api"
	"scribe/internal/broadcast"
	"scribe/internal/config"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/services/whisper"
	"scribe/internal/storage"
	"scribe/internal/store"
	"scribe/internal/testsupport"
)

type stubDownloader struct{}

func (stubDownloader) Download(ctx context.Context, rawURL, workDir, sourceHint string, onProgress func(message string, percent float64)) (string, string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", "", err
	}
	path := filepath.Join(workDir, "media.bin")
	return path, "Stub Title", os.WriteFile(path, []byte("media"), 0o644)
}

type stubExtractor struct{}

func (stubExtractor) ToWav(ctx context.Context, inputPath, workDir string) (string, int64, error) {
	path := filepath.Join(workDir, "audio.wav")
	return path, 3, os.WriteFile(path, []byte("wav"), 0o644)
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, wavPath string, req whisper.Request) (whisper.Result, error) {
	return whisper.Result{Text: "hello from the stream", DetectedLanguage: "en"}, nil
}

func newTestDaemon(t *testing.T, mutate func(*config.Config)) (*Daemon, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Pipeline.MinFreeSpaceGiB = 0
	if mutate != nil {
		mutate(cfg)
	}

	st := testsupport.MustOpenStore(t, cfg)
	hub := broadcast.NewHub()
	notifier := notifications.NewService(cfg)

	backend, err := storage.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("storage backend: %v", err)
	}

	coordinator := pipeline.New(cfg, st, hub, notifier, pipeline.Deps{
		Downloader:  stubDownloader{},
		Extractor:   stubExtractor{},
		Transcriber: stubTranscriber{},
		Results:     backend,
	}, nil)

	d, err := New(cfg, st, hub, coordinator, backend, notifier, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return d, "http://" + d.apiSrv.Addr()
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestSubmitAndStreamJob(t *testing.T) {
	_, base := newTestDaemon(t, nil)

	resp := postJSON(t, base+"/api/jobs", api.CreateJobRequest{VideoURL: "https://example.com/talk.mp3"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	job := decodeBody[api.JobPayload](t, resp)
	if job.JobID == "" || job.Status != string(store.StatusPending) {
		t.Fatalf("job = %+v", job)
	}
	if job.Source != string(store.SourceURL) {
		t.Fatalf("source = %s", job.Source)
	}

	events := readStream(t, base, job.JobID)
	if len(events) == 0 {
		t.Fatal("no stream events")
	}
	final := events[len(events)-1]
	if final.Status != string(store.StatusCompleted) || final.Progress != 100 {
		t.Fatalf("final = %+v", final)
	}
	if len(final.ResultFiles) != 1 {
		t.Fatalf("result files = %+v", final.ResultFiles)
	}

	terminals := 0
	for _, event := range events {
		if event.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("terminal events = %d, want exactly 1", terminals)
	}
}

// readStream consumes a job's SSE stream until it ends.
func readStream(t *testing.T, base, jobID string) []api.ProgressEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/jobs/"+jobID+"/stream", nil)
	if err != nil {
		t.Fatalf("build stream request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var events []api.ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var event api.ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		events = append(events, event)
		if event.Terminal() {
			break
		}
	}
	return events
}

func TestStreamTerminalJobEmitsSnapshotOnly(t *testing.T) {
	d, base := newTestDaemon(t, nil)
	ctx := context.Background()

	job, err := d.store.NewJob(ctx, store.SourceURL, "https://example.com/done.mp3", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	status := store.StatusCompleted
	progress := 100.0
	if _, err := d.store.UpdateJob(ctx, job.ID, store.JobUpdate{Status: &status, Progress: &progress}); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if _, err := d.store.InsertResultFile(ctx, &store.ResultFile{
		JobID:       job.ID,
		FileName:    "transcript.txt",
		StoragePath: "/results/x",
		FileSize:    10,
	}); err != nil {
		t.Fatalf("InsertResultFile: %v", err)
	}

	events := readStream(t, base, job.ID)
	if len(events) != 1 {
		t.Fatalf("events = %+v, want single snapshot", events)
	}
	if !events[0].Terminal() || len(events[0].ResultFiles) != 1 {
		t.Fatalf("snapshot = %+v", events[0])
	}
}

func TestStreamUnknownJob(t *testing.T) {
	_, base := newTestDaemon(t, nil)

	resp, err := http.Get(base + "/api/jobs/no-such-job/stream")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSubmitRejectsBadURL(t *testing.T) {
	_, base := newTestDaemon(t, nil)

	resp := postJSON(t, base+"/api/jobs", api.CreateJobRequest{VideoURL: "ftp://example.com/file"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSubmitDetectsYouTube(t *testing.T) {
	_, base := newTestDaemon(t, nil)

	resp := postJSON(t, base+"/api/jobs", api.CreateJobRequest{VideoURL: "https://www.youtube.com/watch?v=abc"})
	job := decodeBody[api.JobPayload](t, resp)
	if job.Source != string(store.SourceYouTube) {
		t.Fatalf("source = %s", job.Source)
	}
}

func TestListJobsFilter(t *testing.T) {
	d, base := newTestDaemon(t, nil)
	ctx := context.Background()

	if _, err := d.store.NewJob(ctx, store.SourceURL, "https://example.com/a.mp3", ""); err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	resp, err := http.Get(base + "/api/jobs?status=pending")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	list := decodeBody[api.JobListResponse](t, resp)
	if len(list.Jobs) != 1 {
		t.Fatalf("jobs = %+v", list.Jobs)
	}

	resp, err = http.Get(base + "/api/jobs?status=bogus")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestFileURLEndpoint(t *testing.T) {
	d, base := newTestDaemon(t, nil)
	ctx := context.Background()

	job, err := d.store.NewJob(ctx, store.SourceURL, "https://example.com/a.mp3", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	stored := filepath.Join(d.cfg.Paths.ResultsDir, job.ID, "transcript.txt")
	file, err := d.store.InsertResultFile(ctx, &store.ResultFile{
		JobID:       job.ID,
		FileName:    "transcript.txt",
		StoragePath: stored,
		FileSize:    3,
	})
	if err != nil {
		t.Fatalf("InsertResultFile: %v", err)
	}

	resp, err := http.Get(base + "/api/jobs/" + job.ID + "/files/" + file.ID + "/url")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resolved := decodeBody[api.FileURLResponse](t, resp)
	if resolved.URL != "file://"+stored {
		t.Fatalf("url = %q", resolved.URL)
	}

	// A file id from another job must not resolve.
	other, err := d.store.NewJob(ctx, store.SourceURL, "https://example.com/b.mp3", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	resp, err = http.Get(base + "/api/jobs/" + other.ID + "/files/" + file.ID + "/url")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatusAndHealthEndpoints(t *testing.T) {
	_, base := newTestDaemon(t, nil)

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	status := decodeBody[api.DaemonStatus](t, resp)
	if !status.Running || status.PID == 0 || status.DBPath == "" {
		t.Fatalf("status = %+v", status)
	}
	if len(status.Dependencies) != 3 {
		t.Fatalf("dependencies = %+v", status.Dependencies)
	}

	resp, err = http.Get(base + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Fatalf("health body = %q", body)
	}
}

func TestNotificationEndpoint(t *testing.T) {
	_, base := newTestDaemon(t, nil)

	// No ntfy topic configured, so the noop service reports success.
	resp, err := http.Post(base+"/api/notifications/test", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	d, _ := newTestDaemon(t, nil)

	other, err := New(d.cfg, d.store, d.hub, d.coordinator, d.backend, d.notifier, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := other.Start(context.Background()); err == nil {
		other.Stop()
		t.Fatal("expected second instance to be refused")
	}
}
