package pipeline_test

import (
	"context"
	"errors"
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
	"scribe/internal/store"
	"scribe/internal/testsupport"
)

type fakeDownloader struct {
	progress []float64
	err      error
}

func (f *fakeDownloader) Download(ctx context.Context, rawURL, workDir, sourceHint string, onProgress func(message string, percent float64)) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", "", err
	}
	path := filepath.Join(workDir, "media.bin")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", "", err
	}
	for _, percent := range f.progress {
		onProgress("downloading media", percent)
	}
	if len(f.progress) > 0 {
		// Give the stage runner time to drain before the stage returns.
		time.Sleep(50 * time.Millisecond)
	}
	return path, "Test Title", nil
}

type fakeExtractor struct {
	err error
}

func (f *fakeExtractor) ToWav(ctx context.Context, inputPath, workDir string) (string, int64, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	path := filepath.Join(workDir, "audio.wav")
	if err := os.WriteFile(path, []byte("wav"), 0o644); err != nil {
		return "", 0, err
	}
	return path, 3, nil
}

type fakeTranscriber struct {
	result whisper.Result
	err    error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, wavPath string, req whisper.Request) (whisper.Result, error) {
	if f.err != nil {
		return whisper.Result{}, f.err
	}
	return f.result, nil
}

type fakeResults struct {
	err error
}

func (f *fakeResults) Store(ctx context.Context, localPath, jobID, fileName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "/stored/" + jobID + "/" + fileName, nil
}

type fixture struct {
	cfg         *config.Config
	store       *store.Store
	hub         *broadcast.Hub
	coordinator *pipeline.Coordinator
}

func newFixture(t *testing.T, deps pipeline.Deps) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	hub := broadcast.NewHub()

	coordinator := pipeline.New(cfg, st, hub, notifications.NewService(cfg), deps, nil)
	t.Cleanup(coordinator.Stop)

	return &fixture{cfg: cfg, store: st, hub: hub, coordinator: coordinator}
}

func happyDeps() pipeline.Deps {
	return pipeline.Deps{
		Downloader:  &fakeDownloader{},
		Extractor:   &fakeExtractor{},
		Transcriber: &fakeTranscriber{result: whisper.Result{Text: "hello world", DetectedLanguage: "en"}},
		Results:     &fakeResults{},
	}
}

// collectEvents drains a subscription until it closes, returning everything
// that was delivered.
func collectEvents(t *testing.T, sub *broadcast.Subscription) []api.ProgressEvent {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var events []api.ProgressEvent
	for {
		event, err := sub.Next(ctx)
		if errors.Is(err, broadcast.ErrClosed) {
			return events
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		events = append(events, event)
	}
}

func startJob(t *testing.T, f *fixture, opts pipeline.Options) (*store.Job, *broadcast.Subscription) {
	t.Helper()

	job, err := f.store.NewJob(context.Background(), store.SourceURL, "https://example.com/talk.mp3", "user-1")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	sub := f.hub.Subscribe(job.ID)
	if opts.OutputFormat == "" {
		opts.OutputFormat = config.FormatText
	}
	f.coordinator.StartJob(job, opts)
	return job, sub
}

func TestJobCompletesThroughCheckpoints(t *testing.T) {
	f := newFixture(t, happyDeps())
	job, sub := startJob(t, f, pipeline.Options{})

	events := collectEvents(t, sub)
	if len(events) == 0 {
		t.Fatal("no events delivered")
	}

	var progressions []float64
	for _, event := range events {
		progressions = append(progressions, event.Progress)
	}
	want := []float64{5, 25, 50, 80, 100}
	if len(progressions) != len(want) {
		t.Fatalf("progress sequence = %v, want %v", progressions, want)
	}
	for i, p := range want {
		if progressions[i] != p {
			t.Fatalf("progress sequence = %v, want %v", progressions, want)
		}
	}

	final := events[len(events)-1]
	if final.Status != string(store.StatusCompleted) {
		t.Fatalf("final status = %s", final.Status)
	}
	if len(final.ResultFiles) != 1 {
		t.Fatalf("final result files = %+v", final.ResultFiles)
	}
	if final.ResultFiles[0].FileName != "transcript.txt" {
		t.Fatalf("file name = %s", final.ResultFiles[0].FileName)
	}
	if final.ResultFiles[0].DetectedLanguage != "en" {
		t.Fatalf("language = %s", final.ResultFiles[0].DetectedLanguage)
	}

	stored, err := f.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != store.StatusCompleted || stored.Progress != 100 {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestJobEmitsAtMostOneIntraStageUpdate(t *testing.T) {
	deps := happyDeps()
	deps.Downloader = &fakeDownloader{progress: []float64{10, 12, 14}}
	f := newFixture(t, deps)
	_, sub := startJob(t, f, pipeline.Options{})

	events := collectEvents(t, sub)

	intermediate := 0
	for _, event := range events {
		if event.Progress > 5 && event.Progress < 25 {
			intermediate++
		}
	}
	if intermediate != 1 {
		t.Fatalf("intermediate download updates = %d, want 1", intermediate)
	}

	last := -1.0
	for _, event := range events {
		if event.Progress < last {
			t.Fatalf("progress regressed: %v", events)
		}
		last = event.Progress
	}
}

func TestJobFailurePreservesProgress(t *testing.T) {
	deps := happyDeps()
	deps.Transcriber = &fakeTranscriber{err: errors.New("model load failed")}
	f := newFixture(t, deps)
	job, sub := startJob(t, f, pipeline.Options{})

	events := collectEvents(t, sub)
	final := events[len(events)-1]
	if final.Status != string(store.StatusFailed) {
		t.Fatalf("final status = %s", final.Status)
	}
	if !strings.Contains(final.Message, "transcribe") || !strings.Contains(final.Message, "model load failed") {
		t.Fatalf("message = %q", final.Message)
	}
	if final.Progress != 50 {
		t.Fatalf("failed progress = %f, want 50", final.Progress)
	}

	stored, err := f.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != store.StatusFailed || stored.Progress != 50 {
		t.Fatalf("stored = %+v", stored)
	}
	if !strings.Contains(stored.ErrorMessage, "transcribe") {
		t.Fatalf("stored error = %q", stored.ErrorMessage)
	}
}

func TestDownloadFailureInsertsNoResultFiles(t *testing.T) {
	deps := happyDeps()
	deps.Downloader = &fakeDownloader{err: errors.New("resolver unreachable")}
	f := newFixture(t, deps)
	job, sub := startJob(t, f, pipeline.Options{})

	events := collectEvents(t, sub)
	final := events[len(events)-1]
	if final.Status != string(store.StatusFailed) {
		t.Fatalf("final status = %s", final.Status)
	}
	if !strings.Contains(final.Message, "download") || !strings.Contains(final.Message, "resolver unreachable") {
		t.Fatalf("message = %q", final.Message)
	}

	stored, err := f.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !strings.Contains(stored.ErrorMessage, "resolver unreachable") {
		t.Fatalf("stored error = %q", stored.ErrorMessage)
	}

	files, err := f.store.ResultFilesForJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ResultFilesForJob: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("result files after failed download = %+v", files)
	}
}

func TestConcurrentSubscribersSeeIdenticalEvents(t *testing.T) {
	f := newFixture(t, happyDeps())

	job, err := f.store.NewJob(context.Background(), store.SourceURL, "https://example.com/talk.mp3", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	first := f.hub.Subscribe(job.ID)
	second := f.hub.Subscribe(job.ID)
	f.coordinator.StartJob(job, pipeline.Options{OutputFormat: config.FormatText})

	firstEvents := collectEvents(t, first)
	secondEvents := collectEvents(t, second)

	if len(firstEvents) == 0 {
		t.Fatal("no events delivered")
	}
	if len(firstEvents) != len(secondEvents) {
		t.Fatalf("event counts differ: %d vs %d", len(firstEvents), len(secondEvents))
	}
	for i := range firstEvents {
		a, b := firstEvents[i], secondEvents[i]
		if a.Status != b.Status || a.Progress != b.Progress || a.Message != b.Message {
			t.Fatalf("event %d differs: %+v vs %+v", i, a, b)
		}
	}
	if !firstEvents[len(firstEvents)-1].Terminal() {
		t.Fatalf("last event not terminal: %+v", firstEvents[len(firstEvents)-1])
	}
}

func TestJobCleanupRemovesWorkDir(t *testing.T) {
	f := newFixture(t, happyDeps())
	job, sub := startJob(t, f, pipeline.Options{})

	collectEvents(t, sub)
	f.coordinator.Stop()

	if _, err := os.Stat(f.cfg.JobWorkDir(job.ID)); !os.IsNotExist(err) {
		t.Fatalf("work dir still present: %v", err)
	}
	if count := f.hub.SubscriberCount(job.ID); count != 0 {
		t.Fatalf("subscriber count = %d, want 0", count)
	}
}

func TestDeletedJobRowIsSilentNoOp(t *testing.T) {
	f := newFixture(t, happyDeps())

	job, err := f.store.NewJob(context.Background(), store.SourceURL, "https://example.com/talk.mp3", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if err := f.store.DeleteJob(context.Background(), job.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}

	sub := f.hub.Subscribe(job.ID)
	f.coordinator.StartJob(job, pipeline.Options{OutputFormat: config.FormatText})

	events := collectEvents(t, sub)
	if len(events) != 0 {
		t.Fatalf("events for deleted job = %+v", events)
	}

	stored, err := f.store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored != nil {
		t.Fatalf("job resurrected: %+v", stored)
	}
}

func TestCreateAndStartRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t, happyDeps())

	_, err := f.coordinator.CreateAndStart(context.Background(), store.SourceURL, "https://example.com/a.mp3", "", pipeline.Options{OutputFormat: "pdf"})
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

// flakyStore fails a configured number of terminal job writes before
// delegating to the real store.
type flakyStore struct {
	*store.Store
	failures int
}

func (f *flakyStore) UpdateJob(ctx context.Context, id string, update store.JobUpdate) (*store.Job, error) {
	if update.Status != nil && update.Status.IsTerminal() && f.failures > 0 {
		f.failures--
		return nil, errors.New("database is locked")
	}
	return f.Store.UpdateJob(ctx, id, update)
}

func TestTerminalWriteRetriedOnTransientFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	flaky := &flakyStore{Store: st, failures: 1}
	hub := broadcast.NewHub()

	coordinator := pipeline.New(cfg, flaky, hub, notifications.NewService(cfg), happyDeps(), nil)
	t.Cleanup(coordinator.Stop)

	job, err := st.NewJob(context.Background(), store.SourceURL, "https://example.com/talk.mp3", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	sub := hub.Subscribe(job.ID)
	coordinator.StartJob(job, pipeline.Options{OutputFormat: config.FormatText})

	events := collectEvents(t, sub)
	final := events[len(events)-1]
	if final.Status != string(store.StatusCompleted) || final.Progress != 100 {
		t.Fatalf("final = %+v", final)
	}

	stored, err := st.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != store.StatusCompleted || stored.Progress != 100 {
		t.Fatalf("stored = %+v", stored)
	}
	if flaky.failures != 0 {
		t.Fatalf("injected failure never consumed")
	}
}

func TestMarkdownRendering(t *testing.T) {
	f := newFixture(t, happyDeps())
	_, sub := startJob(t, f, pipeline.Options{OutputFormat: config.FormatMarkdown})

	events := collectEvents(t, sub)
	final := events[len(events)-1]
	if len(final.ResultFiles) != 1 || final.ResultFiles[0].FileName != "transcript.md" {
		t.Fatalf("result files = %+v", final.ResultFiles)
	}
}
