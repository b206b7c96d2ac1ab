package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"scribe/internal/broadcast"
	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/services/whisper"
	"scribe/internal/store"
)

// Progress checkpoints emitted as a job moves through its stages. Every job
// that completes emits all five, in order.
const (
	checkpointAccepted   = 5
	checkpointDownloaded = 25
	checkpointExtracted  = 50
	checkpointTranscribe = 80
	checkpointDone       = 100
)

// Options carries per-job overrides supplied at submission time. Zero values
// fall back to the configured defaults.
type Options struct {
	Model        string
	Device       string
	ComputeType  string
	LanguageHint string
	OutputFormat string
}

// Coordinator owns the conversion pipeline: it creates jobs, drives each one
// through download, audio extraction, transcription, and result storage in its
// own goroutine, and funnels every state change through a single status path.
type Coordinator struct {
	cfg      *config.Config
	store    JobStore
	hub      *broadcast.Hub
	notifier notifications.Service
	deps     Deps
	logger   *slog.Logger

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
}

// New constructs a coordinator. All collaborators are required except the
// logger, which defaults to a no-op.
func New(cfg *config.Config, st JobStore, hub *broadcast.Hub, notifier notifications.Service, deps Deps, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:      cfg,
		store:    st,
		hub:      hub,
		notifier: notifier,
		deps:     deps,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		runCtx:   runCtx,
		cancel:   cancel,
	}
}

// CreateAndStart persists a new pending job and launches its processing
// goroutine. The returned job reflects the pending row; progress is observed
// through the hub or by polling the store.
func (c *Coordinator) CreateAndStart(ctx context.Context, source store.Source, sourceURL, userID string, opts Options) (*store.Job, error) {
	if err := c.runCtx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline stopped: %w", err)
	}

	if opts.OutputFormat == "" {
		opts.OutputFormat = c.cfg.Transcription.DefaultOutputFormat
	}
	if opts.OutputFormat != config.FormatText && opts.OutputFormat != config.FormatMarkdown {
		return nil, fmt.Errorf("unsupported output format %q", opts.OutputFormat)
	}

	job, err := c.store.NewJob(ctx, source, sourceURL, userID)
	if err != nil {
		return nil, err
	}

	c.logger.Info("job accepted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("source", string(job.Source)))

	c.StartJob(job, opts)
	return job, nil
}

// StartJob launches the processing goroutine for an already-persisted job.
func (c *Coordinator) StartJob(job *store.Job, opts Options) {
	c.wg.Add(1)
	c.active.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.active.Add(-1)
		c.run(job, opts)
	}()
}

// Stop cancels in-flight jobs and waits for their goroutines to finish
// recording terminal state.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Active reports the number of jobs currently being processed.
func (c *Coordinator) Active() int64 {
	return c.active.Load()
}

// run drives one job through every stage. The deferred cleanup runs exactly
// once per job regardless of outcome: it removes the working directory and
// detaches all subscribers after the terminal event has been published.
func (c *Coordinator) run(job *store.Job, opts Options) {
	ctx := c.runCtx
	workDir := c.cfg.JobWorkDir(job.ID)

	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			c.logger.Warn("remove job work dir failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err))
		}
		c.hub.UnsubscribeAll(job.ID)
	}()

	c.updateStatus(ctx, job.ID, statusUpdate(store.StatusProcessing, checkpointAccepted), "processing started")

	title, err := c.process(ctx, job, opts, workDir)
	if err != nil {
		c.fail(ctx, job, err)
		return
	}

	c.updateStatus(ctx, job.ID, statusUpdate(store.StatusCompleted, checkpointDone), "completed")
	c.logger.Info("job completed", logging.String(logging.FieldJobID, job.ID))

	if err := c.notifier.NotifyJobCompleted(context.WithoutCancel(ctx), job.ID, title); err != nil {
		c.logger.Warn("completion notification failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
}

// process runs the four stages in order and returns the media title for the
// completion notification.
func (c *Coordinator) process(ctx context.Context, job *store.Job, opts Options, workDir string) (string, error) {
	var localPath, title string
	err := c.runStage(ctx, job.ID, StageDownload, checkpointAccepted, checkpointDownloaded,
		func(onProgress func(message string, percent float64)) error {
			var err error
			localPath, title, err = c.deps.Downloader.Download(ctx, job.SourceURL, workDir, string(job.Source), onProgress)
			return err
		})
	if err != nil {
		return title, err
	}
	c.updateStatus(ctx, job.ID, progressUpdate(checkpointDownloaded), "media downloaded")

	var wavPath string
	err = c.runStage(ctx, job.ID, StageExtract, checkpointDownloaded, checkpointExtracted,
		func(func(message string, percent float64)) error {
			var err error
			wavPath, _, err = c.deps.Extractor.ToWav(ctx, localPath, workDir)
			return err
		})
	if err != nil {
		return title, err
	}
	c.updateStatus(ctx, job.ID, progressUpdate(checkpointExtracted), "audio extracted")

	var result whisper.Result
	err = c.runStage(ctx, job.ID, StageTranscribe, checkpointExtracted, checkpointTranscribe,
		func(func(message string, percent float64)) error {
			var err error
			result, err = c.deps.Transcriber.Transcribe(ctx, wavPath, whisper.Request{
				Model:        opts.Model,
				Device:       opts.Device,
				ComputeType:  opts.ComputeType,
				LanguageHint: opts.LanguageHint,
			})
			return err
		})
	if err != nil {
		return title, err
	}
	if result.FellBack() {
		c.logger.Warn("transcription fell back to cpu",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("requested_device", result.Requested.Device))
	}
	c.updateStatus(ctx, job.ID, progressUpdate(checkpointTranscribe), "transcription finished")

	if err := c.storeResult(ctx, job, opts.OutputFormat, result, workDir); err != nil {
		return title, &StageError{Stage: StageStore, Err: err}
	}
	return title, nil
}

// storeResult renders the transcript, hands it to the storage backend, and
// records the artifact row.
func (c *Coordinator) storeResult(ctx context.Context, job *store.Job, format string, result whisper.Result, workDir string) error {
	content := whisper.Render(result.Text, format)
	fileName := whisper.FileName(format)

	localPath := filepath.Join(workDir, fileName)
	if err := os.WriteFile(localPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}

	locator, err := c.deps.Results.Store(ctx, localPath, job.ID, fileName)
	if err != nil {
		return err
	}

	_, err = c.store.InsertResultFile(context.WithoutCancel(ctx), &store.ResultFile{
		JobID:            job.ID,
		UserID:           job.UserID,
		FileName:         fileName,
		StoragePath:      locator,
		FileSize:         int64(len(content)),
		FileFormat:       format,
		DetectedLanguage: result.DetectedLanguage,
	})
	if err != nil {
		return fmt.Errorf("record result file: %w", err)
	}
	return nil
}

// fail records the terminal failure, keeping whatever progress the job
// reached, and notifies.
func (c *Coordinator) fail(ctx context.Context, job *store.Job, err error) {
	c.logger.Error("job failed",
		logging.String(logging.FieldJobID, job.ID),
		logging.Error(err))

	c.updateStatus(ctx, job.ID, failUpdate(err.Error()), "")

	if notifyErr := c.notifier.NotifyJobFailed(context.WithoutCancel(ctx), job.ID, err.Error()); notifyErr != nil {
		c.logger.Warn("failure notification failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(notifyErr))
	}
}

type stageProgress struct {
	message string
	percent float64
}

// runStage executes fn in its own goroutine and relays at most one
// intermediate progress update, clamped strictly between the stage's entry
// and exit checkpoints so progress never regresses or overshoots.
func (c *Coordinator) runStage(ctx context.Context, jobID, stage string, floor, ceiling float64, fn func(onProgress func(message string, percent float64)) error) error {
	updates := make(chan stageProgress, 8)
	done := make(chan error, 1)

	go func() {
		done <- fn(func(message string, percent float64) {
			select {
			case updates <- stageProgress{message: message, percent: percent}:
			default:
			}
		})
	}()

	fired := false
	for {
		select {
		case update := <-updates:
			if fired || update.percent <= floor || update.percent >= ceiling {
				continue
			}
			fired = true
			c.updateStatus(ctx, jobID, progressUpdate(update.percent), update.message)
		case err := <-done:
			if err != nil {
				if _, ok := err.(*StageError); ok {
					return err
				}
				return &StageError{Stage: stage, Err: err}
			}
			return nil
		}
	}
}
