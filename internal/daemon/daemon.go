package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"scribe/internal/api"
	"scribe/internal/broadcast"
	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/services/ytdlp"
	"scribe/internal/storage"
	"scribe/internal/store"
)

// Daemon owns the long-running services and enforces single-instance
// execution via a lock file.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *store.Store
	hub         *broadcast.Hub
	coordinator *pipeline.Coordinator
	backend     storage.Backend
	notifier    notifications.Service

	lockPath string
	lock     *flock.Flock

	deps []api.DependencyStatus

	running atomic.Bool
	apiSrv  *apiServer
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, hub *broadcast.Hub, coordinator *pipeline.Coordinator, backend storage.Backend, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || hub == nil || coordinator == nil || backend == nil {
		return nil, errors.New("daemon requires config, store, hub, coordinator, and storage backend")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "scribed.lock")
	return &Daemon{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		hub:         hub,
		coordinator: coordinator,
		backend:     backend,
		notifier:    notifier,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, runs preflight checks, and brings up the
// API server. The server shuts down when ctx ends.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	deps, err := d.preflight(ctx)
	d.deps = deps
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("preflight: %w", err)
	}

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.apiSrv = srv
	if err := srv.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("scribe daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop drains in-flight jobs, stops the API server, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.apiSrv.stop()
	d.coordinator.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// SubmitJob validates a creation request, resolves the media source, and
// hands the job to the pipeline.
func (d *Daemon) SubmitJob(ctx context.Context, req api.CreateJobRequest, userID string) (*store.Job, error) {
	rawURL := strings.TrimSpace(req.VideoURL)
	if rawURL == "" {
		return nil, errors.New("videoUrl is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("videoUrl must be an http or https URL")
	}

	source := store.SourceURL
	if strings.EqualFold(req.VideoSource, string(store.SourceYouTube)) || ytdlp.IsYouTube(rawURL) {
		source = store.SourceYouTube
	}

	return d.coordinator.CreateAndStart(ctx, source, rawURL, userID, pipeline.Options{
		Model:        req.Model,
		Device:       req.Device,
		ComputeType:  req.ComputeType,
		LanguageHint: req.Language,
		OutputFormat: strings.ToLower(strings.TrimSpace(req.OutputFormat)),
	})
}

// TestNotification triggers a test notification with the current settings.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}

// Status reports daemon runtime information.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DBPath:       d.store.Path(),
		Dependencies: d.deps,
	}

	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("job health query failed", logging.Error(err))
		return status
	}
	status.Jobs = api.JobCounts{
		Total:      health.Total,
		Pending:    health.Pending,
		Processing: health.Processing,
		Completed:  health.Completed,
		Failed:     health.Failed,
	}
	return status
}
