package daemon

import (
	"context"
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"

	"scribe/internal/api"
	"scribe/internal/logging"
)

// preflight verifies the daemon can actually do work before it accepts any:
// external binaries resolve, the working volume has headroom, and the store
// and storage backend respond. Missing binaries are recorded but not fatal;
// an unusable store, backend, or disk is.
func (d *Daemon) preflight(ctx context.Context) ([]api.DependencyStatus, error) {
	deps := []api.DependencyStatus{
		checkBinary("yt-dlp", d.cfg.Download.YtdlpBin),
		checkBinary("ffmpeg", d.cfg.Download.FFmpegBin),
		checkBinary("whisper", d.cfg.Transcription.WhisperBin),
	}
	for _, dep := range deps {
		if !dep.Available {
			d.logger.Warn("dependency unavailable",
				logging.String("dependency", dep.Name),
				logging.String("detail", dep.Detail))
		}
	}

	if err := d.checkDiskSpace(); err != nil {
		return deps, err
	}
	if err := d.store.Ping(ctx); err != nil {
		return deps, fmt.Errorf("database unreachable: %w", err)
	}
	if err := d.backend.Check(ctx); err != nil {
		return deps, err
	}
	return deps, nil
}

func checkBinary(name, command string) api.DependencyStatus {
	status := api.DependencyStatus{Name: name, Command: command}
	resolved, err := exec.LookPath(command)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Available = true
	status.Detail = resolved
	return status
}

// checkDiskSpace requires the configured minimum free space on the working
// volume so a large download cannot wedge the host mid-job.
func (d *Daemon) checkDiskSpace() error {
	minBytes := uint64(d.cfg.Pipeline.MinFreeSpaceGiB) * 1 << 30
	if minBytes == 0 {
		return nil
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(d.cfg.Paths.WorkDir, &stat); err != nil {
		return fmt.Errorf("stat work dir volume: %w", err)
	}

	free := stat.Bavail * uint64(stat.Bsize)
	if free < minBytes {
		return fmt.Errorf("insufficient disk space: %d GiB free, %d GiB required",
			free/(1<<30), d.cfg.Pipeline.MinFreeSpaceGiB)
	}
	return nil
}
