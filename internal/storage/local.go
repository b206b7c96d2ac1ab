package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores result files under a directory on the daemon host.
type Local struct {
	dir           string
	publicBaseURL string
}

// NewLocal constructs a filesystem-backed storage backend.
func NewLocal(dir, publicBaseURL string) *Local {
	return &Local{dir: dir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Store copies localPath into the results directory and returns the
// destination path as the locator.
func (l *Local) Store(ctx context.Context, localPath, jobID, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	destDir := filepath.Join(l.dir, jobID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure results dir: %w", err)
	}
	destPath := filepath.Join(destDir, fileName)

	in, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open result file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create stored file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return "", fmt.Errorf("store result file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close stored file: %w", err)
	}

	return destPath, nil
}

// ResolveAccessURL maps a stored path onto the public base URL when one is
// configured, falling back to a file URL.
func (l *Local) ResolveAccessURL(locator string) (string, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator, nil
	}
	if l.publicBaseURL != "" {
		relative, err := filepath.Rel(l.dir, locator)
		if err != nil || strings.HasPrefix(relative, "..") {
			return "", fmt.Errorf("locator outside results dir: %s", locator)
		}
		return l.publicBaseURL + "/" + filepath.ToSlash(relative), nil
	}
	return "file://" + locator, nil
}

// Check verifies the results directory is writable.
func (l *Local) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("results dir not writable: %w", err)
	}
	probe, err := os.CreateTemp(l.dir, ".probe-")
	if err != nil {
		return fmt.Errorf("results dir not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
