// Package ffmpeg wraps the ffmpeg binary for audio extraction.
package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Extractor converts downloaded media into mono 16 kHz WAV audio.
type Extractor struct {
	bin    string
	runner func(ctx context.Context, name string, args ...string) error
}

// NewExtractor constructs an extractor using the given ffmpeg binary.
func NewExtractor(bin string) *Extractor {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Extractor{bin: bin}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Extractor) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	e.runner = runner
}

// ToWav transcodes inputPath into a fresh WAV file under workDir and returns
// the output path and size. Files that are already WAV are copied as-is.
func (e *Extractor) ToWav(ctx context.Context, inputPath, workDir string) (string, int64, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("ensure work dir: %w", err)
	}
	outputPath := filepath.Join(workDir, uuid.NewString()+".wav")

	if strings.EqualFold(filepath.Ext(inputPath), ".wav") {
		if err := copyFile(inputPath, outputPath); err != nil {
			return "", 0, fmt.Errorf("copy wav: %w", err)
		}
	} else {
		args := []string{
			"-y",
			"-i", inputPath,
			"-ar", "16000",
			"-ac", "1",
			outputPath,
		}
		if err := e.run(ctx, args); err != nil {
			return "", 0, err
		}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return "", 0, fmt.Errorf("stat extracted audio: %w", err)
	}
	return outputPath, info.Size(), nil
}

func (e *Extractor) run(ctx context.Context, args []string) error {
	if e.runner != nil {
		if err := e.runner(ctx, e.bin, args...); err != nil {
			return fmt.Errorf("audio extraction failed: %w", err)
		}
		return nil
	}
	cmd := exec.CommandContext(ctx, e.bin, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("audio extraction failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
