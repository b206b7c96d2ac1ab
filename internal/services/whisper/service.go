// Package whisper wraps a faster-whisper CLI for speech-to-text.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
)

// Config describes transcription engine construction parameters.
type Config struct {
	Bin         string
	Model       string
	Device      string
	ComputeType string
}

// Profile identifies the model/device/precision combination used for a run.
type Profile struct {
	Model       string
	Device      string
	ComputeType string
}

// Request selects per-job overrides for one transcription run.
type Request struct {
	Model        string
	Device       string
	ComputeType  string
	LanguageHint string
}

// Result carries the transcription output. Requested and Effective differ
// when the engine fell back to another device after a resource failure.
type Result struct {
	Text             string
	DetectedLanguage string
	Requested        Profile
	Effective        Profile
}

// FellBack reports whether the run used a different profile than requested.
func (r Result) FellBack() bool {
	return r.Requested != r.Effective
}

// Service runs the transcription binary.
type Service struct {
	cfg    Config
	runner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a transcription service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Bin == "" {
		cfg.Bin = "whisper-ctranslate2"
	}
	if cfg.Model == "" {
		cfg.Model = "tiny"
	}
	if cfg.Device == "" {
		cfg.Device = "cpu"
	}
	if cfg.ComputeType == "" {
		cfg.ComputeType = "int8"
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.runner = runner
}

// Transcribe converts a WAV file to text. When the requested device is cuda
// and the run fails, the service retries once on cpu/int8 and reports the
// effective profile in the result.
func (s *Service) Transcribe(ctx context.Context, wavPath string, req Request) (Result, error) {
	requested := Profile{
		Model:       firstNonEmpty(req.Model, s.cfg.Model),
		Device:      strings.ToLower(firstNonEmpty(req.Device, s.cfg.Device)),
		ComputeType: strings.ToLower(firstNonEmpty(req.ComputeType, s.cfg.ComputeType)),
	}

	result := Result{Requested: requested, Effective: requested}

	outDir, err := os.MkdirTemp(filepath.Dir(wavPath), "transcribe-")
	if err != nil {
		return result, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	runErr := s.run(ctx, wavPath, outDir, requested, req.LanguageHint)
	if runErr != nil {
		if requested.Device != "cuda" {
			return result, &Error{Message: fmt.Sprintf("transcription failed: %v", runErr)}
		}
		fallback := Profile{Model: requested.Model, Device: "cpu", ComputeType: "int8"}
		if err := s.run(ctx, wavPath, outDir, fallback, req.LanguageHint); err != nil {
			return result, &Error{Message: fmt.Sprintf("transcription failed after cpu fallback: %v", err)}
		}
		result.Effective = fallback
	}

	text, detected, err := readTranscript(outDir, wavPath)
	if err != nil {
		return result, &Error{Message: fmt.Sprintf("read transcript: %v", err)}
	}
	result.Text = text
	result.DetectedLanguage = normalizeLanguage(detected)
	return result, nil
}

func (s *Service) run(ctx context.Context, wavPath, outDir string, profile Profile, languageHint string) error {
	args := []string{
		wavPath,
		"--model", profile.Model,
		"--device", profile.Device,
		"--compute_type", profile.ComputeType,
		"--output_dir", outDir,
		"--output_format", "json",
	}
	if languageHint != "" {
		args = append(args, "--language", languageHint)
	}

	if s.runner != nil {
		return s.runner(ctx, s.cfg.Bin, args...)
	}
	cmd := exec.CommandContext(ctx, s.cfg.Bin, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.cfg.Bin, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type transcriptJSON struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
}

func readTranscript(outDir, wavPath string) (string, string, error) {
	baseName := strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))
	jsonPath := filepath.Join(outDir, baseName+".json")

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", "", err
	}

	var transcript transcriptJSON
	if err := json.Unmarshal(data, &transcript); err != nil {
		return "", "", fmt.Errorf("parse transcript json: %w", err)
	}

	text := strings.TrimSpace(transcript.Text)
	if text == "" && len(transcript.Segments) > 0 {
		lines := make([]string, 0, len(transcript.Segments))
		for _, segment := range transcript.Segments {
			if trimmed := strings.TrimSpace(segment.Text); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		text = strings.Join(lines, "\n")
	}
	return text, transcript.Language, nil
}

// normalizeLanguage canonicalizes a detected language tag, keeping the raw
// value when it does not parse.
func normalizeLanguage(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	return tag.String()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
