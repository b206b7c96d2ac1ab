package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/services/ffmpeg"
)

func TestToWavCopiesExistingWav(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(t.TempDir(), "already.wav")
	if err := os.WriteFile(inputPath, []byte("wav data"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	extractor := ffmpeg.NewExtractor("")
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		t.Fatal("ffmpeg should not run for wav input")
		return nil
	})

	outputPath, size, err := extractor.ToWav(context.Background(), inputPath, workDir)
	if err != nil {
		t.Fatalf("ToWav: %v", err)
	}
	if size != int64(len("wav data")) {
		t.Fatalf("size = %d", size)
	}
	if filepath.Dir(outputPath) != workDir || !strings.HasSuffix(outputPath, ".wav") {
		t.Fatalf("output path = %q", outputPath)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "wav data" {
		t.Fatalf("output = %q", data)
	}
}

func TestToWavTranscodes(t *testing.T) {
	workDir := t.TempDir()
	inputPath := filepath.Join(t.TempDir(), "talk.mp3")
	if err := os.WriteFile(inputPath, []byte("mp3"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	extractor := ffmpeg.NewExtractor("ffmpeg")
	var gotArgs []string
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotArgs = args
		// The output path is the final argument.
		return os.WriteFile(args[len(args)-1], []byte("transcoded"), 0o644)
	})

	outputPath, size, err := extractor.ToWav(context.Background(), inputPath, workDir)
	if err != nil {
		t.Fatalf("ToWav: %v", err)
	}
	if size != int64(len("transcoded")) {
		t.Fatalf("size = %d", size)
	}
	if !strings.HasSuffix(outputPath, ".wav") {
		t.Fatalf("output path = %q", outputPath)
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-i " + inputPath, "-ar 16000", "-ac 1"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %v", want, gotArgs)
		}
	}
}

func TestToWavPropagatesFailure(t *testing.T) {
	inputPath := filepath.Join(t.TempDir(), "talk.mp3")
	if err := os.WriteFile(inputPath, []byte("mp3"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	extractor := ffmpeg.NewExtractor("ffmpeg")
	extractor.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("codec missing")
	})

	if _, _, err := extractor.ToWav(context.Background(), inputPath, t.TempDir()); err == nil {
		t.Fatal("expected error")
	}
}
