package pipeline

import (
	"context"

	"scribe/internal/services/whisper"
	"scribe/internal/store"
)

// JobStore is the narrow persistence surface the coordinator writes through.
// *store.Store satisfies it; tests may wrap it to inject write failures.
type JobStore interface {
	NewJob(ctx context.Context, source store.Source, sourceURL, userID string) (*store.Job, error)
	UpdateJob(ctx context.Context, id string, update store.JobUpdate) (*store.Job, error)
	InsertResultFile(ctx context.Context, file *store.ResultFile) (*store.ResultFile, error)
	ResultFilesForJob(ctx context.Context, jobID string) ([]*store.ResultFile, error)
}

// Downloader fetches media into a job's working directory.
type Downloader interface {
	Download(ctx context.Context, rawURL, workDir, sourceHint string, onProgress func(message string, percent float64)) (localPath, title string, err error)
}

// AudioExtractor converts downloaded media into mono 16 kHz WAV audio.
type AudioExtractor interface {
	ToWav(ctx context.Context, inputPath, workDir string) (wavPath string, sizeBytes int64, err error)
}

// Transcriber converts a WAV file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string, req whisper.Request) (whisper.Result, error)
}

// ResultStore places a rendered transcript and returns its durable locator.
type ResultStore interface {
	Store(ctx context.Context, localPath, jobID, fileName string) (locator string, err error)
}

// Deps bundles the external collaborators the coordinator drives.
type Deps struct {
	Downloader  Downloader
	Extractor   AudioExtractor
	Transcriber Transcriber
	Results     ResultStore
}
