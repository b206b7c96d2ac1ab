package pipeline

import "fmt"

// Stage names as they appear in logs and failure messages.
const (
	StageDownload   = "download"
	StageExtract    = "extract-audio"
	StageTranscribe = "transcribe"
	StageStore      = "store-result"
)

// StageError attributes a failure to the pipeline stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
