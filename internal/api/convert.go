package api

import "scribe/internal/store"

// FromJob projects a stored job and its artifacts into the wire shape.
func FromJob(job *store.Job, files []*store.ResultFile) JobPayload {
	if job == nil {
		return JobPayload{}
	}
	return JobPayload{
		JobID:        job.ID,
		Source:       string(job.Source),
		SourceURL:    job.SourceURL,
		Status:       string(job.Status),
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		ResultFiles:  FromResultFiles(files),
	}
}

// FromResultFiles projects stored artifacts into the wire shape.
func FromResultFiles(files []*store.ResultFile) []ResultFilePayload {
	if len(files) == 0 {
		return nil
	}
	out := make([]ResultFilePayload, 0, len(files))
	for _, file := range files {
		if file == nil {
			continue
		}
		out = append(out, ResultFilePayload{
			ID:               file.ID,
			FileName:         file.FileName,
			StoragePath:      file.StoragePath,
			FileSize:         file.FileSize,
			FileFormat:       file.FileFormat,
			DetectedLanguage: file.DetectedLanguage,
		})
	}
	return out
}

// EventFromJob builds the progress event corresponding to a job's current row.
func EventFromJob(job *store.Job, files []*store.ResultFile, message string) ProgressEvent {
	if job == nil {
		return ProgressEvent{}
	}
	if message == "" && job.Status == store.StatusFailed {
		message = job.ErrorMessage
	}
	return ProgressEvent{
		JobID:       job.ID,
		Status:      string(job.Status),
		Progress:    job.Progress,
		Message:     message,
		ResultFiles: FromResultFiles(files),
	}
}
