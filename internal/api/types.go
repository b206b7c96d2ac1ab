package api

import "time"

// JobPayload is the wire representation of a job and its artifacts.
type JobPayload struct {
	JobID        string              `json:"jobId"`
	Source       string              `json:"source"`
	SourceURL    string              `json:"sourceUrl"`
	Status       string              `json:"status"`
	Progress     float64             `json:"progress"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	ResultFiles  []ResultFilePayload `json:"resultFiles,omitempty"`
}

// ResultFilePayload describes one stored artifact.
type ResultFilePayload struct {
	ID               string `json:"id"`
	FileName         string `json:"fileName"`
	StoragePath      string `json:"storagePath"`
	FileSize         int64  `json:"fileSize"`
	FileFormat       string `json:"fileFormat,omitempty"`
	DetectedLanguage string `json:"detectedLanguage,omitempty"`
}

// ProgressEvent is one server-push frame on a job's live stream.
type ProgressEvent struct {
	JobID       string              `json:"jobId"`
	Status      string              `json:"status"`
	Progress    float64             `json:"progress"`
	Message     string              `json:"message,omitempty"`
	ResultFiles []ResultFilePayload `json:"resultFiles,omitempty"`
}

// Terminal reports whether this event ends the stream.
func (e ProgressEvent) Terminal() bool {
	return e.Status == "completed" || e.Status == "failed"
}

// CreateJobRequest is the body accepted by POST /api/jobs.
type CreateJobRequest struct {
	VideoURL     string `json:"videoUrl"`
	VideoSource  string `json:"videoSource,omitempty"`
	Model        string `json:"model,omitempty"`
	Language     string `json:"language,omitempty"`
	OutputFormat string `json:"outputFormat,omitempty"`
	Device       string `json:"device,omitempty"`
	ComputeType  string `json:"computeType,omitempty"`
}

// JobListResponse wraps GET /api/jobs.
type JobListResponse struct {
	Jobs []JobPayload `json:"jobs"`
}

// FileURLResponse wraps resolved download locations.
type FileURLResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the structured error body for non-2xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JobCounts aggregates jobs per lifecycle state.
type JobCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// DependencyStatus reports availability of one external tool.
type DependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// DaemonStatus is the payload for GET /api/status.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	DBPath       string             `json:"dbPath"`
	Jobs         JobCounts          `json:"jobs"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
}
