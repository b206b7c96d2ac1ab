package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Source identifies how a job's media locator should be fetched.
type Source string

const (
	SourceURL     Source = "url"
	SourceYouTube Source = "youtube"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents a media-to-text conversion job persisted in SQLite.
type Job struct {
	ID           string
	Source       Source
	SourceURL    string
	UserID       string
	Status       Status
	Progress     float64
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminal reports whether the job reached a terminal state.
func (j Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// ResultFile describes one artifact produced by a completed job.
// Rows are immutable once inserted.
type ResultFile struct {
	ID               string
	JobID            string
	UserID           string
	FileName         string
	StoragePath      string
	FileSize         int64
	FileFormat       string
	DetectedLanguage string
	CreatedAt        time.Time
}

// JobUpdate carries a partial update for a job row. Nil fields are left
// untouched so concurrent writers never clobber columns they do not own.
type JobUpdate struct {
	Status       *Status
	Progress     *float64
	ErrorMessage *string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}
