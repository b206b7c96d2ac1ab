package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const jobColumns = `id, source, source_url, user_id, status, progress,
    error_message, created_at, updated_at`

const resultFileColumns = `id, job_id, user_id, file_name, storage_path,
    file_size, file_format, detected_language, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job          Job
		userID       sql.NullString
		errorMessage sql.NullString
		createdAt    string
		updatedAt    string
	)
	err := scanner.Scan(
		&job.ID,
		&job.Source,
		&job.SourceURL,
		&userID,
		&job.Status,
		&job.Progress,
		&errorMessage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.UserID = userID.String
	job.ErrorMessage = errorMessage.String
	if job.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &job, nil
}

func scanResultFile(scanner rowScanner) (*ResultFile, error) {
	var (
		file      ResultFile
		userID    sql.NullString
		format    sql.NullString
		language  sql.NullString
		createdAt string
	)
	err := scanner.Scan(
		&file.ID,
		&file.JobID,
		&userID,
		&file.FileName,
		&file.StoragePath,
		&file.FileSize,
		&format,
		&language,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	file.UserID = userID.String
	file.FileFormat = format.String
	file.DetectedLanguage = language.String
	if file.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &file, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}
