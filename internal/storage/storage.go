// Package storage places rendered transcripts and resolves their locators.
//
// A locator is either a filesystem path (local backend) or an object key
// (gateway backend). Which one a record holds is a deployment choice, not a
// per-record variant: resolution to a fetchable URL happens here, at the
// boundary, and never inside the pipeline.
package storage

import (
	"context"
	"fmt"
	"strings"

	"scribe/internal/config"
)

// Backend stores result files and resolves locators to fetchable URLs.
type Backend interface {
	// Store uploads or places localPath under the job's namespace and
	// returns the durable locator to record.
	Store(ctx context.Context, localPath, jobID, fileName string) (string, error)
	// ResolveAccessURL turns a stored locator into a URL a client can fetch.
	ResolveAccessURL(locator string) (string, error)
	// Check verifies the backend is reachable and writable.
	Check(ctx context.Context) error
}

// NewFromConfig selects the configured backend.
func NewFromConfig(cfg *config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		return NewLocal(cfg.Paths.ResultsDir, cfg.Storage.PublicBaseURL), nil
	case config.BackendGateway:
		return NewGateway(GatewayConfig{
			BaseURL:       cfg.Storage.GatewayURL,
			Token:         cfg.Storage.GatewayToken,
			KeyPrefix:     cfg.Storage.KeyPrefix,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// objectKey builds the canonical key for a job artifact.
func objectKey(prefix, jobID, fileName string) string {
	key := fmt.Sprintf("transcripts/%s/%s", jobID, fileName)
	if prefix != "" {
		key = strings.Trim(prefix, "/") + "/" + key
	}
	return key
}
