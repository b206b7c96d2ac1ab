package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// GatewayConfig describes the HTTP object gateway backend.
type GatewayConfig struct {
	BaseURL       string
	Token         string
	KeyPrefix     string
	PublicBaseURL string
	Timeout       time.Duration
}

// Gateway stores result files by PUTting them to an HTTP object gateway and
// records the object key as the locator.
type Gateway struct {
	cfg    GatewayConfig
	client *http.Client
}

// NewGateway constructs a gateway-backed storage backend.
func NewGateway(cfg GatewayConfig) *Gateway {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Store uploads localPath and returns the object key.
func (g *Gateway) Store(ctx context.Context, localPath, jobID, fileName string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open result file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat result file: %w", err)
	}

	key := objectKey(g.cfg.KeyPrefix, jobID, fileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, g.objectURL(key), file)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload result file: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload result file: unexpected status %s", resp.Status)
	}
	return key, nil
}

// ResolveAccessURL maps an object key onto the public base URL when one is
// configured, otherwise onto the gateway itself.
func (g *Gateway) ResolveAccessURL(locator string) (string, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator, nil
	}
	if g.cfg.PublicBaseURL != "" {
		return g.cfg.PublicBaseURL + "/" + strings.TrimPrefix(locator, "/"), nil
	}
	return g.objectURL(locator), nil
}

// Check issues a HEAD against the gateway root.
func (g *Gateway) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, g.cfg.BaseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("build gateway check: %w", err)
	}
	g.authorize(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage gateway unreachable: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("storage gateway unhealthy: %s", resp.Status)
	}
	return nil
}

func (g *Gateway) objectURL(key string) string {
	return g.cfg.BaseURL + "/" + strings.TrimPrefix(key, "/")
}

func (g *Gateway) authorize(req *http.Request) {
	if g.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	}
}
