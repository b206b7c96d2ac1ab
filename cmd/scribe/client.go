package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/api"
)

type apiClient struct {
	baseURL string
	secret  string
	userID  string
	http    *http.Client
}

func newAPIClient(server, secret, userID string) *apiClient {
	base := strings.TrimRight(server, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: base,
		secret:  secret,
		userID:  userID,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.sign(req)
	return req, nil
}

// sign attaches signed auth headers when a shared secret is configured.
func (c *apiClient) sign(req *http.Request) {
	if c.secret == "" {
		return
	}
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := uuid.NewString()
	req.Header.Set(api.HeaderUserID, c.userID)
	req.Header.Set(api.HeaderTimestamp, timestamp)
	req.Header.Set(api.HeaderNonce, nonce)
	req.Header.Set(api.HeaderSign, api.Sign(c.secret, c.userID, timestamp, nonce))
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s", payload.Error)
	}
	return fmt.Errorf("daemon: unexpected status %s", resp.Status)
}

func (c *apiClient) createJob(ctx context.Context, req api.CreateJobRequest) (api.JobPayload, error) {
	var job api.JobPayload
	err := c.do(ctx, http.MethodPost, "/api/jobs", req, &job)
	return job, err
}

func (c *apiClient) getJob(ctx context.Context, id string) (api.JobPayload, error) {
	var job api.JobPayload
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+id, nil, &job)
	return job, err
}

func (c *apiClient) listJobs(ctx context.Context, statuses []string) ([]api.JobPayload, error) {
	path := "/api/jobs"
	if len(statuses) > 0 {
		path += "?status=" + strings.Join(statuses, "&status=")
	}
	var list api.JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list.Jobs, nil
}

func (c *apiClient) daemonStatus(ctx context.Context) (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

func (c *apiClient) fileURL(ctx context.Context, jobID, fileID string) (string, error) {
	var resolved api.FileURLResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+jobID+"/files/"+fileID+"/url", nil, &resolved)
	return resolved.URL, err
}

// streamJob follows a job's server-sent event stream, invoking handle for
// each event until the stream ends or ctx is canceled.
func (c *apiClient) streamJob(ctx context.Context, id string, handle func(api.ProgressEvent)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/jobs/"+id+"/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var event api.ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &event); err != nil {
			return fmt.Errorf("decode stream event: %w", err)
		}
		handle(event)
		if event.Terminal() {
			return nil
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return ctx.Err()
}
