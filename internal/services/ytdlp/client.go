package ytdlp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config describes downloader construction parameters.
type Config struct {
	YtdlpBin    string
	FFmpegBin   string
	CookiesFile string
	ProxyURL    string
	Timeout     time.Duration
}

// Client downloads media over HTTP or via yt-dlp for YouTube sources.
type Client struct {
	cfg        Config
	httpClient *http.Client
	runner     func(ctx context.Context, name string, args ...string) error
}

// NewClient constructs a downloader.
func NewClient(cfg Config) *Client {
	if cfg.YtdlpBin == "" {
		cfg.YtdlpBin = "yt-dlp"
	}
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}

	transport := http.DefaultTransport
	if cfg.ProxyURL != "" {
		if proxy, err := url.Parse(cfg.ProxyURL); err == nil {
			cloned := http.DefaultTransport.(*http.Transport).Clone()
			cloned.Proxy = http.ProxyURL(proxy)
			transport = cloned
		}
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Client) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	c.runner = runner
}

var youtubePattern = regexp.MustCompile(`(?i)youtube\.com|youtu\.be`)

// IsYouTube reports whether a URL points at YouTube.
func IsYouTube(rawURL string) bool {
	return youtubePattern.MatchString(rawURL)
}

// Download fetches media into workDir and returns the local path plus a
// display title. sourceHint selects the YouTube path when set to "youtube";
// otherwise the URL itself decides.
func (c *Client) Download(ctx context.Context, rawURL, workDir, sourceHint string, onProgress func(message string, percent float64)) (string, string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", "", &Error{Message: "media url required"}
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", "", fmt.Errorf("ensure work dir: %w", err)
	}

	if sourceHint == "youtube" || IsYouTube(rawURL) {
		return c.downloadYouTube(ctx, rawURL, workDir, onProgress)
	}
	return c.downloadHTTP(ctx, rawURL, workDir, onProgress)
}

func (c *Client) downloadHTTP(ctx context.Context, rawURL, workDir string, onProgress func(message string, percent float64)) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", &Error{Message: fmt.Sprintf("invalid media url: %v", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", &Error{Message: fmt.Sprintf("fetch media: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", &Error{Message: fmt.Sprintf("fetch media: unexpected status %s", resp.Status)}
	}

	if onProgress != nil {
		onProgress("downloading media", 10)
	}

	localPath := filepath.Join(workDir, uuid.NewString())
	out, err := os.Create(localPath)
	if err != nil {
		return "", "", fmt.Errorf("create download file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(localPath)
		return "", "", &Error{Message: fmt.Sprintf("download media: %v", err)}
	}
	if err := out.Close(); err != nil {
		return "", "", fmt.Errorf("close download file: %w", err)
	}

	title := titleFromURL(rawURL)
	if title == "" {
		title = filepath.Base(localPath)
	}
	return localPath, title, nil
}

func (c *Client) downloadYouTube(ctx context.Context, rawURL, workDir string, onProgress func(message string, percent float64)) (string, string, error) {
	outputTemplate := filepath.Join(workDir, uuid.NewString()+".%(ext)s")

	args := []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "wav",
		"--audio-quality", "0",
		"--postprocessor-args", "-ac 1 -ar 16000",
		"--no-playlist",
		"--newline",
		"--retries", "3",
		"--ffmpeg-location", c.cfg.FFmpegBin,
		"--output", outputTemplate,
		"--print", "after_move:title",
	}
	if c.cfg.CookiesFile != "" {
		if _, err := os.Stat(c.cfg.CookiesFile); err != nil {
			return "", "", &Error{Message: fmt.Sprintf("cookies file not found: %s", c.cfg.CookiesFile)}
		}
		args = append(args, "--cookies", c.cfg.CookiesFile)
	}
	if c.cfg.ProxyURL != "" {
		args = append(args, "--proxy", c.cfg.ProxyURL)
	}
	args = append(args, rawURL)

	if onProgress != nil {
		onProgress("downloading media", 10)
	}

	title, err := c.runYtdlp(ctx, args)
	if err != nil {
		return "", "", err
	}

	wavFiles, globErr := filepath.Glob(filepath.Join(workDir, "*.wav"))
	if globErr != nil || len(wavFiles) == 0 {
		return "", "", &Error{Message: "yt-dlp produced no audio file; check the link, proxy, or cookies"}
	}
	localPath := wavFiles[0]
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))
	}
	return localPath, title, nil
}

// runYtdlp executes yt-dlp and returns the printed title line, if any.
func (c *Client) runYtdlp(ctx context.Context, args []string) (string, error) {
	if c.runner != nil {
		if err := c.runner(ctx, c.cfg.YtdlpBin, args...); err != nil {
			return "", &Error{Message: fmt.Sprintf("yt-dlp download failed: %v", err)}
		}
		return "", nil
	}

	cmd := exec.CommandContext(ctx, c.cfg.YtdlpBin, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("yt-dlp stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", &Error{Message: fmt.Sprintf("start yt-dlp: %v", err)}
	}

	var title string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		// The only unprefixed output is the --print title line.
		title = line
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", &Error{Message: fmt.Sprintf("yt-dlp download failed: %s", detail)}
	}
	return title, nil
}

func titleFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return filepath.Base(strings.TrimSuffix(parsed.Path, "/"))
}
