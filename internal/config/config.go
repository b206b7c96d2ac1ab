package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	WorkDir    string `toml:"work_dir"`
	LogDir     string `toml:"log_dir"`
	ResultsDir string `toml:"results_dir"`
	APIBind    string `toml:"api_bind"`
}

// Download contains configuration for media retrieval.
type Download struct {
	YtdlpBin       string `toml:"ytdlp_bin"`
	FFmpegBin      string `toml:"ffmpeg_bin"`
	CookiesFile    string `toml:"cookies_file"`
	ProxyURL       string `toml:"proxy_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription contains configuration for the speech-to-text engine.
type Transcription struct {
	WhisperBin          string `toml:"whisper_bin"`
	Model               string `toml:"model"`
	Device              string `toml:"device"`
	ComputeType         string `toml:"compute_type"`
	DefaultOutputFormat string `toml:"default_output_format"`
}

// Storage contains configuration for result file placement.
type Storage struct {
	Backend       string `toml:"backend"`
	PublicBaseURL string `toml:"public_base_url"`
	GatewayURL    string `toml:"gateway_url"`
	GatewayToken  string `toml:"gateway_token"`
	KeyPrefix     string `toml:"key_prefix"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Auth contains configuration for API request signing.
type Auth struct {
	SharedSecret     string `toml:"shared_secret"`
	ToleranceSeconds int    `toml:"tolerance_seconds"`
}

// Pipeline contains configuration for job execution.
type Pipeline struct {
	MinFreeSpaceGiB      int `toml:"min_free_space_gib"`
	TerminalWriteRetries int `toml:"terminal_write_retries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration for the scribe daemon.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Download      Download      `toml:"download"`
	Transcription Transcription `toml:"transcription"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Auth          Auth          `toml:"auth"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return filepath.Join("~", ".config", "scribe", "config.toml")
}

// Load reads configuration from path, falling back to the default location
// and then to built-in defaults when no file exists. It returns the config,
// the path that was consulted, and whether a config file was actually read.
func Load(path string) (*Config, string, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	resolved = ExpandPath(resolved)

	cfg := Default()

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if strings.TrimSpace(path) != "" {
			return nil, resolved, false, fmt.Errorf("config file not found: %s", resolved)
		}
	default:
		return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err == nil, err
	}
	return &cfg, resolved, err == nil, nil
}

// WriteSample writes the embedded sample config to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	resolved := ExpandPath(strings.TrimSpace(path))
	if resolved == "" {
		return errors.New("config path required")
	}
	if _, err := os.Stat(resolved); err == nil {
		return fmt.Errorf("config already exists: %s", resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.WorkDir, c.Paths.LogDir}
	if strings.EqualFold(c.Storage.Backend, BackendLocal) {
		dirs = append(dirs, c.Paths.ResultsDir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// JobWorkDir returns the temporary working directory for one job.
func (c *Config) JobWorkDir(jobID string) string {
	return filepath.Join(c.Paths.WorkDir, jobID)
}

// ExpandPath resolves a leading tilde against the user home directory.
func ExpandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return trimmed
		}
		return filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return trimmed
}
