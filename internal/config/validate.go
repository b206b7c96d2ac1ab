package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

func (c *Config) normalize() {
	c.Paths.DataDir = ExpandPath(c.Paths.DataDir)
	c.Paths.WorkDir = ExpandPath(c.Paths.WorkDir)
	c.Paths.LogDir = ExpandPath(c.Paths.LogDir)
	c.Paths.ResultsDir = ExpandPath(c.Paths.ResultsDir)
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)

	c.Download.YtdlpBin = strings.TrimSpace(c.Download.YtdlpBin)
	c.Download.FFmpegBin = strings.TrimSpace(c.Download.FFmpegBin)
	c.Download.CookiesFile = ExpandPath(c.Download.CookiesFile)
	c.Download.ProxyURL = strings.TrimSpace(c.Download.ProxyURL)

	c.Transcription.WhisperBin = strings.TrimSpace(c.Transcription.WhisperBin)
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	c.Transcription.Device = strings.ToLower(strings.TrimSpace(c.Transcription.Device))
	c.Transcription.ComputeType = strings.ToLower(strings.TrimSpace(c.Transcription.ComputeType))
	c.Transcription.DefaultOutputFormat = strings.ToLower(strings.TrimSpace(c.Transcription.DefaultOutputFormat))

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.Storage.GatewayURL = strings.TrimRight(strings.TrimSpace(c.Storage.GatewayURL), "/")
	c.Storage.KeyPrefix = strings.Trim(strings.TrimSpace(c.Storage.KeyPrefix), "/")

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Auth.SharedSecret = strings.TrimSpace(c.Auth.SharedSecret)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.Paths.DataDir == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if c.Paths.WorkDir == "" {
		problems = append(problems, "paths.work_dir must not be empty")
	}
	if c.Paths.APIBind == "" {
		problems = append(problems, "paths.api_bind must not be empty")
	}

	switch c.Transcription.DefaultOutputFormat {
	case FormatText, FormatMarkdown:
	default:
		problems = append(problems, fmt.Sprintf(
			"transcription.default_output_format must be %q or %q", FormatText, FormatMarkdown))
	}

	switch c.Storage.Backend {
	case BackendLocal:
		if c.Paths.ResultsDir == "" {
			problems = append(problems, "paths.results_dir required for local storage")
		}
	case BackendGateway:
		if c.Storage.GatewayURL == "" {
			problems = append(problems, "storage.gateway_url required for gateway storage")
		} else if _, err := url.Parse(c.Storage.GatewayURL); err != nil {
			problems = append(problems, fmt.Sprintf("storage.gateway_url invalid: %v", err))
		}
	default:
		problems = append(problems, fmt.Sprintf(
			"storage.backend must be %q or %q", BackendLocal, BackendGateway))
	}

	if c.Download.ProxyURL != "" {
		if !strings.HasPrefix(c.Download.ProxyURL, "http://") &&
			!strings.HasPrefix(c.Download.ProxyURL, "https://") &&
			!strings.HasPrefix(c.Download.ProxyURL, "socks5://") &&
			!strings.HasPrefix(c.Download.ProxyURL, "socks5h://") {
			problems = append(problems, "download.proxy_url must be an http, https, or socks5 URL")
		}
	}

	if c.Auth.SharedSecret != "" && c.Auth.ToleranceSeconds <= 0 {
		problems = append(problems, "auth.tolerance_seconds must be positive when auth is enabled")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// AuthEnabled reports whether request signing is required.
func (c *Config) AuthEnabled() bool {
	return c.Auth.SharedSecret != ""
}
