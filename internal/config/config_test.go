package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, path, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Skip("default config file exists on this host")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Paths.APIBind != "127.0.0.1:8924" {
		t.Fatalf("api bind = %q", cfg.Paths.APIBind)
	}
	if cfg.Transcription.DefaultOutputFormat != config.FormatText {
		t.Fatalf("output format = %q", cfg.Transcription.DefaultOutputFormat)
	}
	if cfg.Storage.Backend != config.BackendLocal {
		t.Fatalf("backend = %q", cfg.Storage.Backend)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
work_dir = "` + dir + `/work"
api_bind = " 127.0.0.1:9000 "

[transcription]
device = " CUDA "
default_output_format = "Markdown"

[storage]
backend = "gateway"
gateway_url = "http://gateway:9000/"
key_prefix = "/tenant-a/"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be read")
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("api bind = %q", cfg.Paths.APIBind)
	}
	if cfg.Transcription.Device != "cuda" {
		t.Fatalf("device = %q", cfg.Transcription.Device)
	}
	if cfg.Transcription.DefaultOutputFormat != config.FormatMarkdown {
		t.Fatalf("output format = %q", cfg.Transcription.DefaultOutputFormat)
	}
	if cfg.Storage.GatewayURL != "http://gateway:9000" {
		t.Fatalf("gateway url = %q", cfg.Storage.GatewayURL)
	}
	if cfg.Storage.KeyPrefix != "tenant-a" {
		t.Fatalf("key prefix = %q", cfg.Storage.KeyPrefix)
	}
	// File values merge over defaults.
	if cfg.Download.YtdlpBin != "yt-dlp" {
		t.Fatalf("ytdlp bin = %q", cfg.Download.YtdlpBin)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[transcription]
default_output_format = "pdf"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_output_format") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateGatewayRequiresURL(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendGateway
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "gateway_url") {
		t.Fatalf("err = %v", err)
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error on second write")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample missing sections: %q", data)
	}
}

func TestJobWorkDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = "/tmp/scribe-work"
	if got := cfg.JobWorkDir("job-1"); got != "/tmp/scribe-work/job-1" {
		t.Fatalf("JobWorkDir = %q", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := config.ExpandPath("~/x"); got != filepath.Join(home, "x") {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got := config.ExpandPath("/abs/path"); got != "/abs/path" {
		t.Fatalf("ExpandPath = %q", got)
	}
}

func TestAuthEnabled(t *testing.T) {
	cfg := config.Default()
	if cfg.AuthEnabled() {
		t.Fatal("auth should default to disabled")
	}
	cfg.Auth.SharedSecret = "s3cret"
	if !cfg.AuthEnabled() {
		t.Fatal("auth should be enabled with a secret")
	}
}
