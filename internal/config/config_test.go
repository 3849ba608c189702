package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.BaseURL != "https://bash.im" || cfg.Source.QuotePath != "/quote/%d" {
		t.Fatalf("unexpected source defaults: %+v", cfg.Source)
	}
	if got := cfg.Timeout(); got != 15*time.Second {
		t.Fatalf("expected 15s timeout, got %v", got)
	}
	if cfg.Extract.Permalink != "article > div > header > a" {
		t.Fatalf("unexpected permalink selector %q", cfg.Extract.Permalink)
	}
	if cfg.Archive.Provider != ArchiveNone || cfg.NotifyEnabled() {
		t.Fatalf("expected archive and notify disabled by default")
	}
	if !cfg.Progress.Terminal || !cfg.Logging.Development {
		t.Fatalf("expected terminal progress and development logging by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
source:
  base_url: https://mirror.example.com
  user_agent: test-agent
http:
  timeout_seconds: 45
harvest:
  concurrency: 6
extract:
  timezone: UTC
store:
  max_conns: 12
archive:
  provider: local
  base_dir: /var/lib/harvester/raw
  prefix: pages
notify:
  project_id: proj
  topic_id: runs
metrics:
  listen_addr: ":9100"
progress:
  terminal: false
logging:
  development: false
  level: warn
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.BaseURL != "https://mirror.example.com" || cfg.Source.UserAgent != "test-agent" {
		t.Fatalf("expected source overrides to apply: %+v", cfg.Source)
	}
	if cfg.Source.QuotePath != "/quote/%d" {
		t.Fatalf("expected default quote path to survive, got %q", cfg.Source.QuotePath)
	}
	if cfg.Harvest.Concurrency != 6 || cfg.Store.MaxConns != 12 {
		t.Fatalf("expected harvest/store overrides to apply")
	}
	if cfg.Archive.Provider != ArchiveLocal || cfg.Archive.BaseDir != "/var/lib/harvester/raw" || cfg.Archive.Prefix != "pages" {
		t.Fatalf("unexpected archive config: %+v", cfg.Archive)
	}
	if !cfg.NotifyEnabled() || cfg.Metrics.ListenAddr != ":9100" {
		t.Fatalf("expected notify and metrics enabled")
	}
	if cfg.Progress.Terminal || cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected progress/logging overrides to apply")
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC location, got %v (%v)", loc, err)
	}
	if got := cfg.Timeout(); got != 45*time.Second {
		t.Fatalf("expected 45s timeout, got %v", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARVESTER_HARVEST_CONCURRENCY", "3")
	t.Setenv("HARVESTER_ARCHIVE_PROVIDER", "gcs")
	t.Setenv("HARVESTER_ARCHIVE_GCS_BUCKET", "raw-quotes")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Harvest.Concurrency != 3 {
		t.Fatalf("expected env concurrency 3, got %d", cfg.Harvest.Concurrency)
	}
	if cfg.Archive.Provider != ArchiveGCS || cfg.Archive.GCSBucket != "raw-quotes" {
		t.Fatalf("expected env archive overrides: %+v", cfg.Archive)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Source: SourceConfig{BaseURL: "https://bash.im", QuotePath: "/quote/%d"},
		HTTP:   HTTPConfig{TimeoutSeconds: 10},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "relative base url",
			cfg: func() Config {
				c := base
				c.Source.BaseURL = "bash.im"
				return c
			}(),
			want: "source.base_url",
		},
		{
			name: "quote path without placeholder",
			cfg: func() Config {
				c := base
				c.Source.QuotePath = "/quote/"
				return c
			}(),
			want: "source.quote_path",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "negative concurrency",
			cfg: func() Config {
				c := base
				c.Harvest.Concurrency = -1
				return c
			}(),
			want: "harvest.concurrency",
		},
		{
			name: "unknown timezone",
			cfg: func() Config {
				c := base
				c.Extract.Timezone = "Mars/Olympus"
				return c
			}(),
			want: "extract.timezone",
		},
		{
			name: "local archive without dir",
			cfg: func() Config {
				c := base
				c.Archive.Provider = ArchiveLocal
				return c
			}(),
			want: "archive.base_dir",
		},
		{
			name: "gcs archive without bucket",
			cfg: func() Config {
				c := base
				c.Archive.Provider = ArchiveGCS
				return c
			}(),
			want: "archive.gcs_bucket",
		},
		{
			name: "unknown archive provider",
			cfg: func() Config {
				c := base
				c.Archive.Provider = "s3"
				return c
			}(),
			want: "archive.provider",
		},
		{
			name: "topic without project",
			cfg: func() Config {
				c := base
				c.Notify.TopicID = "runs"
				return c
			}(),
			want: "notify.project_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
