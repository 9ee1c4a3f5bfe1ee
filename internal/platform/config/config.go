package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "onsetscore.yaml"

type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

type Data struct {
	Driver string `yaml:"driver"`
	Root   string `yaml:"root"`
	Index  string `yaml:"index"`
	S3     S3     `yaml:"s3"`
}

type Session struct {
	Backend  string        `yaml:"backend"`
	Debounce time.Duration `yaml:"debounce"`
}

type Exhibit struct {
	Concurrency int    `yaml:"concurrency"`
	Allocator   string `yaml:"allocator"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Workspace string  `yaml:"-"`
	DBPath    string  `yaml:"-"`
	Data      Data    `yaml:"data"`
	Session   Session `yaml:"session"`
	Exhibit   Exhibit `yaml:"exhibit"`
	Log       Log     `yaml:"log"`
	Metrics   Metrics `yaml:"metrics"`
}

// New returns the defaults for a workspace, overlaid with the workspace's
// onsetscore.yaml when present and then with ONSETSCORE_* environment values.
func New(workspace string) (Config, error) {
	if workspace == "" {
		return Config{}, fmt.Errorf("workspace path is required")
	}
	cfg := Config{
		Workspace: workspace,
		DBPath:    filepath.Join(workspace, ".onsetscore", "sessions.db"),
		Data:      Data{Driver: "fs", Root: filepath.Join(workspace, "data"), Index: "index.json"},
		Session:   Session{Backend: "file", Debounce: 400 * time.Millisecond},
		Exhibit:   Exhibit{Concurrency: 4, Allocator: "tempfile"},
		Log:       Log{Level: "info", Format: "console"},
	}

	raw, err := os.ReadFile(filepath.Join(workspace, FileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyEnv()

	if cfg.Data.Root != "" && !filepath.IsAbs(cfg.Data.Root) && cfg.Data.Driver == "fs" {
		cfg.Data.Root = filepath.Join(workspace, cfg.Data.Root)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ONSETSCORE_DATA_DRIVER"); v != "" {
		c.Data.Driver = v
	}
	if v := os.Getenv("ONSETSCORE_DATA_ROOT"); v != "" {
		c.Data.Root = v
	}
	if v := os.Getenv("ONSETSCORE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Data.Driver) {
	case "fs", "memory":
	case "s3":
		if c.Data.S3.Bucket == "" {
			return fmt.Errorf("data.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown data driver %q", c.Data.Driver)
	}
	switch c.Session.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	switch c.Exhibit.Allocator {
	case "tempfile", "memory":
	default:
		return fmt.Errorf("unknown exhibit allocator %q", c.Exhibit.Allocator)
	}
	if c.Session.Debounce < 0 {
		return fmt.Errorf("session.debounce must be non-negative")
	}
	if c.Exhibit.Concurrency <= 0 {
		return fmt.Errorf("exhibit.concurrency must be positive")
	}
	return nil
}
