// Package config loads the tplr-ops.yaml tool configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks when no -config flag is given.
const DefaultPath = "tplr-ops.yaml"

// Recipe is a user-defined task recipe loaded from config, executed after
// the builtins.
type Recipe struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Steps       [][]string `yaml:"steps"`
}

// Update configures the background auto-updater.
type Update struct {
	// Repo is the owner/name slug of the repository to track.
	Repo string `yaml:"repo"`
	// Branch is the branch versions are read from.
	Branch string `yaml:"branch"`
	// Interval between update checks.
	Interval time.Duration `yaml:"interval"`
	// ProcessName identifies the PM2 process to restart after an update.
	ProcessName string `yaml:"process_name"`
}

// UnmarshalYAML decodes Update with a human-readable interval ("4h", "30m")
// and keeps defaults for omitted fields.
func (u *Update) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Repo        string `yaml:"repo"`
		Branch      string `yaml:"branch"`
		Interval    string `yaml:"interval"`
		ProcessName string `yaml:"process_name"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Repo != "" {
		u.Repo = raw.Repo
	}
	if raw.Branch != "" {
		u.Branch = raw.Branch
	}
	if raw.ProcessName != "" {
		u.ProcessName = raw.ProcessName
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("update.interval: %w", err)
		}
		u.Interval = d
	}
	return nil
}

// Coverage configures the coverage report upload.
type Coverage struct {
	// ServiceURL is the coverage tracker's upload endpoint.
	ServiceURL string `yaml:"service_url"`
	// ReportPath is where the test step writes the XML report.
	ReportPath string `yaml:"report_path"`
}

// Config is the full tplr-ops.yaml document.
type Config struct {
	EnvFile    string   `yaml:"env_file"`
	Update     Update   `yaml:"update"`
	Coverage   Coverage `yaml:"coverage"`
	Recipes    []Recipe `yaml:"recipes"`
	WatchPaths []string `yaml:"watch_paths"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		EnvFile: ".env",
		Update: Update{
			Repo:     "tplr-ai/templar",
			Branch:   "main",
			Interval: 4 * time.Hour,
		},
		Coverage: Coverage{
			ReportPath: "coverage.xml",
		},
		WatchPaths: []string{"."},
	}
}

// Load reads path, layering the file over Default. A missing file at the
// default path is not an error; a missing file at an explicit path is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.EnvFile == "" {
		return errors.New("env_file must not be empty")
	}
	if c.Update.Interval <= 0 {
		return errors.New("update.interval must be positive")
	}
	seen := make(map[string]struct{}, len(c.Recipes))
	for _, r := range c.Recipes {
		if r.Name == "" {
			return errors.New("recipe with empty name")
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("duplicate recipe %q", r.Name)
		}
		seen[r.Name] = struct{}{}
		if len(r.Steps) == 0 {
			return fmt.Errorf("recipe %q has no steps", r.Name)
		}
		for _, step := range r.Steps {
			if len(step) == 0 {
				return fmt.Errorf("recipe %q has an empty step", r.Name)
			}
		}
	}
	return nil
}
