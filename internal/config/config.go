// Package config loads the shelf configuration file: where each kind's
// database lives, lock handling and log level.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentic-research/shelf/api"
)

const (
	// ProjectFile is searched for upward from the working directory.
	ProjectFile = "shelf.yaml"
	// UserFile is the per-user config, relative to the home directory.
	UserFile = ".agentic-research/shelf/config.yaml"
	// EnvVar names a config file, like the --config flag.
	EnvVar = "SHELF_CONFIG"

	defaultDir = "~/.agentic-research/shelf"
)

// Config is the decoded config file.
type Config struct {
	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`

	// Source is the file this config was read from; empty for defaults.
	Source string `yaml:"-"`
}

type Storage struct {
	// Dir is the base for relative database paths.
	Dir string `yaml:"dir"`
	// Databases maps a kind name to its database file. Kinds may share a
	// file; an empty path disables the kind.
	Databases   map[string]string `yaml:"databases"`
	BusyTimeout Duration          `yaml:"busy_timeout"`
	MaxRetries  int               `yaml:"max_retries"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Duration accepts Go duration strings ("30s") or whole seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var secs int
	if err := n.Decode(&secs); err == nil {
		d.Duration = time.Duration(secs) * time.Second
		return nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like 30s", n.Line)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Default returns the built-in configuration: one database per kind under
// ~/.agentic-research/shelf.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Dir: defaultDir,
			Databases: map[string]string{
				api.Paper.Name: "papers.db",
				api.Grant.Name: "grants.db",
				api.Job.Name:   "jobs.db",
			},
			BusyTimeout: Duration{30 * time.Second},
			MaxRetries:  5,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults. Unknown keys are errors. A relative
// storage dir is taken relative to the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	base := cfg.Storage.Databases
	cfg.Storage.Databases = nil
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Source = path

	// Listed kinds override the defaults; unlisted kinds keep them.
	user, err := normalize(cfg.Storage.Databases)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	for name, p := range user {
		base[name] = p
	}
	cfg.Storage.Databases = base

	if d := cfg.Storage.Dir; d != "" && !strings.HasPrefix(d, "~") && !filepath.IsAbs(d) {
		cfg.Storage.Dir = filepath.Join(filepath.Dir(path), d)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve picks the config file: an explicit path (flag or SHELF_CONFIG),
// else shelf.yaml in start or any parent, else the user file, else the
// defaults.
func Resolve(explicit, start string) (*Config, error) {
	if explicit == "" {
		explicit = os.Getenv(EnvVar)
	}
	if explicit != "" {
		p, err := expandHome(explicit)
		if err != nil {
			return nil, err
		}
		return Load(p)
	}
	if p, ok := Find(start); ok {
		return Load(p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, UserFile)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	cfg := Default()
	return cfg, cfg.Validate()
}

// Find walks from start up to the filesystem root looking for shelf.yaml.
func Find(start string) (string, bool) {
	if start == "" {
		return "", false
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		p := filepath.Join(dir, ProjectFile)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Validate checks kinds, limits and the log level, and normalizes kind
// names to their singular form.
func (c *Config) Validate() error {
	dbs, err := normalize(c.Storage.Databases)
	if err != nil {
		return err
	}
	c.Storage.Databases = dbs

	if c.Storage.BusyTimeout.Duration <= 0 {
		return errors.New("storage.busy_timeout must be positive")
	}
	if c.Storage.MaxRetries < 1 {
		return errors.New("storage.max_retries must be at least 1")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// normalize keys databases by singular kind name.
func normalize(dbs map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(dbs))
	for name, p := range dbs {
		k, err := api.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("storage.databases: %w", err)
		}
		if prev, dup := out[k.Name]; dup && prev != p {
			return nil, fmt.Errorf("storage.databases: %s configured twice", k.Name)
		}
		out[k.Name] = p
	}
	return out, nil
}

// Paths returns the absolute database path for every enabled kind.
func (c *Config) Paths() (map[string]string, error) {
	dir, err := expandHome(c.Storage.Dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(c.Storage.Databases))
	for name, p := range c.Storage.Databases {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if p, err = expandHome(p); err != nil {
			return nil, err
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		out[name] = p
	}
	return out, nil
}

// Level parses log.level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	s := c.Log.Level
	if s == "" {
		s = "info"
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}
