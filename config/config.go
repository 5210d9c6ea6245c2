package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// FileName is looked up next to the manifest and then in its parents.
const FileName = ".nuglyph.yaml"

// Config represents the .nuglyph.yaml configuration.
type Config struct {
	// Sources replaces NuGet.Config detection when non-empty.
	Sources           []string      `yaml:"sources"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	Window            WindowConfig  `yaml:"window"`
	Ignore            []string      `yaml:"ignore"`
	Theme             string        `yaml:"theme"`
	MetricsAddr       string        `yaml:"metrics_addr"`
	Watch             bool          `yaml:"watch"`
}

// WindowConfig sizes the version picker around the declared version.
type WindowConfig struct {
	Above int `yaml:"above"`
	Below int `yaml:"below"`
}

func Default() *Config {
	return &Config{
		Concurrency:       8,
		RequestsPerSecond: 20,
		Burst:             10,
		Timeout:           30 * time.Second,
		Window:            WindowConfig{Above: 5, Below: 5},
		Theme:             "auto",
		Watch:             true,
	}
}

// Load reads a configuration file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Find walks up from dir looking for FileName. It returns "" when none exists.
func Find(dir string) string {
	for d := dir; ; {
		p := filepath.Join(d, FileName)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
		parent := filepath.Dir(d)
		if parent == d {
			return ""
		}
		d = parent
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must not be negative, got %g", c.RequestsPerSecond))
	}
	if c.Burst < 0 {
		errs = append(errs, fmt.Errorf("burst must not be negative, got %d", c.Burst))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.Window.Above < 0 || c.Window.Below < 0 {
		errs = append(errs, fmt.Errorf("window sizes must not be negative, got above=%d below=%d", c.Window.Above, c.Window.Below))
	}
	for _, s := range c.Sources {
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			errs = append(errs, fmt.Errorf("source %q is not an http(s) URL", s))
		}
	}
	for _, p := range c.Ignore {
		if _, err := glob.Compile(strings.ToLower(p)); err != nil {
			errs = append(errs, fmt.Errorf("ignore pattern %q: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
