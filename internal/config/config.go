package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/planbiir/elefix/internal/elevation"
	"github.com/planbiir/elefix/internal/gpx"
)

// EnvPrefix marks environment variables that override file settings,
// e.g. ELEFIX_STD_FACTOR=3.2 or ELEFIX_PER_SEGMENT=true.
const EnvPrefix = "ELEFIX_"

type Config struct {
	StdFactor  float64 `koanf:"std_factor"`
	PerSegment bool    `koanf:"per_segment"`
	Suffix     string  `koanf:"suffix"`
	Workers    int     `koanf:"workers"`
	PlotDir    string  `koanf:"plot_dir"`
}

// Elevation returns the correction parameters for the core pipeline
func (c Config) Elevation() elevation.Config {
	return elevation.Config{
		StdFactor:  c.StdFactor,
		PerSegment: c.PerSegment,
	}
}

// Load reads an optional YAML file, then applies ELEFIX_* environment
// overrides and defaults. An empty path skips the file.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s not found", path)
			}
			return Config{}, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	if !k.Exists("std_factor") {
		k.Set("std_factor", elevation.DefaultStdFactor)
	}
	if !k.Exists("suffix") {
		k.Set("suffix", gpx.UpdatedSuffix)
	}
	if !k.Exists("workers") {
		k.Set("workers", runtime.NumCPU())
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would make a run meaningless
func (c Config) Validate() error {
	if c.StdFactor < 0 || math.IsNaN(c.StdFactor) || math.IsInf(c.StdFactor, 0) {
		return fmt.Errorf("std_factor must be a finite number >= 0, got %v", c.StdFactor)
	}
	if c.Suffix == "" {
		return fmt.Errorf("suffix must not be empty")
	}
	if strings.ContainsAny(c.Suffix, `/\`) {
		return fmt.Errorf("suffix must not contain path separators")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	return nil
}
