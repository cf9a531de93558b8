package runtimeconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	env "github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "PAGECMS_"

// Load resolves configuration from defaults, an optional YAML file and the
// process environment, in that order. The result is validated.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		raw, err := os.ReadFile(trimmed)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("pagecms config: read %s: %w", trimmed, err)
		}
		if err == nil {
			if err := Decode(raw, &cfg); err != nil {
				return cfg, err
			}
		}
	}
	if err := ApplyEnv(&cfg, nil); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Decode overlays YAML content on top of cfg.
func Decode(raw []byte, cfg *Config) error {
	if cfg == nil {
		return errors.New("pagecms config: nil target")
	}
	if len(raw) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("pagecms config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overlays PAGECMS_* variables. When environ is nil the process
// environment is used.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	if cfg == nil {
		return errors.New("pagecms config: nil target")
	}
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("pagecms config: parse env: %w", err)
	}
	return nil
}
