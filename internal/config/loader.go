package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if KLSI_CONFIG is set
//  3. env (prefix KLSI_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("KLSI_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: KLSI_LOG_LEVEL, KLSI_DB_DSN, ...
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("KLSI_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "klsi_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return nil, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, cfg.LogLevel)
	}
	return &cfg, nil
}
