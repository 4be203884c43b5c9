package config

import (
	"context"
	"errors"
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
//  2. file (YAML) if PROCTOR_CONFIG is set
//  3. env (prefix PROCTOR_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("PROCTOR_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: PROCTOR_ADDR, PROCTOR_STRIKE_THRESHOLD, ...
	// Map env keys like PROCTOR_STRIKE_THRESHOLD -> strike_threshold
	// (flat keys). Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("PROCTOR_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "proctor_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	// Basic validation
	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	if cfg.StrikeThreshold < 1 {
		return nil, errors.New("strike_threshold must be at least 1")
	}
	if cfg.AIOverusePenaltyThreshold <= 0 || cfg.AIOverusePenaltyThreshold >= 1 {
		return nil, errors.New("ai_overuse_penalty_threshold must be within (0, 1)")
	}
	return &cfg, nil
}
