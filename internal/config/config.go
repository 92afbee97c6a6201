package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"mission-quiz-service/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Content struct {
		TTL string `yaml:"ttl"`
		// Dir holds authored mission files; FallbackDir is consulted when primary content is unusable.
		Dir         string `yaml:"dir"`
		FallbackDir string `yaml:"fallbackDir"`
	} `yaml:"content"`
	// Presets overrides or adds named rule sets.
	Presets map[string]domain.MissionRules `yaml:"presets"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	for name, rules := range cfg.Presets {
		if err := rules.Validate(); err != nil {
			return cfg, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return cfg, nil
}

// Preset resolves a rule set, preferring configured presets over the built-in ones.
func (c Config) Preset(name string) (domain.MissionRules, error) {
	if rules, ok := c.Presets[name]; ok {
		rules.Distribution = append([]domain.CategoryDraw(nil), rules.Distribution...)
		return rules, nil
	}
	return domain.Preset(name)
}

// AllPresets merges built-in and configured presets.
func (c Config) AllPresets() map[string]domain.MissionRules {
	out := domain.Presets()
	for name, rules := range c.Presets {
		out[name] = rules
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
