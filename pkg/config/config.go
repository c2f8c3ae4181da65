// Package config loads and persists bridge configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/bridge/pkg/dotdir"
)

const (
	configFile = "config.toml"

	v0 = 0

	// CurrentV is the config schema version this build reads and writes.
	CurrentV = v0
)

// orderedKeys mirrors the TOML section layout.
var orderedKeys = []string{
	"target.provider",
	"target.model",
	"target.api_key",
	"target.base_url",
	"target.timeout",
	"proxy.listen",
	"proxy.upstream",
	"log.dir",
	"log.sink",
	"log.dsn",
	"log.trace",
	"events.kafka_brokers",
	"events.kafka_topic",
	"transform.excluded_markers",
	"stream.chunk_size",
}

type Configer struct {
	targetPath string
}

// NewConfiger resolves config.toml inside the .bridge/ directory chosen by
// override (see dotdir.Manager.Target).
func NewConfiger(override string) (*Configer, error) {
	target, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}

	// No directory resolved: LoadConfig returns defaults and SaveConfig errors.
	if target == "" {
		return &Configer{}, nil
	}

	path := filepath.Join(target, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Configer{targetPath: path}, nil
}

// ValidConfigKeys returns every supported key in section order.
func ValidConfigKeys() []string {
	out := make([]string, 0, len(configKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// IsValidConfigKey reports whether key is supported.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig reads config.toml, filling unset fields from NewDefaultConfig.
// A missing file yields the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	fill(&cfg.Target.Provider, d.Target.Provider)
	fill(&cfg.Target.Model, d.Target.Model)
	fill(&cfg.Target.Timeout, d.Target.Timeout)
	fill(&cfg.Proxy.Listen, d.Proxy.Listen)
	fill(&cfg.Proxy.Upstream, d.Proxy.Upstream)
	fill(&cfg.Log.Sink, d.Log.Sink)
	fill(&cfg.Events.KafkaTopic, d.Events.KafkaTopic)

	if cfg.Transform.ExcludedMarkers == nil {
		cfg.Transform.ExcludedMarkers = d.Transform.ExcludedMarkers
	}
	if cfg.Stream.ChunkSize == 0 {
		cfg.Stream.ChunkSize = d.Stream.ChunkSize
	}
}

// SaveConfig writes cfg to config.toml.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if c.targetPath == "" {
		return errors.New("no .bridge directory found, create one or pass --config-dir")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue loads the config, sets key to value and saves it.
func (c *Configer) SetConfigValue(key, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := info.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and renders key as a string.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return info.get(cfg), nil
}

// PresetConfig returns defaults tuned for the named target provider.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "openai":
		cfg.Target.Provider = "openai"
		cfg.Target.Model = "gpt-4o"
		cfg.Target.BaseURL = "https://api.openai.com"
	case "ollama":
		cfg.Target.Provider = "ollama"
		cfg.Target.Model = "llama3.2"
		cfg.Target.BaseURL = "http://localhost:11434"
	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	return cfg, nil
}

// ValidPresetNames returns the recognized preset names.
func ValidPresetNames() []string {
	return []string{"openai", "ollama"}
}

// ParseConfigTOML parses raw TOML into a Config, rejecting unknown versions.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
