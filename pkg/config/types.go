package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the persistent bridge configuration stored as config.toml in the
// .bridge/ directory.
type Config struct {
	Version   int             `toml:"version"`
	Target    TargetConfig    `toml:"target"`
	Proxy     ProxyConfig     `toml:"proxy"`
	Log       LogConfig       `toml:"log"`
	Events    EventsConfig    `toml:"events"`
	Transform TransformConfig `toml:"transform"`
	Stream    StreamConfig    `toml:"stream"`
}

// TargetConfig selects the provider requests are translated for.
type TargetConfig struct {
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
	BaseURL  string `toml:"base_url,omitempty"`

	// Timeout bounds a single provider call, e.g. "5m".
	Timeout string `toml:"timeout,omitempty"`
}

// ProxyConfig holds the reverse proxy listener and the vendor endpoint that
// untransformed requests fall through to.
type ProxyConfig struct {
	Listen   string `toml:"listen,omitempty"`
	Upstream string `toml:"upstream,omitempty"`
}

// LogConfig controls where traffic logs go.
type LogConfig struct {
	Dir   string `toml:"dir,omitempty"`
	Sink  string `toml:"sink,omitempty"`
	DSN   string `toml:"dsn,omitempty"`
	Trace bool   `toml:"trace,omitempty"`
}

// EventsConfig enables publishing transformed entries to Kafka.
type EventsConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// TransformConfig holds translation policy.
type TransformConfig struct {
	ExcludedMarkers []string `toml:"excluded_markers,omitempty"`
}

// StreamConfig tunes synthesized SSE output.
type StreamConfig struct {
	ChunkSize uint `toml:"chunk_size,omitempty"`
}

type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strings.Join(*field(c), ",") },
		set: func(c *Config, v string) error { *field(c) = SplitList(v); return nil },
	}
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// configKeys is the authoritative map of supported dotted keys.
var configKeys = map[string]configKeyInfo{
	"target.provider": stringKey(func(c *Config) *string { return &c.Target.Provider }),
	"target.model":    stringKey(func(c *Config) *string { return &c.Target.Model }),
	"target.api_key":  stringKey(func(c *Config) *string { return &c.Target.APIKey }),
	"target.base_url": stringKey(func(c *Config) *string { return &c.Target.BaseURL }),
	"target.timeout":  stringKey(func(c *Config) *string { return &c.Target.Timeout }),
	"proxy.listen":    stringKey(func(c *Config) *string { return &c.Proxy.Listen }),
	"proxy.upstream":  stringKey(func(c *Config) *string { return &c.Proxy.Upstream }),
	"log.dir":         stringKey(func(c *Config) *string { return &c.Log.Dir }),
	"log.sink":        stringKey(func(c *Config) *string { return &c.Log.Sink }),
	"log.dsn":         stringKey(func(c *Config) *string { return &c.Log.DSN }),
	"log.trace": {
		get: func(c *Config) string { return strconv.FormatBool(c.Log.Trace) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for log.trace: %w", err)
			}
			c.Log.Trace = b
			return nil
		},
	},
	"events.kafka_brokers":       listKey(func(c *Config) *[]string { return &c.Events.KafkaBrokers }),
	"events.kafka_topic":         stringKey(func(c *Config) *string { return &c.Events.KafkaTopic }),
	"transform.excluded_markers": listKey(func(c *Config) *[]string { return &c.Transform.ExcludedMarkers }),
	"stream.chunk_size": {
		get: func(c *Config) string {
			if c.Stream.ChunkSize == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Stream.ChunkSize), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for stream.chunk_size: %w", err)
			}
			c.Stream.ChunkSize = uint(n)
			return nil
		},
	},
}

// secretKeys are masked by "bridge config list".
var secretKeys = map[string]struct{}{
	"target.api_key": {},
	"log.dsn":        {},
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	_, ok := secretKeys[key]
	return ok
}
