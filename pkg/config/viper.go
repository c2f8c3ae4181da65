package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/bridge/pkg/dotdir"
)

// EnvPrefix namespaces environment overrides, e.g. BRIDGE_TARGET_API_KEY.
const EnvPrefix = "BRIDGE"

// InitViper returns a viper instance layered as
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. BRIDGE_* environment variables
//  3. config.toml
//  4. NewDefaultConfig
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("target.provider", d.Target.Provider)
	v.SetDefault("target.model", d.Target.Model)
	v.SetDefault("target.api_key", d.Target.APIKey)
	v.SetDefault("target.base_url", d.Target.BaseURL)
	v.SetDefault("target.timeout", d.Target.Timeout)

	v.SetDefault("proxy.listen", d.Proxy.Listen)
	v.SetDefault("proxy.upstream", d.Proxy.Upstream)

	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("log.sink", d.Log.Sink)
	v.SetDefault("log.dsn", d.Log.DSN)
	v.SetDefault("log.trace", d.Log.Trace)

	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)

	v.SetDefault("transform.excluded_markers", d.Transform.ExcludedMarkers)
	v.SetDefault("stream.chunk_size", d.Stream.ChunkSize)
}

// FromViper materializes the effective Config from a layered viper instance.
func FromViper(v *viper.Viper) *Config {
	list := func(key string) []string {
		return SplitList(strings.Join(v.GetStringSlice(key), ","))
	}

	return &Config{
		Version: v.GetInt("version"),
		Target: TargetConfig{
			Provider: v.GetString("target.provider"),
			Model:    v.GetString("target.model"),
			APIKey:   v.GetString("target.api_key"),
			BaseURL:  v.GetString("target.base_url"),
			Timeout:  v.GetString("target.timeout"),
		},
		Proxy: ProxyConfig{
			Listen:   v.GetString("proxy.listen"),
			Upstream: v.GetString("proxy.upstream"),
		},
		Log: LogConfig{
			Dir:   v.GetString("log.dir"),
			Sink:  v.GetString("log.sink"),
			DSN:   v.GetString("log.dsn"),
			Trace: v.GetBool("log.trace"),
		},
		Events: EventsConfig{
			KafkaBrokers: list("events.kafka_brokers"),
			KafkaTopic:   v.GetString("events.kafka_topic"),
		},
		Transform: TransformConfig{
			ExcludedMarkers: list("transform.excluded_markers"),
		},
		Stream: StreamConfig{
			ChunkSize: v.GetUint("stream.chunk_size"),
		},
	}
}
