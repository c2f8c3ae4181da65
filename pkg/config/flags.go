package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag describes one CLI flag and the config key it feeds, so the same
// logical flag cannot drift between commands.
type Flag struct {
	Name        string
	Shorthand   string
	ViperKey    string
	Description string
}

// FlagSet maps registry keys to flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen    = "listen"
	FlagUpstream  = "upstream"
	FlagProvider  = "provider"
	FlagModel     = "model"
	FlagBaseURL   = "base-url"
	FlagLogDir    = "log-dir"
	FlagLogSink   = "log-sink"
	FlagLogDSN    = "log-dsn"
	FlagTrace     = "trace"
	FlagChunkSize = "chunk-size"
)

// ServeFlags is the registry used by "bridge serve".
var ServeFlags = FlagSet{
	FlagListen:    {Name: "listen", Shorthand: "l", ViperKey: "proxy.listen", Description: "Address for the bridge to listen on"},
	FlagUpstream:  {Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream", Description: "Vendor endpoint for untranslated requests"},
	FlagProvider:  {Name: "provider", Shorthand: "p", ViperKey: "target.provider", Description: "Target provider (openai, ollama)"},
	FlagModel:     {Name: "model", Shorthand: "m", ViperKey: "target.model", Description: "Target model id"},
	FlagBaseURL:   {Name: "base-url", ViperKey: "target.base_url", Description: "Target provider base URL"},
	FlagLogDir:    {Name: "log-dir", ViperKey: "log.dir", Description: "Directory for JSONL traffic logs"},
	FlagLogSink:   {Name: "log-sink", ViperKey: "log.sink", Description: "Traffic log sink (jsonl, sqlite, postgres)"},
	FlagLogDSN:    {Name: "log-dsn", ViperKey: "log.dsn", Description: "SQLite path or Postgres connection string for the log sink"},
	FlagTrace:     {Name: "trace", ViperKey: "log.trace", Description: "Log full request and response bodies"},
	FlagChunkSize: {Name: "chunk-size", ViperKey: "stream.chunk_size", Description: "Characters per synthesized SSE delta"},
}

// AddStringFlag registers a string flag described by fs[key].
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaults().GetString(def.ViperKey), def.Description)
}

// AddUintFlag registers a uint flag described by fs[key].
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaults().GetUint(def.ViperKey), def.Description)
}

// AddBoolFlag registers a bool flag described by fs[key].
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaults().GetBool(def.ViperKey), def.Description)
}

// BindRegisteredFlags connects already-registered flags to v so that a flag
// set on the command line outranks env, file and defaults.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}
		if f := cmd.Flags().Lookup(def.Name); f != nil {
			_ = v.BindPFlag(def.ViperKey, f)
		}
	}
}

func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
