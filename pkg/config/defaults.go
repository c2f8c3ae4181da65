package config

const (
	defaultProvider = "openai"
	defaultModel    = "gpt-4o"
	defaultTimeout  = "5m"

	defaultListen   = ":8787"
	defaultUpstream = "https://api.anthropic.com"

	defaultSink = "jsonl"

	defaultKafkaTopic = "bridge.transformed"

	defaultChunkSize = 32
)

// DefaultExcludedMarkers name the small model class that is never translated.
var DefaultExcludedMarkers = []string{"haiku"}

// NewDefaultConfig returns a Config with every default filled in.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Target: TargetConfig{
			Provider: defaultProvider,
			Model:    defaultModel,
			Timeout:  defaultTimeout,
		},
		Proxy: ProxyConfig{
			Listen:   defaultListen,
			Upstream: defaultUpstream,
		},
		Log: LogConfig{
			Sink: defaultSink,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Transform: TransformConfig{
			ExcludedMarkers: append([]string(nil), DefaultExcludedMarkers...),
		},
		Stream: StreamConfig{
			ChunkSize: defaultChunkSize,
		},
	}
}
