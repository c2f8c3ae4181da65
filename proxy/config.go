package proxy

import "time"

// Config is the reverse proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8787")
	ListenAddr string

	// UpstreamURL is the vendor endpoint calls are addressed to
	// (e.g., "https://api.anthropic.com"). Untranslated calls reach it
	// unmodified.
	UpstreamURL string

	// Timeout bounds one upstream call, translated or not. Zero means
	// five minutes.
	Timeout time.Duration
}
