// Package capability describes what target models support and checks
// requests against those limits.
package capability

import (
	"sort"
	"strings"
)

// Descriptor declares a model's features and limits.
type Descriptor struct {
	ID               string `json:"id"`
	SupportsThinking bool   `json:"supports_thinking"`
	MaxOutputTokens  int    `json:"max_output_tokens"`
	ContextWindow    int    `json:"context_window"`
	SupportsTools    bool   `json:"supports_tools"`
	SupportsImages   bool   `json:"supports_images"`
}

// Registry is a static, read-only set of descriptors.
type Registry struct {
	byID     map[string]Descriptor
	prefixes []string
}

// NewRegistry indexes descriptors by id. Later duplicates win.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{byID: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		r.byID[strings.ToLower(d.ID)] = d
	}
	for id := range r.byID {
		r.prefixes = append(r.prefixes, id)
	}
	// Longest first so that "gpt-4o-mini" wins over "gpt-4o".
	sort.Slice(r.prefixes, func(i, j int) bool {
		if len(r.prefixes[i]) != len(r.prefixes[j]) {
			return len(r.prefixes[i]) > len(r.prefixes[j])
		}
		return r.prefixes[i] < r.prefixes[j]
	})
	return r
}

// Lookup finds the descriptor for model by exact id, then by the longest
// registered id that prefixes it (dated and tagged variants).
func (r *Registry) Lookup(model string) (*Descriptor, bool) {
	key := strings.ToLower(model)
	if d, ok := r.byID[key]; ok {
		return &d, true
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(key, p) {
			d := r.byID[p]
			return &d, true
		}
	}
	return nil, false
}

// Len returns the number of descriptors.
func (r *Registry) Len() int {
	return len(r.byID)
}

// DefaultRegistry knows the models bridge targets out of the box.
func DefaultRegistry() *Registry {
	return NewRegistry(
		// OpenAI
		Descriptor{ID: "gpt-4o", MaxOutputTokens: 16384, ContextWindow: 128000, SupportsTools: true, SupportsImages: true},
		Descriptor{ID: "gpt-4o-mini", MaxOutputTokens: 16384, ContextWindow: 128000, SupportsTools: true, SupportsImages: true},
		Descriptor{ID: "gpt-4.1", MaxOutputTokens: 32768, ContextWindow: 1047576, SupportsTools: true, SupportsImages: true},
		Descriptor{ID: "gpt-5", SupportsThinking: true, MaxOutputTokens: 128000, ContextWindow: 400000, SupportsTools: true, SupportsImages: true},
		Descriptor{ID: "o3", SupportsThinking: true, MaxOutputTokens: 100000, ContextWindow: 200000, SupportsTools: true, SupportsImages: true},
		Descriptor{ID: "o4-mini", SupportsThinking: true, MaxOutputTokens: 100000, ContextWindow: 200000, SupportsTools: true, SupportsImages: true},

		// Ollama
		Descriptor{ID: "llama3.2", MaxOutputTokens: 4096, ContextWindow: 131072, SupportsTools: true},
		Descriptor{ID: "llama3.1", MaxOutputTokens: 4096, ContextWindow: 131072, SupportsTools: true},
		Descriptor{ID: "qwen3", SupportsThinking: true, MaxOutputTokens: 8192, ContextWindow: 40960, SupportsTools: true},
		Descriptor{ID: "deepseek-r1", SupportsThinking: true, MaxOutputTokens: 8192, ContextWindow: 131072},
		Descriptor{ID: "llava", MaxOutputTokens: 4096, ContextWindow: 4096, SupportsImages: true},
		Descriptor{ID: "gemma3", MaxOutputTokens: 8192, ContextWindow: 131072, SupportsImages: true},
	)
}
