package dispatch

// Reasoning effort thresholds, in thinking budget tokens.
const (
	lowEffortBelow    = 4096
	mediumEffortBelow = 16384
)

// thinkingMapper turns a thinking budget into client options.
type thinkingMapper func(budget int) map[string]any

var thinkingTable = map[string]thinkingMapper{
	"openai": func(budget int) map[string]any {
		return map[string]any{"reasoning_effort": reasoningEffort(budget)}
	},
	"ollama": func(int) map[string]any {
		return map[string]any{"think": true}
	},
}

// ThinkingOptions returns the client options that request thinking from the
// named provider, or nil for providers without a mapping.
func ThinkingOptions(provider string, budget int) map[string]any {
	mapper, ok := thinkingTable[provider]
	if !ok {
		return nil
	}
	return mapper(budget)
}

func reasoningEffort(budget int) string {
	switch {
	case budget < lowEffortBelow:
		return "low"
	case budget < mediumEffortBelow:
		return "medium"
	default:
		return "high"
	}
}
