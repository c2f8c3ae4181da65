package capability

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/bridge/pkg/logger"
)

// Params are the request features a validation looks at.
type Params struct {
	MaxTokens      int
	Thinking       bool
	ThinkingBudget int
	Tools          bool
	Images         bool

	// InputText is used for the context window estimate. Empty skips it.
	InputText string
}

// ParamsFrom collects Params from a request and its neutral conversation.
func ParamsFrom(req *anthropic.Request, conv *llm.Conversation) Params {
	p := Params{
		MaxTokens: req.MaxTokens,
		Thinking:  req.Thinking.Enabled(),
	}
	if p.Thinking {
		p.ThinkingBudget = req.Thinking.BudgetTokens
	}
	if conv != nil {
		p.Tools = len(conv.Tools) > 0
		p.Images = conv.HasImages()
		p.InputText = conv.Text()
	}
	return p
}

// Adjustments are changes the caller should apply. Nil fields mean no
// change.
type Adjustments struct {
	MaxOutputTokens *int `json:"max_output_tokens,omitempty"`

	// DropThinking is set when thinking was requested from a model that
	// does not support it.
	DropThinking bool `json:"drop_thinking,omitempty"`
}

// Result is the outcome of one validation. Valid is false when any warning
// was raised.
type Result struct {
	Valid       bool        `json:"valid"`
	Skipped     bool        `json:"skipped,omitempty"`
	Warnings    []string    `json:"warnings"`
	Adjustments Adjustments `json:"adjustments"`
}

// Validator checks Params against a Descriptor.
type Validator struct {
	logger  *slog.Logger
	counter TokenCounter
}

// NewValidator creates a Validator. A nil counter disables the context
// window check.
func NewValidator(log *slog.Logger, counter TokenCounter) *Validator {
	if log == nil {
		log = logger.Nop()
	}
	return &Validator{logger: log, counter: counter}
}

// Validate never modifies p. A nil desc means the model is unknown: the
// request is not checked and a warning is logged.
func (v *Validator) Validate(desc *Descriptor, p Params) Result {
	res := Result{Warnings: []string{}}

	if desc == nil {
		v.logger.Warn("model not in capability registry, skipping validation")
		res.Valid = true
		res.Skipped = true
		return res
	}

	if p.Thinking && !desc.SupportsThinking {
		res.Adjustments.DropThinking = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s does not support thinking; the thinking request is ignored", desc.ID))
	}

	if desc.MaxOutputTokens > 0 && p.MaxTokens > desc.MaxOutputTokens {
		limit := desc.MaxOutputTokens
		res.Adjustments.MaxOutputTokens = &limit
		res.Warnings = append(res.Warnings, fmt.Sprintf("max_tokens %d exceeds the %s limit of %d", p.MaxTokens, desc.ID, limit))
	}

	if p.Tools && !desc.SupportsTools {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s does not support tools", desc.ID))
	}

	if p.Images && !desc.SupportsImages {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s does not support images", desc.ID))
	}

	if v.counter != nil && p.InputText != "" && desc.ContextWindow > 0 {
		if n := v.counter(p.InputText); n > desc.ContextWindow {
			res.Warnings = append(res.Warnings, fmt.Sprintf("estimated %d input tokens exceed the %s context window of %d", n, desc.ID, desc.ContextWindow))
		}
	}

	res.Valid = len(res.Warnings) == 0
	for _, w := range res.Warnings {
		v.logger.Warn("capability mismatch", "model", desc.ID, "warning", w)
	}

	return res
}
