package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/bridge/pkg/sse"
)

// Decoder reassembles one message from stream events. Events that are
// illegal in the current state, or whose payload does not parse, are counted
// and otherwise ignored.
type Decoder struct {
	state State

	id    string
	model string

	open      *llm.ContentBlock
	openIndex int
	args      strings.Builder

	message    llm.Message
	usage      llm.Usage
	stopReason string
	failure    *llm.ResultError

	ignored int
}

// NewDecoder creates a Decoder in StateIdle.
func NewDecoder() *Decoder {
	return &Decoder{message: llm.Message{Role: llm.RoleAssistant}}
}

// State returns the current state.
func (d *Decoder) State() State {
	return d.state
}

// Ignored returns how many events were dropped.
func (d *Decoder) Ignored() int {
	return d.ignored
}

// ID returns the message id from message_start.
func (d *Decoder) ID() string {
	return d.id
}

// Feed applies one event.
func (d *Decoder) Feed(ev sse.Event) {
	var payload anthropic.StreamEvent
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
		d.ignored++
		return
	}

	eventType := ev.Type
	if eventType == "" {
		eventType = payload.Type
	}

	next, ok := Transition(d.state, eventType)
	if !ok || !d.apply(eventType, &payload) {
		d.ignored++
		return
	}
	d.state = next
}

// apply updates the message for a legal event. It returns false when the
// payload does not fit the event, leaving the state unchanged.
func (d *Decoder) apply(eventType string, p *anthropic.StreamEvent) bool {
	switch eventType {
	case anthropic.EventMessageStart:
		if p.Message == nil {
			return false
		}
		d.id = p.Message.ID
		d.model = p.Message.Model
		d.usage = llm.Usage{
			InputTokens:              p.Message.Usage.InputTokens,
			OutputTokens:             p.Message.Usage.OutputTokens,
			CacheCreationInputTokens: p.Message.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     p.Message.Usage.CacheReadInputTokens,
		}

	case anthropic.EventContentBlockStart:
		if p.ContentBlock == nil {
			return false
		}
		d.startBlock(p.Index, p.ContentBlock)

	case anthropic.EventContentBlockDelta:
		if p.Delta == nil || p.Index != d.openIndex {
			return false
		}
		return d.appendDelta(p.Delta)

	case anthropic.EventContentBlockStop:
		if p.Index != d.openIndex {
			return false
		}
		d.finishBlock()

	case anthropic.EventMessageDelta:
		if p.Delta != nil && p.Delta.StopReason != "" {
			d.stopReason = p.Delta.StopReason
		}
		if p.Usage != nil {
			// Input tokens only change when a delta reports them; output
			// tokens always take the latest value.
			if p.Usage.InputTokens != nil {
				d.usage.InputTokens = *p.Usage.InputTokens
			}
			if p.Usage.OutputTokens != nil {
				d.usage.OutputTokens = *p.Usage.OutputTokens
			}
		}

	case anthropic.EventError:
		d.failure = &llm.ResultError{Type: "api_error", Message: "stream error"}
		if p.Error != nil {
			d.failure = &llm.ResultError{Type: p.Error.Type, Message: p.Error.Message}
		}
	}

	return true
}

func (d *Decoder) startBlock(index int, cb *anthropic.ContentBlock) {
	d.openIndex = index
	d.args.Reset()

	block := &llm.ContentBlock{Type: cb.Type}
	switch cb.Type {
	case llm.BlockText:
		block.Text = cb.Text
	case llm.BlockThinking:
		block.Thinking = cb.Thinking
		block.Signature = cb.Signature
	case llm.BlockRedactedThinking:
		block.Data = cb.Data
	case llm.BlockToolUse:
		block.ToolUseID = cb.ID
		block.ToolName = cb.Name
		if len(cb.Input) > 0 && string(cb.Input) != "{}" {
			d.args.Write(cb.Input)
		}
	}
	d.open = block
}

func (d *Decoder) appendDelta(delta *anthropic.Delta) bool {
	switch delta.Type {
	case anthropic.DeltaText:
		d.open.Text += delta.Text
	case anthropic.DeltaThinking:
		d.open.Thinking += delta.Thinking
	case anthropic.DeltaSignature:
		d.open.Signature += delta.Signature
	case anthropic.DeltaInputJSON:
		d.args.WriteString(delta.PartialJSON)
	default:
		return false
	}
	return true
}

func (d *Decoder) finishBlock() {
	block := d.open
	d.open = nil

	if block.Type == llm.BlockToolUse {
		raw := d.args.String()
		var args map[string]any
		switch {
		case raw == "":
			block.ToolInput = map[string]any{}
		case json.Unmarshal([]byte(raw), &args) == nil && args != nil:
			block.ToolInput = args
		default:
			block.ToolInputRaw = raw
		}
	}

	d.message.Content = append(d.message.Content, *block)
}

// Result returns what has been reconstructed so far. A stream that carried
// an error event yields an error result.
func (d *Decoder) Result() *llm.AskResult {
	if d.failure != nil {
		return llm.NewErrorResult(d.failure.Type, d.failure.Message)
	}

	msg := llm.Message{Role: d.message.Role, Content: append([]llm.ContentBlock(nil), d.message.Content...)}
	return &llm.AskResult{
		Type:       llm.ResultSuccess,
		Model:      d.model,
		Message:    msg,
		Usage:      d.usage,
		StopReason: d.stopReason,
	}
}

// Decode reads a whole stream from r.
func Decode(r io.Reader) (*llm.AskResult, *Decoder, error) {
	d := NewDecoder()
	reader := sse.NewReader(r)
	for {
		ev, err := reader.Next()
		if err != nil {
			return d.Result(), d, fmt.Errorf("reading event stream: %w", err)
		}
		if ev == nil {
			return d.Result(), d, nil
		}
		d.Feed(*ev)
	}
}
