// Package stream synthesizes Messages API event streams from neutral
// results and reconstructs results from such streams.
package stream

import (
	"encoding/json"
	"io"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/bridge/pkg/sse"
	"github.com/papercomputeco/bridge/pkg/transform"
)

// Meta identifies the synthesized message.
type Meta struct {
	ID    string
	Model string
}

// Encoder writes a result as an event stream.
type Encoder struct {
	chunkSize int
}

// NewEncoder creates an Encoder that cuts deltas every chunkSize code points.
func NewEncoder(chunkSize int) *Encoder {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Encoder{chunkSize: chunkSize}
}

// Encode writes the stream for result to w. A failed result produces one
// error event and nothing else. Events are written in order: message_start,
// the thinking block, the text block, one block per tool call,
// message_delta, message_stop.
func (e *Encoder) Encode(w io.Writer, result *llm.AskResult, meta Meta) error {
	if !result.OK() {
		errType, message := transform.ErrorTypeAPI, "unknown error"
		if result != nil && result.Error != nil {
			errType, message = result.Error.Type, result.Error.Message
		}
		return sse.WriteEvent(w, anthropic.EventError, transform.ErrorResponse(errType, message))
	}

	usage := transform.ToUsage(result.Usage)
	usage.OutputTokens = 0
	err := sse.WriteEvent(w, anthropic.EventMessageStart, anthropic.MessageStart{
		Type: anthropic.EventMessageStart,
		Message: anthropic.MessageResponse{
			ID:      meta.ID,
			Type:    "message",
			Role:    llm.RoleAssistant,
			Model:   meta.Model,
			Content: []anthropic.ContentBlock{},
			Usage:   usage,
		},
	})
	if err != nil {
		return err
	}

	for index, block := range transform.ResponseBlocks(result.Message) {
		if err := e.writeBlock(w, index, block); err != nil {
			return err
		}
	}

	err = sse.WriteEvent(w, anthropic.EventMessageDelta, anthropic.MessageDelta{
		Type:  anthropic.EventMessageDelta,
		Delta: anthropic.MessageDeltaBody{StopReason: result.WireStopReason()},
		Usage: anthropic.MessageDeltaUsage{OutputTokens: result.Usage.OutputTokens},
	})
	if err != nil {
		return err
	}

	return sse.WriteEvent(w, anthropic.EventMessageStop, anthropic.MessageStop{Type: anthropic.EventMessageStop})
}

func (e *Encoder) writeBlock(w io.Writer, index int, block anthropic.ContentBlock) error {
	var (
		start  any
		deltas []anthropic.Delta
	)

	switch block.Type {
	case llm.BlockThinking:
		start = anthropic.ThinkingBlockStart{Type: llm.BlockThinking}
		for _, c := range Chunk(block.Thinking, e.chunkSize) {
			deltas = append(deltas, anthropic.Delta{Type: anthropic.DeltaThinking, Thinking: c})
		}
		if block.Signature != "" {
			deltas = append(deltas, anthropic.Delta{Type: anthropic.DeltaSignature, Signature: block.Signature})
		}
	case llm.BlockRedactedThinking:
		start = anthropic.ContentBlock{Type: llm.BlockRedactedThinking, Data: block.Data}
	case llm.BlockText:
		start = anthropic.TextBlockStart{Type: llm.BlockText}
		for _, c := range Chunk(block.Text, e.chunkSize) {
			deltas = append(deltas, anthropic.Delta{Type: anthropic.DeltaText, Text: c})
		}
	case llm.BlockToolUse:
		start = anthropic.ToolUseBlockStart{Type: llm.BlockToolUse, ID: block.ID, Name: block.Name, Input: json.RawMessage("{}")}
		for _, c := range Chunk(string(block.Input), e.chunkSize) {
			deltas = append(deltas, anthropic.Delta{Type: anthropic.DeltaInputJSON, PartialJSON: c})
		}
	default:
		return nil
	}

	err := sse.WriteEvent(w, anthropic.EventContentBlockStart, anthropic.ContentBlockStart{
		Type:         anthropic.EventContentBlockStart,
		Index:        index,
		ContentBlock: start,
	})
	if err != nil {
		return err
	}

	for _, d := range deltas {
		err := sse.WriteEvent(w, anthropic.EventContentBlockDelta, anthropic.ContentBlockDelta{
			Type:  anthropic.EventContentBlockDelta,
			Index: index,
			Delta: d,
		})
		if err != nil {
			return err
		}
	}

	return sse.WriteEvent(w, anthropic.EventContentBlockStop, anthropic.ContentBlockStop{
		Type:  anthropic.EventContentBlockStop,
		Index: index,
	})
}
