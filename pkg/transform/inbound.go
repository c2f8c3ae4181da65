package transform

import (
	"encoding/json"
	"fmt"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"
)

// ToConversation converts a request into a neutral conversation, keeping
// message order. Each tool_result is linked to the tool_use with the same id
// in the nearest preceding assistant turn. A result whose id only appears in
// an earlier assistant turn is kept without a link; an id that never
// appeared is an error.
func ToConversation(req *anthropic.Request) (*llm.Conversation, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", ErrUnsupportedShape)
	}

	system, err := anthropic.SystemText(req.System)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedShape, err)
	}

	conv := &llm.Conversation{
		System:   system,
		Messages: make([]llm.Message, 0, len(req.Messages)),
	}

	tools, err := toToolDefinitions(req.Tools)
	if err != nil {
		return nil, err
	}
	conv.Tools = tools

	seen := map[string]struct{}{}
	var nearest map[string]string

	for i, msg := range req.Messages {
		if msg.Role != llm.RoleUser && msg.Role != llm.RoleAssistant {
			return nil, fmt.Errorf("%w: message %d has role %q", ErrUnsupportedShape, i, msg.Role)
		}

		blocks, err := msg.Blocks()
		if err != nil {
			return nil, fmt.Errorf("%w: message %d: %w", ErrUnsupportedShape, i, err)
		}
		if len(blocks) == 0 {
			return nil, fmt.Errorf("%w: message %d is empty", ErrUnsupportedShape, i)
		}

		out := llm.Message{Role: msg.Role, Content: make([]llm.ContentBlock, 0, len(blocks))}
		calls := map[string]string{}

		for j, b := range blocks {
			block, err := toBlock(b)
			if err != nil {
				return nil, fmt.Errorf("message %d block %d: %w", i, j, err)
			}

			switch block.Type {
			case llm.BlockToolUse:
				if msg.Role != llm.RoleAssistant {
					return nil, fmt.Errorf("%w: tool_use in %s message %d", ErrUnsupportedShape, msg.Role, i)
				}
				calls[block.ToolUseID] = block.ToolName
			case llm.BlockToolResult:
				if msg.Role != llm.RoleUser {
					return nil, fmt.Errorf("%w: tool_result in %s message %d", ErrUnsupportedShape, msg.Role, i)
				}
				if name, ok := nearest[block.ToolResultID]; ok {
					block.ToolName = name
				} else if _, ok := seen[block.ToolResultID]; !ok {
					return nil, fmt.Errorf("%w: %q in message %d", ErrUnresolvedToolResult, block.ToolResultID, i)
				}
			}
			out.Content = append(out.Content, block)
		}

		if msg.Role == llm.RoleAssistant {
			for id := range calls {
				seen[id] = struct{}{}
			}
			nearest = calls
		}
		conv.Messages = append(conv.Messages, out)
	}

	if conv.Messages[0].Role != llm.RoleUser {
		return nil, fmt.Errorf("%w: first message is not from the user", ErrUnsupportedShape)
	}
	if conv.LastMessage().Role != llm.RoleUser {
		return nil, fmt.Errorf("%w: last message is not from the user", ErrUnsupportedShape)
	}

	return conv, nil
}

func toBlock(b anthropic.ContentBlock) (llm.ContentBlock, error) {
	switch b.Type {
	case llm.BlockText:
		return llm.ContentBlock{Type: llm.BlockText, Text: b.Text}, nil

	case llm.BlockThinking:
		return llm.ContentBlock{Type: llm.BlockThinking, Thinking: b.Thinking, Signature: b.Signature}, nil

	case llm.BlockRedactedThinking:
		return llm.ContentBlock{Type: llm.BlockRedactedThinking, Data: b.Data}, nil

	case llm.BlockToolUse:
		if b.ID == "" || b.Name == "" {
			return llm.ContentBlock{}, fmt.Errorf("%w: tool_use without id or name", ErrUnsupportedShape)
		}
		block := llm.ContentBlock{Type: llm.BlockToolUse, ToolUseID: b.ID, ToolName: b.Name}
		var args map[string]any
		if len(b.Input) == 0 {
			block.ToolInput = map[string]any{}
		} else if err := json.Unmarshal(b.Input, &args); err == nil && args != nil {
			block.ToolInput = args
		} else {
			block.ToolInputRaw = string(b.Input)
		}
		return block, nil

	case llm.BlockToolResult:
		if b.ToolUseID == "" {
			return llm.ContentBlock{}, fmt.Errorf("%w: tool_result without tool_use_id", ErrUnsupportedShape)
		}
		output, err := anthropic.ToolResultText(b.Content)
		if err != nil {
			return llm.ContentBlock{}, fmt.Errorf("%w: %w", ErrUnsupportedShape, err)
		}
		return llm.ContentBlock{
			Type:         llm.BlockToolResult,
			ToolResultID: b.ToolUseID,
			ToolOutput:   output,
			IsError:      b.IsError,
		}, nil

	case llm.BlockImage:
		if b.Source == nil {
			return llm.ContentBlock{}, fmt.Errorf("%w: image without source", ErrUnsupportedShape)
		}
		switch b.Source.Type {
		case "base64":
			return llm.ContentBlock{Type: llm.BlockImage, ImageBase64: b.Source.Data, MediaType: b.Source.MediaType}, nil
		case "url":
			return llm.ContentBlock{Type: llm.BlockImage, ImageURL: b.Source.URL}, nil
		}
		return llm.ContentBlock{}, fmt.Errorf("%w: image source %q", ErrUnsupportedShape, b.Source.Type)

	default:
		return llm.ContentBlock{}, fmt.Errorf("%w: block type %q", ErrUnsupportedShape, b.Type)
	}
}

// toToolDefinitions keeps client tools only. Server tools run on the vendor
// and cannot be forwarded.
func toToolDefinitions(tools []anthropic.Tool) ([]llm.ToolDefinition, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	out := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		if t.Type != "" && t.Type != "custom" {
			return nil, fmt.Errorf("%w: server tool %q (%s)", ErrUnsupportedShape, t.Name, t.Type)
		}
		out = append(out, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	return out, nil
}
