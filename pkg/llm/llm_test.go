package llm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bridge/pkg/llm"
)

var _ = Describe("Message", func() {
	msg := llm.Message{
		Role: llm.RoleAssistant,
		Content: []llm.ContentBlock{
			{Type: llm.BlockThinking, Thinking: "let me "},
			{Type: llm.BlockText, Text: "Hello"},
			{Type: llm.BlockThinking, Thinking: "see"},
			{Type: llm.BlockToolUse, ToolUseID: "toolu_1", ToolName: "lookup"},
			{Type: llm.BlockText, Text: ", world"},
		},
	}

	It("concatenates text and thinking separately", func() {
		Expect(msg.GetText()).To(Equal("Hello, world"))
		Expect(msg.GetThinking()).To(Equal("let me see"))
	})

	It("returns tool calls in order", func() {
		calls := msg.ToolCalls()
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].ToolName).To(Equal("lookup"))
	})
})

var _ = Describe("Conversation", func() {
	It("reports the last message and image presence", func() {
		conv := llm.Conversation{}
		Expect(conv.LastMessage()).To(BeNil())
		Expect(conv.HasImages()).To(BeFalse())

		conv.Messages = append(conv.Messages, llm.Message{
			Role:    llm.RoleUser,
			Content: []llm.ContentBlock{{Type: llm.BlockImage, MediaType: "image/png", ImageBase64: "AAAA"}},
		})
		Expect(conv.LastMessage().Role).To(Equal(llm.RoleUser))
		Expect(conv.HasImages()).To(BeTrue())
	})

	It("flattens text for estimates", func() {
		conv := llm.Conversation{
			System:   "sys ",
			Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
			Tools:    []llm.ToolDefinition{{Name: "t", Parameters: []byte(`{}`)}},
		}
		Expect(conv.Text()).To(Equal("sys hit{}"))
	})
})

var _ = Describe("AskResult", func() {
	It("reports tool_use only when tools are called", func() {
		r := &llm.AskResult{Type: llm.ResultSuccess, StopReason: llm.StopMaxTokens}
		Expect(r.WireStopReason()).To(Equal(llm.StopEndTurn))

		r.Message.Content = []llm.ContentBlock{{Type: llm.BlockToolUse, ToolName: "x"}}
		Expect(r.WireStopReason()).To(Equal(llm.StopToolUse))
	})

	It("builds error results", func() {
		r := llm.NewErrorResult("api_error", "boom")
		Expect(r.OK()).To(BeFalse())
		Expect(r.Type).To(Equal(llm.ResultFailed))
		Expect(r.Error).To(Equal(&llm.ResultError{Type: "api_error", Message: "boom"}))
		Expect((*llm.AskResult)(nil).OK()).To(BeFalse())
	})
})
