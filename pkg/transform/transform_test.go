package transform_test

import (
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/bridge/pkg/transform"
)

func parse(body string) *anthropic.Request {
	req, err := anthropic.ParseRequest([]byte(body))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return req
}

var _ = Describe("Engine", func() {
	It("excludes haiku-class models by default", func() {
		engine := transform.NewEngine(nil)
		Expect(engine.Excluded("vendor-haiku-class-v1")).To(BeTrue())
		Expect(engine.Excluded("claude-3-5-HAIKU-latest")).To(BeTrue())
		Expect(engine.Excluded("claude-sonnet-4")).To(BeFalse())
	})

	It("refuses to translate an excluded model", func() {
		engine := transform.NewEngine(nil)
		_, err := engine.Translate([]byte(`{"model":"vendor-haiku-class-v1","max_tokens":5,"messages":[{"role":"user","content":"hi"}]}`))
		Expect(err).To(MatchError(transform.ErrExcludedModel))
	})

	It("swaps markers at runtime", func() {
		engine := transform.NewEngine([]string{" Mini "})
		Expect(engine.ExcludedMarkers()).To(Equal([]string{"mini"}))
		Expect(engine.Excluded("claude-haiku")).To(BeFalse())

		engine.SetExcludedMarkers(nil)
		Expect(engine.Excluded("gpt-mini")).To(BeFalse())
	})

	It("translates a valid body", func() {
		t, err := transform.NewEngine(nil).Translate([]byte(`{"model":"claude-sonnet-4","max_tokens":5,"system":"sys","messages":[{"role":"user","content":"hi"}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Request.Model).To(Equal("claude-sonnet-4"))
		Expect(t.Conversation.System).To(Equal("sys"))
	})

	It("reports malformed bodies as errors", func() {
		_, err := transform.NewEngine(nil).Translate([]byte(`{"model":`))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ToConversation", func() {
	It("splits content blocks and keeps order", func() {
		conv, err := transform.ToConversation(parse(`{
			"model": "m", "max_tokens": 10,
			"tools": [{"name":"get_weather","description":"forecast","input_schema":{"type":"object","properties":{"city":{"type":"string"}}}}],
			"messages": [
				{"role":"user","content":[{"type":"text","text":"weather?"},{"type":"image","source":{"type":"base64","media_type":"image/png","data":"AAAA"}}]},
				{"role":"assistant","content":[
					{"type":"thinking","thinking":"look it up","signature":"sig"},
					{"type":"text","text":"checking"},
					{"type":"tool_use","id":"toolu_1","name":"get_weather","input":{"city":"Oslo"}}
				]},
				{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":[{"type":"text","text":"sunny"}]}]}
			]
		}`))
		Expect(err).NotTo(HaveOccurred())

		Expect(conv.Tools).To(HaveLen(1))
		Expect(string(conv.Tools[0].Parameters)).To(ContainSubstring(`"city"`))
		Expect(conv.Messages).To(HaveLen(3))
		Expect(conv.HasImages()).To(BeTrue())

		assistant := conv.Messages[1]
		Expect(assistant.Content[0]).To(Equal(llm.ContentBlock{Type: llm.BlockThinking, Thinking: "look it up", Signature: "sig"}))
		Expect(assistant.ToolCalls()[0].ToolInput).To(Equal(map[string]any{"city": "Oslo"}))

		result := conv.Messages[2].Content[0]
		Expect(result.Type).To(Equal(llm.BlockToolResult))
		Expect(result.ToolOutput).To(Equal("sunny"))
		Expect(result.ToolName).To(Equal("get_weather"))
	})

	It("keeps a result answering an older turn but leaves it unlinked", func() {
		conv, err := transform.ToConversation(parse(`{"model":"m","max_tokens":1,"messages":[
			{"role":"user","content":"go"},
			{"role":"assistant","content":[{"type":"tool_use","id":"a","name":"one","input":{}}]},
			{"role":"user","content":[{"type":"tool_result","tool_use_id":"a","content":"1"}]},
			{"role":"assistant","content":[{"type":"tool_use","id":"b","name":"two","input":{}}]},
			{"role":"user","content":[
				{"type":"tool_result","tool_use_id":"b","content":"2"},
				{"type":"tool_result","tool_use_id":"a","content":"late"}
			]}
		]}`))
		Expect(err).NotTo(HaveOccurred())

		last := conv.LastMessage().Content
		Expect(last[0].ToolName).To(Equal("two"))
		Expect(last[1].ToolResultID).To(Equal("a"))
		Expect(last[1].ToolName).To(BeEmpty())
	})

	It("keeps unparseable tool input as raw text", func() {
		conv, err := transform.ToConversation(parse(`{"model":"m","max_tokens":1,"messages":[
			{"role":"user","content":"go"},
			{"role":"assistant","content":[{"type":"tool_use","id":"a","name":"one","input":"not-an-object"}]},
			{"role":"user","content":[{"type":"tool_result","tool_use_id":"a","content":"ok"}]}
		]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(conv.Messages[1].Content[0].ToolInputRaw).To(Equal(`"not-an-object"`))
	})

	DescribeTable("rejects shapes it cannot represent",
		func(body string, want error) {
			_, err := transform.ToConversation(parse(body))
			Expect(err).To(MatchError(want))
		},
		Entry("no messages",
			`{"model":"m","max_tokens":1,"messages":[]}`, transform.ErrUnsupportedShape),
		Entry("unknown role",
			`{"model":"m","max_tokens":1,"messages":[{"role":"system","content":"x"}]}`, transform.ErrUnsupportedShape),
		Entry("assistant first",
			`{"model":"m","max_tokens":1,"messages":[{"role":"assistant","content":"x"},{"role":"user","content":"y"}]}`, transform.ErrUnsupportedShape),
		Entry("assistant prefill last",
			`{"model":"m","max_tokens":1,"messages":[{"role":"user","content":"x"},{"role":"assistant","content":"y"}]}`, transform.ErrUnsupportedShape),
		Entry("tool_use from the user",
			`{"model":"m","max_tokens":1,"messages":[{"role":"user","content":[{"type":"tool_use","id":"a","name":"n","input":{}}]}]}`, transform.ErrUnsupportedShape),
		Entry("tool_result from the assistant",
			`{"model":"m","max_tokens":1,"messages":[{"role":"user","content":"x"},{"role":"assistant","content":[{"type":"tool_result","tool_use_id":"a","content":"r"}]},{"role":"user","content":"y"}]}`, transform.ErrUnsupportedShape),
		Entry("tool_result never requested",
			`{"model":"m","max_tokens":1,"messages":[{"role":"user","content":[{"type":"tool_result","tool_use_id":"ghost","content":"r"}]}]}`, transform.ErrUnresolvedToolResult),
		Entry("unknown block type",
			`{"model":"m","max_tokens":1,"messages":[{"role":"user","content":[{"type":"document","source":{"type":"base64"}}]}]}`, transform.ErrUnsupportedShape),
		Entry("server tool",
			`{"model":"m","max_tokens":1,"tools":[{"type":"web_search_20250305","name":"web_search"}],"messages":[{"role":"user","content":"x"}]}`, transform.ErrUnsupportedShape),
		Entry("empty content",
			`{"model":"m","max_tokens":1,"messages":[{"role":"user","content":[]}]}`, transform.ErrUnsupportedShape),
	)
})

var _ = Describe("responses", func() {
	result := &llm.AskResult{
		Type: llm.ResultSuccess,
		Message: llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: llm.BlockText, Text: "calling"},
			{Type: llm.BlockThinking, Thinking: "plan"},
			{Type: llm.BlockToolUse, ToolUseID: "toolu_1", ToolName: "a", ToolInput: map[string]any{"x": 1.0}},
			{Type: llm.BlockToolUse, ToolUseID: "toolu_2", ToolName: "b", ToolInputRaw: "{broken"},
		}},
		Usage:      llm.Usage{InputTokens: 10, OutputTokens: 4},
		StopReason: llm.StopMaxTokens,
	}

	It("orders blocks thinking, text, tool calls", func() {
		blocks := transform.ResponseBlocks(result.Message)
		types := []string{}
		for _, b := range blocks {
			types = append(types, b.Type)
		}
		Expect(types).To(Equal([]string{"thinking", "text", "tool_use", "tool_use"}))
		Expect(string(blocks[3].Input)).To(Equal("{broken"))
	})

	It("merges thinking and keeps redacted thinking", func() {
		msg := llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: llm.BlockThinking, Thinking: "first "},
			{Type: llm.BlockRedactedThinking, Data: "opaque"},
			{Type: llm.BlockThinking, Thinking: "second", Signature: "sig-2"},
			{Type: llm.BlockText, Text: "done"},
		}}

		blocks := transform.ResponseBlocks(msg)
		Expect(blocks).To(HaveLen(3))
		Expect(blocks[0].Thinking).To(Equal("first second"))
		Expect(blocks[0].Signature).To(Equal("sig-2"))
		Expect(blocks[1].Type).To(Equal(llm.BlockRedactedThinking))
		Expect(blocks[1].Data).To(Equal("opaque"))
		Expect(blocks[2].Text).To(Equal("done"))
	})

	It("builds a JSON message response", func() {
		resp := transform.ToMessageResponse(result, "claude-sonnet-4", "msg_1")
		Expect(resp.Type).To(Equal("message"))
		Expect(resp.Model).To(Equal("claude-sonnet-4"))
		Expect(*resp.StopReason).To(Equal("tool_use"))
		Expect(resp.Usage.InputTokens).To(Equal(10))
		Expect(string(resp.Content[3].Input)).To(Equal("{}"))

		_, err := json.Marshal(resp)
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports end_turn without tool calls", func() {
		plain := &llm.AskResult{Type: llm.ResultSuccess, Message: llm.NewTextMessage(llm.RoleAssistant, "hi"), StopReason: llm.StopMaxTokens}
		Expect(*transform.ToMessageResponse(plain, "m", "id").StopReason).To(Equal("end_turn"))
	})

	It("builds error envelopes", func() {
		env := transform.ErrorResponse("", "upstream failed")
		Expect(env.Type).To(Equal("error"))
		Expect(env.Error.Type).To(Equal(transform.ErrorTypeAPI))
		Expect(transform.ErrorStatus(transform.ErrorTypeRateLimit)).To(Equal(http.StatusTooManyRequests))
		Expect(transform.ErrorStatus(transform.ErrorTypeAPI)).To(Equal(http.StatusInternalServerError))
	})

	It("creates vendor-shaped message ids", func() {
		Expect(transform.NewMessageID()).To(MatchRegexp(`^msg_[0-9a-f]{24}$`))
	})
})
