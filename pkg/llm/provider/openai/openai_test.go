package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/openai"
)

var _ = Describe("Client", func() {
	var (
		upstream   *httptest.Server
		received   map[string]any
		authHeader string
		status     int
		reply      string
		client     *openai.Client
	)

	BeforeEach(func() {
		status = http.StatusOK
		reply = `{
			"id": "chatcmpl-1",
			"model": "gpt-4o-2024-08-06",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "It is sunny.", "reasoning_content": "check the forecast"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 21, "completion_tokens": 5, "prompt_tokens_details": {"cached_tokens": 4}}
		}`

		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			authHeader = r.Header.Get("Authorization")
			body, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			received = nil
			Expect(json.Unmarshal(body, &received)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, reply)
		}))
		DeferCleanup(upstream.Close)

		var err error
		client, err = openai.NewClient(openai.Config{BaseURL: upstream.URL + "/", APIKey: "sk-test", Model: "gpt-4o"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("names itself", func() {
		Expect(client.Name()).To(Equal("openai"))
	})

	It("maps a plain answer with reasoning and usage", func() {
		maxTokens := 512
		result, err := client.Ask(context.Background(), llm.Input{Content: "weather?"}, llm.Options{
			Context:         &llm.Conversation{System: "be brief"},
			MaxOutputTokens: &maxTokens,
			Extra:           map[string]any{"reasoning_effort": "medium"},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(authHeader).To(Equal("Bearer sk-test"))
		Expect(received["model"]).To(Equal("gpt-4o"))
		Expect(received["max_completion_tokens"]).To(BeNumerically("==", 512))
		Expect(received["reasoning_effort"]).To(Equal("medium"))
		Expect(received["stream"]).To(BeFalse())

		messages := received["messages"].([]any)
		Expect(messages).To(HaveLen(2))
		Expect(messages[0]).To(HaveKeyWithValue("role", "system"))
		Expect(messages[1]).To(HaveKeyWithValue("content", "weather?"))

		Expect(result.OK()).To(BeTrue())
		Expect(result.Message.GetThinking()).To(Equal("check the forecast"))
		Expect(result.Message.GetText()).To(Equal("It is sunny."))
		Expect(result.StopReason).To(Equal(llm.StopEndTurn))
		Expect(result.Usage).To(Equal(llm.Usage{InputTokens: 21, OutputTokens: 5, CacheReadInputTokens: 4}))
	})

	It("sends history, tools and tool results in chat shape", func() {
		reply = `{"model":"gpt-4o","choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Oslo\"}"}},
			{"id":"call_2","type":"function","function":{"name":"get_time","arguments":"not json"}}
		]},"finish_reason":"tool_calls"}]}`

		conv := &llm.Conversation{
			Messages: []llm.Message{
				llm.NewTextMessage(llm.RoleUser, "hi"),
				{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
					{Type: llm.BlockThinking, Thinking: "dropped"},
					{Type: llm.BlockToolUse, ToolUseID: "call_0", ToolName: "get_weather", ToolInput: map[string]any{"city": "Bergen"}},
				}},
			},
			Tools: []llm.ToolDefinition{{Name: "get_weather", Description: "forecast"}},
		}
		input := llm.Input{
			ToolResults: []llm.ContentBlock{{Type: llm.BlockToolResult, ToolResultID: "call_0", ToolOutput: "rain"}},
			Attachments: []llm.ContentBlock{{Type: llm.BlockImage, MediaType: "image/png", ImageBase64: "AAAA"}},
			Content:     "and now?",
		}

		result, err := client.Ask(context.Background(), input, llm.Options{Context: conv})
		Expect(err).NotTo(HaveOccurred())

		messages := received["messages"].([]any)
		Expect(messages).To(HaveLen(4))
		assistant := messages[1].(map[string]any)
		Expect(assistant["content"]).To(BeNil())
		Expect(assistant["tool_calls"]).To(HaveLen(1))
		Expect(messages[2]).To(HaveKeyWithValue("role", "tool"))
		Expect(messages[2]).To(HaveKeyWithValue("tool_call_id", "call_0"))
		parts := messages[3].(map[string]any)["content"].([]any)
		Expect(parts).To(HaveLen(2))
		Expect(parts[1].(map[string]any)["image_url"]).To(HaveKeyWithValue("url", "data:image/png;base64,AAAA"))

		tools := received["tools"].([]any)
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		Expect(fn["parameters"]).To(HaveKeyWithValue("type", "object"))

		calls := result.Message.ToolCalls()
		Expect(calls).To(HaveLen(2))
		Expect(calls[0].ToolInput).To(Equal(map[string]any{"city": "Oslo"}))
		Expect(calls[1].ToolInputRaw).To(Equal("not json"))
		Expect(result.StopReason).To(Equal(llm.StopToolUse))
	})

	It("returns an APIError for non-2xx answers", func() {
		status = http.StatusTooManyRequests
		reply = `{"error":{"message":"slow down","type":"rate_limit","code":"rate_limit_exceeded"}}`

		_, err := client.Ask(context.Background(), llm.Input{Content: "x"}, llm.Options{})
		var apiErr *llm.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusTooManyRequests))
		Expect(apiErr.Code).To(Equal("rate_limit_exceeded"))
		Expect(apiErr.Message).To(Equal("slow down"))
	})

	It("fails on a response with no choices", func() {
		reply = `{"choices":[]}`
		_, err := client.Ask(context.Background(), llm.Input{Content: "x"}, llm.Options{})
		Expect(err).To(MatchError(ContainSubstring("no choices")))
	})
})
