package ollama_test

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
	"github.com/papercomputeco/bridge/pkg/llm/provider/ollama"
)

var _ = Describe("Client", func() {
	var (
		upstream *httptest.Server
		received map[string]any
		status   int
		reply    string
		client   *ollama.Client
	)

	BeforeEach(func() {
		status = http.StatusOK
		reply = `{"model":"qwen3","message":{"role":"assistant","content":"hello","thinking":"greet back"},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":3}`

		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/chat"))
			body, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			received = nil
			Expect(json.Unmarshal(body, &received)).To(Succeed())
			w.WriteHeader(status)
			_, _ = io.WriteString(w, reply)
		}))
		DeferCleanup(upstream.Close)

		var err error
		client, err = ollama.NewClient(ollama.Config{BaseURL: upstream.URL, Model: "qwen3"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("disables streaming and forwards think and options", func() {
		maxTokens := 100
		result, err := client.Ask(context.Background(), llm.Input{Content: "hi"}, llm.Options{
			MaxOutputTokens: &maxTokens,
			Extra:           map[string]any{"think": true},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(received["stream"]).To(BeFalse())
		Expect(received["think"]).To(BeTrue())
		Expect(received["options"]).To(HaveKeyWithValue("num_predict", BeNumerically("==", 100)))

		Expect(result.Message.GetThinking()).To(Equal("greet back"))
		Expect(result.Message.GetText()).To(Equal("hello"))
		Expect(result.Usage.InputTokens).To(Equal(12))
		Expect(result.Usage.OutputTokens).To(Equal(3))
		Expect(result.StopReason).To(Equal(llm.StopEndTurn))
	})

	It("names tool messages after the call they answer", func() {
		conv := &llm.Conversation{Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "weather?"),
			{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
				{Type: llm.BlockToolUse, ToolUseID: "toolu_1", ToolName: "get_weather", ToolInput: map[string]any{"city": "Oslo"}},
			}},
		}}
		input := llm.Input{
			ToolResults: []llm.ContentBlock{{Type: llm.BlockToolResult, ToolResultID: "toolu_1", ToolOutput: "sunny"}},
			Attachments: []llm.ContentBlock{{Type: llm.BlockImage, ImageBase64: "AAAA", MediaType: "image/png"}},
		}

		_, err := client.Ask(context.Background(), input, llm.Options{Context: conv})
		Expect(err).NotTo(HaveOccurred())

		messages := received["messages"].([]any)
		Expect(messages).To(HaveLen(4))
		Expect(messages[2]).To(HaveKeyWithValue("role", "tool"))
		Expect(messages[2]).To(HaveKeyWithValue("tool_name", "get_weather"))
		Expect(messages[3]).To(HaveKeyWithValue("images", ConsistOf("AAAA")))
	})

	It("assigns IDs to tool calls that arrive without one", func() {
		reply = `{"model":"qwen3","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_time","arguments":{"tz":"UTC"}}}]},"done":true}`

		result, err := client.Ask(context.Background(), llm.Input{Content: "time?"}, llm.Options{})
		Expect(err).NotTo(HaveOccurred())

		calls := result.Message.ToolCalls()
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].ToolUseID).To(HavePrefix("toolu_"))
		Expect(calls[0].ToolInput).To(HaveKeyWithValue("tz", "UTC"))
		Expect(result.StopReason).To(Equal(llm.StopToolUse))
	})

	It("maps a length stop to max_tokens", func() {
		reply = `{"model":"qwen3","message":{"role":"assistant","content":"trunc"},"done":true,"done_reason":"length"}`
		result, err := client.Ask(context.Background(), llm.Input{Content: "x"}, llm.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.StopReason).To(Equal(llm.StopMaxTokens))
	})

	It("returns an APIError for error bodies", func() {
		status = http.StatusNotFound
		reply = `{"error":"model \"nope\" not found"}`

		_, err := client.Ask(context.Background(), llm.Input{Content: "x"}, llm.Options{Model: "nope"})
		var apiErr *llm.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(http.StatusNotFound))
		Expect(apiErr.Message).To(ContainSubstring("not found"))
	})
})
