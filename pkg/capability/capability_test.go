package capability_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bridge/pkg/capability"
	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/bridge/pkg/logger"
)

var _ = Describe("Registry", func() {
	registry := capability.NewRegistry(
		capability.Descriptor{ID: "gpt-4o", MaxOutputTokens: 16384},
		capability.Descriptor{ID: "gpt-4o-mini", MaxOutputTokens: 8192},
	)

	It("prefers an exact match", func() {
		d, ok := registry.Lookup("gpt-4o")
		Expect(ok).To(BeTrue())
		Expect(d.MaxOutputTokens).To(Equal(16384))
	})

	It("falls back to the longest prefix", func() {
		d, ok := registry.Lookup("GPT-4o-mini-2024-07-18")
		Expect(ok).To(BeTrue())
		Expect(d.ID).To(Equal("gpt-4o-mini"))
	})

	It("reports unknown models", func() {
		_, ok := registry.Lookup("mystery-model")
		Expect(ok).To(BeFalse())
	})

	It("ships built-in descriptors for both targets", func() {
		defaults := capability.DefaultRegistry()
		Expect(defaults.Len()).To(BeNumerically(">", 0))
		_, ok := defaults.Lookup("gpt-4o")
		Expect(ok).To(BeTrue())
		_, ok = defaults.Lookup("llama3.2:3b")
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("Validator", func() {
	var (
		buf       *bytes.Buffer
		validator *capability.Validator
		desc      *capability.Descriptor
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		validator = capability.NewValidator(logger.New(logger.WithWriter(buf), logger.WithDebug(true)), capability.EstimateTokens)
		desc = &capability.Descriptor{ID: "small", MaxOutputTokens: 4096, ContextWindow: 100}
	})

	It("proposes lowering max_tokens without touching the request", func() {
		req := &anthropic.Request{Model: "small", MaxTokens: 8192}
		res := validator.Validate(desc, capability.ParamsFrom(req, nil))

		Expect(res.Valid).To(BeFalse())
		Expect(res.Warnings).NotTo(BeEmpty())
		Expect(res.Adjustments.MaxOutputTokens).NotTo(BeNil())
		Expect(*res.Adjustments.MaxOutputTokens).To(Equal(4096))
		Expect(req.MaxTokens).To(Equal(8192))
	})

	It("passes a request within limits", func() {
		res := validator.Validate(desc, capability.Params{MaxTokens: 1000})
		Expect(res.Valid).To(BeTrue())
		Expect(res.Warnings).To(BeEmpty())
		Expect(res.Adjustments.MaxOutputTokens).To(BeNil())
	})

	It("warns about unsupported features", func() {
		conv := &llm.Conversation{
			Messages: []llm.Message{{Role: llm.RoleUser, Content: []llm.ContentBlock{{Type: llm.BlockImage, ImageBase64: "AA"}}}},
			Tools:    []llm.ToolDefinition{{Name: "t"}},
		}
		req := &anthropic.Request{MaxTokens: 10, Thinking: &anthropic.Thinking{Type: "enabled", BudgetTokens: 1024}}

		res := validator.Validate(desc, capability.ParamsFrom(req, conv))
		Expect(res.Warnings).To(HaveLen(3))
		Expect(strings.Join(res.Warnings, "\n")).To(And(
			ContainSubstring("thinking"),
			ContainSubstring("tools"),
			ContainSubstring("images"),
		))
	})

	It("asks the caller to drop thinking the model cannot do", func() {
		res := validator.Validate(desc, capability.Params{Thinking: true})
		Expect(res.Adjustments.DropThinking).To(BeTrue())

		res = validator.Validate(&capability.Descriptor{ID: "o3", SupportsThinking: true}, capability.Params{Thinking: true})
		Expect(res.Adjustments.DropThinking).To(BeFalse())
		Expect(res.Valid).To(BeTrue())
	})

	It("warns when the input likely overflows the context window", func() {
		res := validator.Validate(desc, capability.Params{InputText: strings.Repeat("word ", 200)})
		Expect(res.Warnings).To(ContainElement(ContainSubstring("context window")))
	})

	It("skips unknown models and logs it", func() {
		res := validator.Validate(nil, capability.Params{MaxTokens: 1 << 20, Thinking: true})
		Expect(res.Valid).To(BeTrue())
		Expect(res.Skipped).To(BeTrue())
		Expect(res.Warnings).To(BeEmpty())
		Expect(buf.String()).To(ContainSubstring("skipping validation"))
	})

	It("works without a logger or counter", func() {
		res := capability.NewValidator(nil, nil).Validate(desc, capability.Params{InputText: strings.Repeat("x", 10000)})
		Expect(res.Valid).To(BeTrue())
	})

	It("estimates tokens at four runes each", func() {
		Expect(capability.EstimateTokens("")).To(Equal(0))
		Expect(capability.EstimateTokens("abcde")).To(Equal(2))
	})
})
