package proxy

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bridge/pkg/sse"
)

var _ = Describe("SSE Streaming Proxy", func() {
	var (
		p        *Proxy
		h        *harness
		upstream *httptest.Server
	)

	BeforeEach(func() {
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			flusher, ok := w.(http.Flusher)
			Expect(ok).To(BeTrue())

			for _, event := range strings.SplitAfter(anthropicSSE, "\n\n") {
				if event == "" {
					continue
				}
				fmt.Fprint(w, event)
				flusher.Flush()
			}
		}))
		p, h = newTestProxy(upstream.URL)
	})

	AfterEach(func() {
		p.Close()
		h.drain()
		upstream.Close()
	})

	Context("when the model is passed through", func() {
		It("streams the vendor events to the client verbatim", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(messagesBody("claude-3-5-haiku-latest", true)))
			resp, body := serve(p, req)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))
			Expect(body).To(Equal(anthropicSSE))
		})

		It("logs the pair with the decoded stream", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(messagesBody("claude-3-5-haiku-latest", true)))
			serve(p, req)

			h.drain()
			Expect(h.driver.Raw()).To(HaveLen(1))
			pair := h.driver.Raw()[0]
			Expect(pair.Response.Body).To(Equal(anthropicSSE))
			Expect(pair.DecodedSSE.Message.GetText()).To(Equal("Hello world"))
			Expect(h.driver.Transformed()).To(BeEmpty())
		})
	})

	Context("when the model is translated", func() {
		It("preserves SSE event boundaries with \\n\\n delimiters", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(messagesBody("claude-sonnet-4", true)))
			resp, body := serve(p, req)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			events, err := sse.NewReader(strings.NewReader(body)).All()
			Expect(err).NotTo(HaveOccurred())

			var types []string
			for _, ev := range events {
				types = append(types, ev.Type)
			}
			Expect(types).To(Equal([]string{
				"message_start",
				"content_block_start",
				"content_block_delta",
				"content_block_stop",
				"message_delta",
				"message_stop",
			}))
			Expect(strings.Count(body, "\n\n")).To(Equal(len(events)))
		})
	})
})
