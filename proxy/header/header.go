// Package header decides which headers cross each leg of the bridge:
//
//	Client <--> Bridge <--> Vendor API
//
// Each leg negotiates its own connection and content encoding, so those
// headers never cross. Translated calls never reach the vendor; their
// response headers come from the synthesizer and pass through the same
// response filter.
package header

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// RequestIDHeader carries the bridge request id on every intercepted
	// response.
	RequestIDHeader = "X-Bridge-Request-Id"

	// PassthroughHeader, when set to a true value on a client request, skips
	// translation and forwards the call to the vendor unmodified.
	PassthroughHeader = "X-Bridge-Passthrough"
)

type set map[string]struct{}

func (s set) has(k string) bool {
	_, ok := s[http.CanonicalHeaderKey(k)]
	return ok
}

// upstreamDrop lists client request headers kept off the vendor leg.
//   - Connection is hop-by-hop.
//   - Host is rewritten by http.Transport to the upstream host.
//   - Accept-Encoding is left to http.Transport, which then decompresses
//     transparently so bodies can be logged and decoded.
//   - PassthroughHeader is bridge-internal.
var upstreamDrop = set{
	"Connection":      {},
	"Host":            {},
	"Accept-Encoding": {},
	PassthroughHeader: {},
}

// clientDrop lists response headers kept off the client leg. Bodies reaching
// the handler are already decompressed, and fiber recomputes framing and
// re-compresses on its own, so the upstream values would be stale.
var clientDrop = set{
	"Connection":        {},
	"Transfer-Encoding": {},
	"Content-Encoding":  {},
	"Content-Length":    {},
}

// Handler filters headers between the two legs.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// SetUpstreamRequestHeaders copies the client's headers onto req, minus the
// ones that belong to the client leg.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		if k := string(key); !upstreamDrop.has(k) {
			req.Header.Set(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies resp's headers onto the client response.
// Multi-value headers are joined with ", ".
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if !clientDrop.has(k) {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// WantsPassthrough reports whether the client asked to skip translation.
// Any non-empty value other than a false boolean counts.
func (h *Handler) WantsPassthrough(c *fiber.Ctx) bool {
	v := strings.TrimSpace(c.Get(PassthroughHeader))
	if v == "" {
		return false
	}
	on, err := strconv.ParseBool(v)
	return err != nil || on
}
