// Package proxy intercepts Messages API calls and answers them from a
// different model provider, logging every exchange.
//
// Interceptor is the core: an http.RoundTripper that can be installed into
// any *http.Client. Proxy fronts an Interceptor with a fiber server so that
// clients outside the process can point their base URL at the bridge.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/papercomputeco/bridge/pkg/transform"
	"github.com/papercomputeco/bridge/proxy/header"
)

const (
	defaultTimeout = 5 * time.Minute

	// StatusPath serves the bridge's own status document.
	StatusPath = "/_bridge/status"
)

// Proxy is a reverse proxy that sends every call through an Interceptor.
type Proxy struct {
	config        Config
	interceptor   *Interceptor
	logger        *slog.Logger
	client        *http.Client
	direct        *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy.
func New(config Config, interceptor *Interceptor, logger *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if interceptor == nil {
		return nil, errors.New("interceptor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// Add compression middleware to handle responses
	app.Use(compress.New())

	p := &Proxy{
		config:        config,
		interceptor:   interceptor,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		client: &http.Client{
			Transport: interceptor,
			Timeout:   config.Timeout,
		},
		direct: &http.Client{
			Transport: interceptor.Base(),
			Timeout:   config.Timeout,
		},
	}

	app.Get(StatusPath, adaptor.HTTPHandlerFunc(p.handleStatus))

	// Register transparent proxy route - forwards any path through the interceptor
	app.All("/*", p.handleProxy)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting bridge server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting bridge server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listener(listener)
}

// Close stops accepting calls and waits for in-flight handlers. The
// interceptor's worker pool is owned by the caller.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

// Status is the document served at StatusPath.
type Status struct {
	Provider        string   `json:"provider"`
	Model           string   `json:"model,omitempty"`
	Upstream        string   `json:"upstream"`
	Pending         int      `json:"pending"`
	ExcludedMarkers []string `json:"excluded_markers"`
}

func (p *Proxy) handleStatus(w http.ResponseWriter, _ *http.Request) {
	target := p.interceptor.pipeline.Target()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Status{
		Provider:        target.Provider,
		Model:           target.Model,
		Upstream:        p.config.UpstreamURL,
		Pending:         p.interceptor.Tracker().Len(),
		ExcludedMarkers: p.interceptor.pipeline.Engine().ExcludedMarkers(),
	})
}

// handleProxy rebuilds the client call against the upstream URL and runs it
// through the interceptor, which either answers it or forwards it.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	upstreamURL := strings.TrimRight(p.config.UpstreamURL, "/") + c.OriginalURL()

	body := c.Body()
	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(bytes.Clone(body))
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but a streamed body is copied
	// to the client from a separate goroutine and needs the upstream
	// connection to remain open.
	httpReq, err := http.NewRequestWithContext(context.Background(), c.Method(), upstreamURL, reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(transform.ErrorResponse(transform.ErrorTypeAPI, "internal error"))
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	client := p.client
	if p.headerHandler.WantsPassthrough(c) {
		client = p.direct
	}

	p.logger.Debug("forwarding request",
		"method", c.Method(),
		"url", upstreamURL,
	)

	httpResp, err := client.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(transform.ErrorResponse(transform.ErrorTypeAPI, "upstream request failed"))
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Status(httpResp.StatusCode)

	if !strings.HasPrefix(httpResp.Header.Get("Content-Type"), "text/event-stream") {
		defer httpResp.Body.Close()
		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			p.logger.Error("failed to read upstream response", "error", err)
			return c.Status(fiber.StatusBadGateway).JSON(transform.ErrorResponse(transform.ErrorTypeAPI, "failed to read upstream response"))
		}
		return c.Send(respBody)
	}

	// Use io.Pipe + SetBodyStream so each chunk reaches the client as soon as
	// it is read: pw.Write blocks until fasthttp's chunked writer consumes it.
	pr, pw := io.Pipe()
	go func() {
		defer httpResp.Body.Close()
		_, err := io.Copy(pw, httpResp.Body)
		pw.CloseWithError(err)
	}()

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}
