package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/bridge/pkg/eventstream"
	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/bridge/pkg/normalize"
	"github.com/papercomputeco/bridge/pkg/session"
	"github.com/papercomputeco/bridge/pkg/storage"
	"github.com/papercomputeco/bridge/pkg/stream"
	"github.com/papercomputeco/bridge/proxy/header"
	"github.com/papercomputeco/bridge/proxy/worker"
)

// InterceptorConfig holds the collaborators of an Interceptor. Pipeline and
// Pool are required.
type InterceptorConfig struct {
	// Base carries every call that is not translated. Defaults to
	// http.DefaultTransport, or to the replaced transport on Install.
	Base http.RoundTripper

	// Hosts, when set, limits interception to these host names.
	Hosts []string

	Pipeline *Pipeline
	Pool     *worker.Pool
	Tracker  *session.Tracker

	// Trace logs full request and response bodies at debug level.
	Trace bool

	Logger *slog.Logger
}

// Interceptor is an http.RoundTripper that answers Messages API calls from
// the target provider and forwards everything else to Base. It never fails
// a call it could have forwarded: any translation failure, including a
// panic, falls back to passthrough.
type Interceptor struct {
	hosts    []string
	pipeline *Pipeline
	pool     *worker.Pool
	tracker  *session.Tracker
	trace    bool
	logger   *slog.Logger

	// mu guards base and installation
	mu           sync.Mutex
	base         http.RoundTripper
	installation *Installation
}

// NewInterceptor creates an Interceptor.
func NewInterceptor(c InterceptorConfig) (*Interceptor, error) {
	if c.Pipeline == nil {
		return nil, errors.New("interceptor requires a pipeline")
	}
	if c.Pool == nil {
		return nil, errors.New("interceptor requires a worker pool")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Tracker == nil {
		c.Tracker = session.NewTracker(c.Logger)
	}

	return &Interceptor{
		hosts:    c.Hosts,
		pipeline: c.Pipeline,
		pool:     c.Pool,
		tracker:  c.Tracker,
		trace:    c.Trace,
		logger:   c.Logger,
		base:     c.Base,
	}, nil
}

// Tracker returns the pending request tracker.
func (i *Interceptor) Tracker() *session.Tracker {
	return i.tracker
}

// Base returns the transport untranslated calls go to.
func (i *Interceptor) Base() http.RoundTripper {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.base == nil {
		return http.DefaultTransport
	}
	return i.base
}

// Matches reports whether req is a Messages API call this interceptor
// translates: a POST to a path ending in /v1/messages on an allowed host.
func (i *Interceptor) Matches(req *http.Request) bool {
	if req == nil || req.URL == nil || req.Method != http.MethodPost {
		return false
	}
	if !anthropic.IsMessagesPath(req.URL.Path) {
		return false
	}
	if len(i.hosts) == 0 {
		return true
	}

	host := req.URL.Hostname()
	for _, h := range i.hosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

// RoundTrip implements http.RoundTripper.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if !i.Matches(req) {
		return i.Base().RoundTrip(req)
	}

	body, err := drainBody(req)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	nreq := normalize.Normalize(req.URL.String(), req.Method, req.Header, body)
	id := i.tracker.Start(nreq)
	log := i.logger.With("request_id", id)

	if resp, ok := i.translate(req, nreq, id, body, log); ok {
		return resp, nil
	}
	return i.passthrough(req, nreq, id, body, log)
}

// translate runs the pipeline. ok is false when the call should pass
// through instead.
func (i *Interceptor) translate(req *http.Request, nreq *normalize.Request, id string, body []byte, log *slog.Logger) (resp *http.Response, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("translation panicked, passing through",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			resp, ok = nil, false
		}
	}()

	if !nreq.Transformable() {
		log.Debug("request body is not JSON, passing through")
		return nil, false
	}

	started := time.Now().UTC()
	out, err := i.pipeline.Run(req.Context(), id, body)
	if err != nil {
		log.Debug("request not translated, passing through", "reason", err)
		return nil, false
	}

	if i.trace {
		log.Debug("translated exchange", "request", string(body), "response", string(out.Body))
	}

	i.recordTranslated(req, nreq, id, out, started)
	return out.response(req, id), true
}

func (i *Interceptor) recordTranslated(req *http.Request, nreq *normalize.Request, id string, out *Outcome, started time.Time) {
	target := i.pipeline.Target()
	completed := time.Now().UTC()

	entry := &storage.TransformedEntry{
		Timestamp:           started,
		RequestID:           id,
		RawRequest:          nreq.Body,
		NeutralConversation: out.Translation.Conversation,
		ProviderConfig:      target,
		Validation:          &out.Validation,
		Result:              out.Result,
		RawResponse:         string(out.Body),
	}
	if out.Streaming {
		entry.DecodedSSE = decodeSSE(out.Body)
	}

	meta := eventstream.TurnRequestMeta{
		RequestID:   id,
		Path:        req.URL.Path,
		StartedAt:   started,
		CompletedAt: completed,
		Streaming:   out.Streaming,
		HTTPStatus:  out.Status,
		Warnings:    out.Validation.Warnings,
	}
	turn := llm.ConversationTurn{
		Provider:     target.Provider,
		Model:        target.Model,
		Conversation: out.Translation.Conversation,
		Result:       out.Result,
	}

	i.enqueue(id, worker.Job{
		Raw: &storage.RawPair{
			RequestID: id,
			Request:   nreq,
			Response: &storage.Response{
				Status:  out.Status,
				Headers: normalize.RedactHeaders(out.Header),
				Body:    string(out.Body),
			},
		},
		Transformed: entry,
		Event:       eventstream.NewTurnEvent(turn, meta),
	})
}

// passthrough forwards the call unmodified. The response body is captured
// as the caller reads it and logged once it is drained or closed.
func (i *Interceptor) passthrough(req *http.Request, nreq *normalize.Request, id string, body []byte, log *slog.Logger) (*http.Response, error) {
	fwd := req.Clone(req.Context())
	setBody(fwd, body)

	resp, err := i.Base().RoundTrip(fwd)
	if err != nil {
		// The entry stays pending and is reported as an orphan at shutdown.
		log.Debug("passthrough transport failed", "error", err)
		return nil, err
	}

	resp.Header.Set(header.RequestIDHeader, id)
	status := resp.StatusCode
	headers := normalize.RedactHeaders(resp.Header)
	isSSE := strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream")

	resp.Body = newCaptureBody(resp.Body, func(captured []byte) {
		pair := &storage.RawPair{
			RequestID: id,
			Request:   nreq,
			Response: &storage.Response{
				Status:  status,
				Headers: headers,
				Body:    string(captured),
			},
		}
		if isSSE {
			pair.DecodedSSE = decodeSSE(captured)
		}
		if i.trace {
			log.Debug("passthrough exchange", "request", string(body), "response", string(captured))
		}
		i.enqueue(id, worker.Job{Raw: pair})
	})
	return resp, nil
}

// enqueue hands job to the pool; the pending entry is retired once the
// records are written. A dropped job leaves the entry pending.
func (i *Interceptor) enqueue(id string, job worker.Job) {
	job.Done = func() {
		i.tracker.Finish(id)
	}
	if !i.pool.Enqueue(job) {
		i.logger.Warn("log job dropped, request stays pending", "request_id", id)
	}
}

func (o *Outcome) response(req *http.Request, id string) *http.Response {
	h := o.Header.Clone()
	h.Set(header.RequestIDHeader, id)

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", o.Status, http.StatusText(o.Status)),
		StatusCode:    o.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(o.Body)),
		ContentLength: int64(len(o.Body)),
		Request:       req,
	}
}

// decodeSSE reconstructs a logged event stream. Undecodable streams log
// nothing.
func decodeSSE(b []byte) *llm.AskResult {
	res, _, err := stream.Decode(bytes.NewReader(b))
	if err != nil {
		return nil
	}
	return res
}

// drainBody reads and closes req.Body.
func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	return io.ReadAll(req.Body)
}

func setBody(req *http.Request, body []byte) {
	if body == nil {
		req.Body = http.NoBody
		req.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		req.ContentLength = 0
		return
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.ContentLength = int64(len(body))
}
