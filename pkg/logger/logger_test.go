package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/bridge/pkg/logger"
)

func decodeLine(buf *bytes.Buffer) map[string]any {
	var parsed map[string]any
	Expect(json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed)).To(Succeed())
	return parsed
}

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h failingHandler) WithGroup(string) slog.Handler           { return h }

var _ = Describe("New", func() {
	var buf bytes.Buffer

	BeforeEach(func() {
		buf.Reset()
	})

	It("writes text records by default", func() {
		logger.New(logger.WithWriter(&buf)).Info("request intercepted", "request_id", "req_1")

		Expect(buf.String()).To(ContainSubstring("request intercepted"))
		Expect(buf.String()).To(ContainSubstring("request_id=req_1"))
	})

	It("drops debug records unless debug is enabled", func() {
		logger.New(logger.WithWriter(&buf)).Debug("hidden")
		Expect(buf.String()).To(BeEmpty())

		logger.New(logger.WithWriter(&buf), logger.WithDebug(true)).Debug("visible")
		Expect(buf.String()).To(ContainSubstring("visible"))
	})

	It("writes JSON records", func() {
		logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).Info("dispatched", "tokens", 42)

		parsed := decodeLine(&buf)
		Expect(parsed["msg"]).To(Equal("dispatched"))
		Expect(parsed["tokens"]).To(BeNumerically("==", 42))
	})

	It("writes pretty records without color when asked", func() {
		logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithColor(false)).Info("pretty output")

		Expect(buf.String()).To(ContainSubstring("pretty output"))
		Expect(buf.String()).NotTo(ContainSubstring("\x1b["))
	})

	It("fans out to several writers", func() {
		var other bytes.Buffer
		logger.New(logger.WithWriters(&buf, &other)).Info("multi")

		Expect(buf.String()).To(ContainSubstring("multi"))
		Expect(other.String()).To(ContainSubstring("multi"))
	})

	It("nests grouped attributes", func() {
		l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
		l.WithGroup("request").Info("processed", "method", "POST")

		group, ok := decodeLine(&buf)["request"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(group["method"]).To(Equal("POST"))
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		Expect(func() {
			l.With("k", "v").WithGroup("g").Error("msg")
		}).NotTo(Panic())
	})
})

var _ = Describe("Multi", func() {
	It("delivers records to every logger", func() {
		var a, b bytes.Buffer
		multi := logger.Multi(logger.New(logger.WithWriter(&a)), logger.New(logger.WithWriter(&b)))
		multi.Info("broadcast", "key", "val")

		Expect(a.String()).To(ContainSubstring("broadcast"))
		Expect(b.String()).To(ContainSubstring("broadcast"))
	})

	It("carries With attributes to children", func() {
		var buf bytes.Buffer
		multi := logger.Multi(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)))
		multi.With("component", "dispatch").Info("hello")

		Expect(decodeLine(&buf)["component"]).To(Equal("dispatch"))
	})

	It("keeps delivering when one handler fails", func() {
		var buf bytes.Buffer
		multi := logger.Multi(slog.New(failingHandler{}), logger.New(logger.WithWriter(&buf)))

		err := multi.Handler().Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still here", 0))
		Expect(err).To(MatchError(ContainSubstring("disk full")))
		Expect(buf.String()).To(ContainSubstring("still here"))
	})

	It("skips nil loggers", func() {
		Expect(func() { logger.Multi(nil, logger.Nop()).Info("x") }).NotTo(Panic())
	})
})
