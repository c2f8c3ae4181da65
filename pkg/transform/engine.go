// Package transform maps Messages API requests onto the neutral conversation
// model and neutral results back onto Messages API responses.
package transform

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider/anthropic"
)

var (
	// ErrExcludedModel is returned for models the engine must not touch.
	ErrExcludedModel = errors.New("model is excluded from transformation")

	// ErrUnsupportedShape is returned when a request cannot be represented
	// as one coherent neutral conversation.
	ErrUnsupportedShape = errors.New("unsupported conversation shape")

	// ErrUnresolvedToolResult is returned when a tool_result refers to a
	// tool_use id no earlier assistant turn produced.
	ErrUnresolvedToolResult = errors.New("unresolved tool result")
)

// DefaultExcludedMarkers keeps small model classes on the vendor.
var DefaultExcludedMarkers = []string{"haiku"}

// Engine holds the transformation policy. It is safe for concurrent use and
// its markers can be swapped while requests are in flight.
type Engine struct {
	markers atomic.Pointer[[]string]
}

// NewEngine creates an Engine. A nil markers slice selects the defaults; an
// empty one excludes nothing.
func NewEngine(markers []string) *Engine {
	e := &Engine{}
	if markers == nil {
		markers = DefaultExcludedMarkers
	}
	e.SetExcludedMarkers(markers)
	return e
}

// SetExcludedMarkers replaces the exclusion markers.
func (e *Engine) SetExcludedMarkers(markers []string) {
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			lowered = append(lowered, m)
		}
	}
	e.markers.Store(&lowered)
}

// ExcludedMarkers returns the current markers.
func (e *Engine) ExcludedMarkers() []string {
	return append([]string(nil), *e.markers.Load()...)
}

// Excluded reports whether model contains an exclusion marker.
func (e *Engine) Excluded(model string) bool {
	lower := strings.ToLower(model)
	for _, m := range *e.markers.Load() {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Translation is a decoded request and its neutral form.
type Translation struct {
	Request      *anthropic.Request
	Conversation *llm.Conversation
}

// Translate parses a request body and converts it. Excluded models are
// rejected before any conversion runs. A panic during conversion is returned
// as an error.
func (e *Engine) Translate(body []byte) (t *Translation, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, fmt.Errorf("%w: conversion panicked: %v", ErrUnsupportedShape, r)
		}
	}()

	if model := anthropic.PeekModel(body); e.Excluded(model) {
		return nil, fmt.Errorf("%w: %s", ErrExcludedModel, model)
	}

	req, err := anthropic.ParseRequest(body)
	if err != nil {
		return nil, err
	}

	conv, err := ToConversation(req)
	if err != nil {
		return nil, err
	}

	return &Translation{Request: req, Conversation: conv}, nil
}
