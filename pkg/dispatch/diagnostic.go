package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"

	"github.com/papercomputeco/bridge/pkg/llm"
	"github.com/papercomputeco/bridge/pkg/llm/provider"
	"github.com/papercomputeco/bridge/pkg/transform"
)

// Diagnostic kinds.
const (
	KindAPI      = "api"
	KindTimeout  = "timeout"
	KindCanceled = "canceled"
	KindNetwork  = "network"
	KindConfig   = "config"
	KindPanic    = "panic"
	KindUnknown  = "unknown"
)

// DiagnosticError is everything known about a failed client call. It is
// written to the diagnostic log and never sent to the caller.
type DiagnosticError struct {
	Kind       string
	Message    string
	Cause      string
	Code       string
	HTTPStatus int
	Provider   string
	Stack      string
}

func (d *DiagnosticError) Error() string {
	if d.HTTPStatus != 0 {
		return fmt.Sprintf("%s error (status %d): %s", d.Kind, d.HTTPStatus, d.Message)
	}
	return fmt.Sprintf("%s error: %s", d.Kind, d.Message)
}

// Diagnose maps any error from a client call onto a DiagnosticError. The
// stack is captured at the call site.
func Diagnose(err error) *DiagnosticError {
	d := &DiagnosticError{
		Kind:    KindUnknown,
		Message: err.Error(),
		Stack:   string(debug.Stack()),
	}
	if cause := errors.Unwrap(err); cause != nil {
		d.Cause = cause.Error()
	}

	var (
		existing *DiagnosticError
		apiErr   *llm.APIError
		netErr   net.Error
	)
	switch {
	case errors.As(err, &existing):
		return existing
	case errors.As(err, &apiErr):
		d.Kind = KindAPI
		d.HTTPStatus = apiErr.StatusCode
		d.Code = apiErr.Code
		if d.Code == "" {
			d.Code = apiErr.Type
		}
		d.Provider = apiErr.Provider
	case errors.Is(err, context.DeadlineExceeded):
		d.Kind = KindTimeout
	case errors.Is(err, context.Canceled):
		d.Kind = KindCanceled
	case errors.Is(err, provider.ErrMissingAPIKey):
		d.Kind = KindConfig
	case errors.As(err, &netErr):
		d.Kind = KindNetwork
		if netErr.Timeout() {
			d.Kind = KindTimeout
		}
	}

	return d
}

// VendorErrorType chooses the vendor error type for a diagnostic.
func (d *DiagnosticError) VendorErrorType() string {
	switch d.HTTPStatus {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return transform.ErrorTypeInvalidRequest
	case http.StatusUnauthorized:
		return transform.ErrorTypeAuthentication
	case http.StatusForbidden:
		return transform.ErrorTypePermission
	case http.StatusNotFound:
		return transform.ErrorTypeNotFound
	case http.StatusTooManyRequests:
		return transform.ErrorTypeRateLimit
	case http.StatusServiceUnavailable, 529:
		return transform.ErrorTypeOverloaded
	}
	if d.Kind == KindConfig {
		return transform.ErrorTypeAuthentication
	}
	return transform.ErrorTypeAPI
}

// VendorMessage is the caller-facing message. It names the failure class
// only.
func (d *DiagnosticError) VendorMessage() string {
	switch d.Kind {
	case KindAPI:
		return fmt.Sprintf("target provider returned status %d", d.HTTPStatus)
	case KindTimeout:
		return "target provider timed out"
	case KindCanceled:
		return "request canceled"
	case KindConfig:
		return "target provider is not configured"
	default:
		return "target provider request failed"
	}
}
