package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"medgraph/internal/util"

	"go.temporal.io/sdk/temporal"
)

type ErrorType string

const (
	ErrorQuota       ErrorType = "quota"
	ErrorRate        ErrorType = "rate_limited"
	ErrorTimeout     ErrorType = "timeout"
	ErrorUnavailable ErrorType = "unavailable"
	ErrorBadResponse ErrorType = "bad_response"
	ErrorContext     ErrorType = "context"
	ErrorPermanent   ErrorType = "permanent"
)

var sentinels = []struct {
	err error
	typ ErrorType
}{
	{util.ErrQuotaExhausted, ErrorQuota},
	{util.ErrRateLimited, ErrorRate},
	{util.ErrTimeout, ErrorTimeout},
	{util.ErrProviderUnavailable, ErrorUnavailable},
	{util.ErrBadResponse, ErrorBadResponse},
	{util.ErrContextTooLong, ErrorContext},
}

// ClassifyError maps a provider failure to an ErrorType. Errors that crossed
// an activity boundary are recognised by their application error type, then
// by message.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.typ
		}
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		for _, s := range sentinels {
			if appErr.Type() == string(s.typ) {
				return s.typ
			}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTimeout
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate limit"), strings.Contains(e, "rate_limit"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context too long"), strings.Contains(e, "context length"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "deadline exceeded"):
		return ErrorTimeout
	case strings.Contains(e, "unavailable"), strings.Contains(e, "connection refused"), strings.Contains(e, "temporarily"):
		return ErrorUnavailable
	case strings.Contains(e, "bad response"), strings.Contains(e, "decode"), strings.Contains(e, "empty"):
		return ErrorBadResponse
	default:
		return ErrorPermanent
	}
}

// AsActivityError tags err with its ErrorType so the workflow can classify it
// after serialisation.
func AsActivityError(err error) error {
	if err == nil {
		return nil
	}
	return temporal.NewApplicationErrorWithCause(err.Error(), string(ClassifyError(err)), err)
}

// statusError converts an HTTP failure status into a classified error.
func statusError(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s status %d: %s: %w", provider, status, msg, util.ErrRateLimited)
	case status == http.StatusPaymentRequired:
		return fmt.Errorf("%s status %d: %s: %w", provider, status, msg, util.ErrQuotaExhausted)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%s status %d: %s: %w", provider, status, msg, util.ErrTimeout)
	case status >= 500:
		return fmt.Errorf("%s status %d: %s: %w", provider, status, msg, util.ErrProviderUnavailable)
	default:
		return fmt.Errorf("%s status %d: %s", provider, status, msg)
	}
}

// transportError classifies a failed round trip.
func transportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s request: %v: %w", provider, err, util.ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s request: %v: %w", provider, err, util.ErrTimeout)
	}
	return fmt.Errorf("%s request: %v: %w", provider, err, util.ErrProviderUnavailable)
}
