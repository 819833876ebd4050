package ai

import (
	"context"
	"errors"
	"net"

	"github.com/openai/openai-go/v3"
)

// ErrTransient marks backend failures worth retrying: timeouts, rate limits
// and server-side errors. Wrap with fmt.Errorf("%w: ...") or check with
// IsRetryable.
var ErrTransient = errors.New("transient ai backend error")

// IsRetryable reports whether err is a transient backend failure. Context
// cancellation is never retryable; the caller is shutting down.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 408 ||
			apiErr.StatusCode == 429 ||
			apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsPermanent reports an API rejection that will not change on retry:
// authentication, authorization or malformed-request responses.
func IsPermanent(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 400 || apiErr.StatusCode == 401 ||
			apiErr.StatusCode == 403 || apiErr.StatusCode == 404
	}
	return false
}
