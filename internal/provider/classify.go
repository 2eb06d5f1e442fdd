package provider

import (
	"context"
	"errors"
	"net"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/pkg/gemini"
)

// AsAdapterError coerces any invocation error into the typed adapter
// failure the controller records. Classification order matters: a context
// deadline always means timeout even when a transport error wraps it.
func AsAdapterError(err error) *model.AdapterError {
	if err == nil {
		return nil
	}

	var ae *model.AdapterError
	if errors.As(err, &ae) {
		return ae
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &model.AdapterError{Kind: model.FailureTimeout, Message: err.Error()}
	}

	if code, ok := statusCode(err); ok {
		return &model.AdapterError{Kind: kindForStatus(code), Message: err.Error()}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &model.AdapterError{Kind: model.FailureTimeout, Message: err.Error()}
	}

	return &model.AdapterError{Kind: model.FailureNetwork, Message: err.Error()}
}

// statusCode digs the HTTP status out of the per-vendor error types.
func statusCode(err error) (int, bool) {
	var anthropicErr *sdk.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode, true
	}

	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		return openaiErr.HTTPStatusCode, true
	}
	var openaiReqErr *openai.RequestError
	if errors.As(err, &openaiReqErr) {
		return openaiReqErr.HTTPStatusCode, true
	}

	var geminiErr *gemini.APIError
	if errors.As(err, &geminiErr) {
		return geminiErr.StatusCode, true
	}

	return 0, false
}

func kindForStatus(code int) model.FailureKind {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.FailureAuth
	case http.StatusTooManyRequests:
		return model.FailureRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return model.FailureTimeout
	default:
		return model.FailureNetwork
	}
}
