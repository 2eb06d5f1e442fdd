package provider

import (
	"context"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/pkg/gemini"
)

func TestAsAdapterError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.FailureKind
	}{
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: model.FailureTimeout,
		},
		{
			name: "cancelled",
			err:  eris.Wrap(context.Canceled, "send request"),
			want: model.FailureTimeout,
		},
		{
			name: "gemini 401",
			err:  &gemini.APIError{StatusCode: http.StatusUnauthorized, Body: "bad key"},
			want: model.FailureAuth,
		},
		{
			name: "gemini 429 wrapped",
			err:  eris.Wrap(&gemini.APIError{StatusCode: http.StatusTooManyRequests}, "invoke"),
			want: model.FailureRateLimited,
		},
		{
			name: "openai api error 403",
			err:  &openai.APIError{HTTPStatusCode: http.StatusForbidden},
			want: model.FailureAuth,
		},
		{
			name: "openai request error 500",
			err:  &openai.RequestError{HTTPStatusCode: http.StatusInternalServerError},
			want: model.FailureNetwork,
		},
		{
			name: "gateway timeout",
			err:  &gemini.APIError{StatusCode: http.StatusGatewayTimeout},
			want: model.FailureTimeout,
		},
		{
			name: "plain error",
			err:  eris.New("connection refused"),
			want: model.FailureNetwork,
		},
		{
			name: "already typed",
			err:  &model.AdapterError{Kind: model.FailureParse, Message: "bad shape"},
			want: model.FailureParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := AsAdapterError(tt.err)
			require.NotNil(t, ae)
			assert.Equal(t, tt.want, ae.Kind)
			assert.NotEmpty(t, ae.Message)
		})
	}
}

func TestAsAdapterError_Nil(t *testing.T) {
	assert.Nil(t, AsAdapterError(nil))
}
