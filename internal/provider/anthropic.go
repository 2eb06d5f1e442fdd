package provider

import (
	"context"
	"encoding/base64"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/pkg/anthropic"
)

const anthropicMaxTokens = 4096

// AnthropicAdapter serves both capabilities through the Messages API.
type AnthropicAdapter struct {
	client anthropic.Client
}

// NewAnthropic creates the anthropic adapter over a message client.
func NewAnthropic(client anthropic.Client) *AnthropicAdapter {
	return &AnthropicAdapter{client: client}
}

// Name implements Adapter.
func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Invoke implements Adapter. One message call per invocation, no retries.
func (a *AnthropicAdapter) Invoke(ctx context.Context, task model.TaskRequest, d Descriptor) (model.RawResponse, error) {
	req := anthropic.MessageRequest{
		Model:     d.Model,
		MaxTokens: anthropicMaxTokens,
	}

	switch t := task.(type) {
	case model.ExtractionTask:
		if d.Capability != CapabilityVision {
			return model.RawResponse{}, eris.Errorf("provider: anthropic %s descriptor cannot serve extraction", d.Capability)
		}
		req.System = ExtractionSystem()
		req.Messages = []anthropic.Message{{
			Role: "user",
			Text: ExtractionPrompt(t.PageNumber),
			Image: &anthropic.ImageBlock{
				MediaType: mimetype.Detect(t.ImageBytes).String(),
				Data:      base64.StdEncoding.EncodeToString(t.ImageBytes),
			},
		}}
	case model.EvaluationTask:
		if d.Capability != CapabilityText {
			return model.RawResponse{}, eris.Errorf("provider: anthropic %s descriptor cannot serve evaluation", d.Capability)
		}
		req.System = EvaluationSystem()
		req.Messages = []anthropic.Message{{Role: "user", Text: EvaluationPrompt(t)}}
	default:
		return model.RawResponse{}, eris.Errorf("provider: anthropic adapter got unknown task kind %s", task.Kind())
	}

	resp, err := a.client.CreateMessage(ctx, req)
	if err != nil {
		return model.RawResponse{}, err
	}

	return model.RawResponse{
		Provider: a.Name(),
		Model:    resp.Model,
		Body:     resp.Text(),
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}
