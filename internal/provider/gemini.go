package provider

import (
	"context"
	"encoding/base64"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"

	"github.com/sells-group/exam-engine/internal/model"
	"github.com/sells-group/exam-engine/pkg/gemini"
)

const geminiMaxTokens = 4096

// GeminiAdapter serves both capabilities through generateContent. The
// responseMimeType hint keeps replies fenceless in the common case; the
// normalizer still strips fences when they appear anyway.
type GeminiAdapter struct {
	client gemini.Client
}

// NewGemini creates the gemini adapter over a generateContent client.
func NewGemini(client gemini.Client) *GeminiAdapter {
	return &GeminiAdapter{client: client}
}

// Name implements Adapter.
func (a *GeminiAdapter) Name() string { return "gemini" }

// Invoke implements Adapter. One generateContent call per invocation, no
// retries.
func (a *GeminiAdapter) Invoke(ctx context.Context, task model.TaskRequest, d Descriptor) (model.RawResponse, error) {
	req := gemini.GenerateRequest{
		Model: d.Model,
		GenerationConfig: gemini.GenerationConfig{
			MaxOutputTokens:  geminiMaxTokens,
			ResponseMimeType: "application/json",
		},
	}

	switch t := task.(type) {
	case model.ExtractionTask:
		if d.Capability != CapabilityVision {
			return model.RawResponse{}, eris.Errorf("provider: gemini %s descriptor cannot serve extraction", d.Capability)
		}
		req.Contents = []gemini.Content{{
			Role: "user",
			Parts: []gemini.Part{
				{Text: ExtractionSystem() + "\n\n" + ExtractionPrompt(t.PageNumber)},
				{InlineData: &gemini.InlineData{
					MimeType: mimetype.Detect(t.ImageBytes).String(),
					Data:     base64.StdEncoding.EncodeToString(t.ImageBytes),
				}},
			},
		}}
	case model.EvaluationTask:
		if d.Capability != CapabilityText {
			return model.RawResponse{}, eris.Errorf("provider: gemini %s descriptor cannot serve evaluation", d.Capability)
		}
		req.Contents = []gemini.Content{{
			Role:  "user",
			Parts: []gemini.Part{{Text: EvaluationSystem() + "\n\n" + EvaluationPrompt(t)}},
		}}
	default:
		return model.RawResponse{}, eris.Errorf("provider: gemini adapter got unknown task kind %s", task.Kind())
	}

	resp, err := a.client.GenerateContent(ctx, req)
	if err != nil {
		return model.RawResponse{}, err
	}

	return model.RawResponse{
		Provider: a.Name(),
		Model:    d.Model,
		Body:     resp.Text(),
		Usage: model.TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}
