package provider

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/exam-engine/internal/model"
)

const openaiMaxTokens = 4096

// OpenAIAdapter serves both capabilities through chat completions with the
// JSON-object response format; vision requests carry the page as a data URL.
type OpenAIAdapter struct {
	client *openai.Client
}

// NewOpenAI creates the openai adapter over a chat-completion client.
func NewOpenAI(client *openai.Client) *OpenAIAdapter {
	return &OpenAIAdapter{client: client}
}

// Name implements Adapter.
func (a *OpenAIAdapter) Name() string { return "openai" }

// Invoke implements Adapter. One completion call per invocation, no retries.
func (a *OpenAIAdapter) Invoke(ctx context.Context, task model.TaskRequest, d Descriptor) (model.RawResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:          d.Model,
		MaxTokens:      openaiMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	switch t := task.(type) {
	case model.ExtractionTask:
		if d.Capability != CapabilityVision {
			return model.RawResponse{}, eris.Errorf("provider: openai %s descriptor cannot serve extraction", d.Capability)
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s",
			mimetype.Detect(t.ImageBytes).String(),
			base64.StdEncoding.EncodeToString(t.ImageBytes),
		)
		req.Messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: ExtractionSystem()},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: ExtractionPrompt(t.PageNumber)},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailHigh,
					}},
				},
			},
		}
	case model.EvaluationTask:
		if d.Capability != CapabilityText {
			return model.RawResponse{}, eris.Errorf("provider: openai %s descriptor cannot serve evaluation", d.Capability)
		}
		req.Messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: EvaluationSystem()},
			{Role: openai.ChatMessageRoleUser, Content: EvaluationPrompt(t)},
		}
	default:
		return model.RawResponse{}, eris.Errorf("provider: openai adapter got unknown task kind %s", task.Kind())
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return model.RawResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return model.RawResponse{}, eris.New("provider: openai returned no choices")
	}

	return model.RawResponse{
		Provider: a.Name(),
		Model:    resp.Model,
		Body:     resp.Choices[0].Message.Content,
		Usage: model.TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}
