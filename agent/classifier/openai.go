package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

// OpenAI classifies with a single chat completion in JSON mode.
type OpenAI struct {
	client       *openaisdk.Client
	model        string
	systemPrompt string
	maxTurns     int
}

var _ contractx.Classifier = (*OpenAI)(nil)

func NewOpenAI(client *openaisdk.Client, model, systemPrompt string, historyTurns int) (*OpenAI, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: system prompt is required", contractx.ErrValidation)
	}
	return &OpenAI{
		client:       client,
		model:        strings.TrimSpace(model),
		systemPrompt: systemPrompt,
		maxTurns:     historyTurns,
	}, nil
}

func (c *OpenAI) Classify(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
	if len(eligible) == 0 {
		return contractx.Classification{}, nil
	}

	input, err := buildInput(in, eligible, history, c.maxTurns)
	if err != nil {
		return contractx.Classification{}, err
	}

	resp, err := c.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(c.systemPrompt),
			openaisdk.UserMessage(input),
		},
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openaisdk.Float(0),
	})
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: %w", ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return contractx.Classification{}, fmt.Errorf("%w: empty choices", ErrModelInvoke)
	}

	var out llmOutput
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: decode reply: %w", ErrModelInvoke, err)
	}
	return resolve(out, eligible), nil
}
