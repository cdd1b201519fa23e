package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

var ErrModelInvoke = errors.New("classifier model invoke failed")

// LLM classifies through an eino graph: chat template, chat model, JSON parser.
type LLM struct {
	runner   compose.Runnable[map[string]any, llmOutput]
	maxTurns int
}

var _ contractx.Classifier = (*LLM)(nil)

func NewLLM(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, historyTurns int) (*LLM, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: system prompt is required", contractx.ErrValidation)
	}
	runner, err := compileClassifierGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, err
	}
	return &LLM{runner: runner, maxTurns: historyTurns}, nil
}

func (c *LLM) Classify(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
	if len(eligible) == 0 {
		return contractx.Classification{}, nil
	}

	input, err := buildInput(in, eligible, history, c.maxTurns)
	if err != nil {
		return contractx.Classification{}, err
	}

	out, err := c.runner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: %w", ErrModelInvoke, err)
	}
	return resolve(out, eligible), nil
}
