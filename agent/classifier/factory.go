package classifier

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
	llmx "github.com/tanpawarit/Chative-Intent-Router/agent/llm"
	openrouterx "github.com/tanpawarit/Chative-Intent-Router/pkg/openrouter"
)

// New builds the configured classifier backend. Model backends need a valid
// llm.Config; the heuristic backend ignores it.
func New(ctx context.Context, cfg Config, llmCfg llmx.Config, systemPrompt string) (contractx.Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendHeuristic:
		return NewHeuristic(), nil
	case BackendLLM:
		if err := llmCfg.Validate(); err != nil {
			return nil, err
		}
		orCfg := llmCfg.ForClassifier()
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, err
		}
		return NewLLM(ctx, chatModel, systemPrompt, cfg.HistoryTurns)
	case BackendOpenAI:
		if err := llmCfg.Validate(); err != nil {
			return nil, err
		}
		orCfg := llmCfg.ForClassifier()
		return NewOpenAI(openrouterx.NewClient(orCfg), orCfg.Model, systemPrompt, cfg.HistoryTurns)
	default:
		return nil, fmt.Errorf("%w: unknown classifier backend %q", contractx.ErrValidation, cfg.Backend)
	}
}
