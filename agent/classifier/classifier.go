// Package classifier picks at most one eligible intent for an utterance and
// extracts its parameters.
package classifier

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

const (
	BackendHeuristic = "heuristic"
	BackendLLM       = "llm"
	BackendOpenAI    = "openai"
)

// Config is read with the CLASSIFIER prefix.
type Config struct {
	Backend string `split_words:"true" default:"heuristic"`
	// HistoryTurns caps how many past messages are shown to model backends.
	HistoryTurns int `split_words:"true" default:"6"`
}

// llmOutput is the JSON object both model backends must produce.
type llmOutput struct {
	IntentID          string         `json:"intent_id"`
	Parameters        map[string]any `json:"parameters,omitempty"`
	MissingParameters []string       `json:"missing_parameters,omitempty"`
	Confidence        float64        `json:"confidence"`
}

type promptTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type promptIntent struct {
	ID                 string   `json:"id"`
	Description        string   `json:"description"`
	RequiredParameters []string `json:"required_parameters"`
}

type promptInput struct {
	Message         string         `json:"message"`
	History         []promptTurn   `json:"history"`
	EligibleIntents []promptIntent `json:"eligible_intents"`
}

func buildInput(in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message, maxTurns int) (string, error) {
	if maxTurns > 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	payload := promptInput{
		Message:         in.Text,
		History:         make([]promptTurn, 0, len(history)),
		EligibleIntents: make([]promptIntent, 0, len(eligible)),
	}
	for _, m := range history {
		payload.History = append(payload.History, promptTurn{Role: string(m.Role), Text: m.Text})
	}
	for _, it := range eligible {
		required := it.RequiredParameters
		if required == nil {
			required = []string{}
		}
		payload.EligibleIntents = append(payload.EligibleIntents, promptIntent{
			ID:                 it.ID,
			Description:        it.Description,
			RequiredParameters: required,
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal classifier input: %v", contractx.ErrValidation, err)
	}
	return string(raw), nil
}

// resolve maps a model reply back onto the eligible intents. An id outside the
// eligible list means no intent.
func resolve(out llmOutput, eligible []contractx.Intent) contractx.Classification {
	id := strings.TrimSpace(out.IntentID)
	if id == "" {
		return contractx.Classification{}
	}

	var chosen *contractx.Intent
	for i := range eligible {
		if eligible[i].ID == id {
			it := eligible[i]
			chosen = &it
			break
		}
	}
	if chosen == nil {
		return contractx.Classification{}
	}

	params := make(map[string]string, len(out.Parameters))
	for k, v := range out.Parameters {
		if s, ok := stringValue(v); ok && strings.TrimSpace(k) != "" {
			params[k] = s
		}
	}

	return contractx.Classification{
		Intent:            chosen,
		Parameters:        params,
		MissingParameters: missingFor(*chosen, params),
		Confidence:        clamp(out.Confidence),
	}
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprint(t), true
	}
}

func missingFor(intent contractx.Intent, params map[string]string) []string {
	var missing []string
	for _, p := range intent.RequiredParameters {
		if params[p] == "" {
			missing = append(missing, p)
		}
	}
	return missing
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
