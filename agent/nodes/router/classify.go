package routernode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

// ClassifyIntent merges whatever parameters the classifier found, even when no
// intent was chosen. The merge clears the waiting flag when it supplies the
// awaited parameter.
func ClassifyIntent(ctx context.Context, st *GraphState, classifier contractx.Classifier, emitter contractx.Emitter) (*GraphState, error) {
	if err := st.check(); err != nil {
		return nil, err
	}

	result, err := classifier.Classify(ctx, st.Interaction, st.Eligible, st.History)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	st.Classification = result
	st.Session.Merge(result.Parameters)

	if result.Intent == nil {
		st.Outcome = contractx.OutcomeNoIntent
		emit(ctx, emitter, st, contractx.StageIntentClassified, contractx.LevelWarn, map[string]any{
			"intent_id": "",
			"outcome":   string(st.Outcome),
		})
		return st, nil
	}

	emit(ctx, emitter, st, contractx.StageIntentClassified, contractx.LevelInfo, map[string]any{
		"intent_id":          result.Intent.ID,
		"redacted_params":    sortedKeys(st.Session.Params()),
		"missing_parameters": result.MissingParameters,
		"confidence":         result.Confidence,
	})
	return st, nil
}

// Clarify ends a turn no intent matched. Nothing is appended to history.
func Clarify(st *GraphState, phrases Phrases) (GraphOutput, error) {
	if err := st.check(); err != nil {
		return GraphOutput{}, err
	}
	return GraphOutput{
		Text:    phrases.Clarification,
		Outcome: contractx.OutcomeNoIntent,
		Reason:  contractx.OutcomeNoIntent.Err(),
	}, nil
}
