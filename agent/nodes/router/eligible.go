package routernode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

func EligibleIntents(ctx context.Context, st *GraphState, source contractx.IntentSource, emitter contractx.Emitter) (*GraphState, error) {
	if err := st.check(); err != nil {
		return nil, err
	}

	eligible, err := source.Eligible(ctx, st.Interaction)
	if err != nil {
		return nil, fmt.Errorf("intent source: %w", err)
	}
	st.Eligible = eligible

	ids := make([]string, 0, len(eligible))
	for _, it := range eligible {
		ids = append(ids, it.ID)
	}
	emit(ctx, emitter, st, contractx.StageIntentsEligible, contractx.LevelInfo, map[string]any{
		"eligible": ids,
	})
	return st, nil
}
