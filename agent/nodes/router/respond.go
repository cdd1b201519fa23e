package routernode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
	plannerx "github.com/tanpawarit/Chative-Intent-Router/agent/planner"
)

// Respond renders the post template with the summary, records the reply and
// closes the turn.
func Respond(ctx context.Context, st *GraphState, phrases Phrases, emitter contractx.Emitter) (GraphOutput, error) {
	if err := st.check(); err != nil {
		return GraphOutput{}, err
	}

	text := st.Summary
	if post, ok := st.Plan.Respond(contractx.RespondPost); ok {
		template := post.Message
		if template == "" {
			template = phrases.PostFallback
		}
		rendered, err := plannerx.Substitute(template, st.Summary)
		if err != nil {
			return GraphOutput{}, fmt.Errorf("render post message: %w", err)
		}
		text = rendered
	}

	level := contractx.LevelInfo
	if st.Outcome != contractx.OutcomeCompleted {
		level = contractx.LevelWarn
	}
	emit(ctx, emitter, st, contractx.StageRespond, level, map[string]any{
		"message": text,
		"outcome": string(st.Outcome),
	})
	st.Session.Append(contractx.Message{
		Role:      contractx.RoleAgent,
		Text:      text,
		Timestamp: st.Now().UTC(),
	})

	return GraphOutput{
		Text:       text,
		CallResult: st.CallResult,
		Outcome:    st.Outcome,
		Reason:     st.Outcome.Err(),
	}, nil
}
