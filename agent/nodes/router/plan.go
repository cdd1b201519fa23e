package routernode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

func CreatePlan(ctx context.Context, st *GraphState, planner contractx.Planner, emitter contractx.Emitter) (*GraphState, error) {
	if err := st.check(); err != nil {
		return nil, err
	}
	if st.Classification.Intent == nil {
		return nil, fmt.Errorf("%w: no intent to plan for", contractx.ErrValidation)
	}

	intent := *st.Classification.Intent
	st.Plan = planner.Plan(intent, st.Interaction, st.Session.Params())
	if call, ok := st.Plan.Call(); ok {
		st.Call = &call
	}

	emit(ctx, emitter, st, contractx.StagePlanCreated, contractx.LevelInfo, map[string]any{
		"intent_id": intent.ID,
		"steps":     st.Plan.StepKinds(),
	})
	return st, nil
}

// AskUser ends the turn with the plan's question. The session waits for the
// asked parameter until a merge supplies it.
func AskUser(ctx context.Context, st *GraphState, phrases Phrases, emitter contractx.Emitter) (GraphOutput, error) {
	if err := st.check(); err != nil {
		return GraphOutput{}, err
	}
	ask, ok := st.Plan.AskUser()
	if !ok {
		return GraphOutput{}, fmt.Errorf("%w: plan has no ask_user step", contractx.ErrValidation)
	}

	prompt := ask.Prompt
	if prompt == "" {
		prompt = phrases.AskDefault
	}
	st.Session.SetWaiting(ask.Param)
	st.Outcome = contractx.OutcomeAskUser

	emit(ctx, emitter, st, contractx.StageRespond, contractx.LevelInfo, map[string]any{
		"message":           prompt,
		"waiting_for_param": ask.Param,
		"outcome":           string(st.Outcome),
	})
	st.Session.Append(contractx.Message{
		Role:      contractx.RoleAgent,
		Text:      prompt,
		Metadata:  map[string]string{"type": "ask_user", "param": ask.Param},
		Timestamp: st.Now().UTC(),
	})

	return GraphOutput{Text: prompt, Outcome: st.Outcome}, nil
}

// CommunicatePlan reports the pre message. It is telemetry only and never
// reaches history.
func CommunicatePlan(ctx context.Context, st *GraphState, emitter contractx.Emitter) (*GraphState, error) {
	if err := st.check(); err != nil {
		return nil, err
	}
	if pre, ok := st.Plan.Respond(contractx.RespondPre); ok && pre.Message != "" {
		emit(ctx, emitter, st, contractx.StagePlanCommunicated, contractx.LevelInfo, map[string]any{
			"message": pre.Message,
		})
	}
	return st, nil
}
