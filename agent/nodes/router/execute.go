package routernode

import (
	"context"
	"fmt"

	actionx "github.com/tanpawarit/Chative-Intent-Router/agent/action"
	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
	telemetryx "github.com/tanpawarit/Chative-Intent-Router/agent/telemetry"
)

// CheckPolicy validates the planned call. A plan without a call passes
// through untouched.
func CheckPolicy(ctx context.Context, st *GraphState, gate contractx.PolicyGate, phrases Phrases, emitter contractx.Emitter) (*GraphState, error) {
	if err := st.check(); err != nil {
		return nil, err
	}
	if st.Call == nil {
		st.Outcome = contractx.OutcomeCompleted
		return st, nil
	}

	decision, err := gate.Validate(ctx, *st.Call, st.Interaction, st.History)
	if err != nil {
		return nil, fmt.Errorf("policy gate: %w", err)
	}
	st.Decision = decision

	level := contractx.LevelInfo
	if !decision.Allowed {
		level = contractx.LevelWarn
		st.Summary = phrases.Denied
		st.Outcome = contractx.OutcomeDenied
	}
	emit(ctx, emitter, st, contractx.StagePolicyCheck, level, map[string]any{
		"allowed": decision.Allowed,
		"reasons": decision.Reasons,
		"action":  st.Call.Action,
		"params":  telemetryx.Redact(st.Call.Params, st.redaction()),
	})
	return st, nil
}

// Allowed routes a turn to the action runner.
func (s *GraphState) Allowed() bool {
	return s.Call != nil && s.Decision.Allowed
}

func ExecuteAction(ctx context.Context, st *GraphState, runner contractx.ActionRunner, phrases Phrases, emitter contractx.Emitter) (*GraphState, error) {
	if err := st.check(); err != nil {
		return nil, err
	}
	if st.Call == nil {
		return nil, fmt.Errorf("%w: no call step to execute", contractx.ErrValidation)
	}

	result, err := runner.Execute(ctx, *st.Call)
	if err != nil {
		return nil, fmt.Errorf("action runner: %w", err)
	}
	st.CallResult = &result

	switch {
	case result.OK && len(result.Data) > 0:
		st.Summary = runner.Summarize(st.Call.Action, result.Data)
		st.Outcome = contractx.OutcomeCompleted
	case result.Error == actionx.ErrUnknownTool:
		st.Summary = phrases.Failure
		st.Outcome = contractx.OutcomeUnknownAction
	default:
		st.Summary = phrases.NotFound
		st.Outcome = contractx.OutcomeNotFound
	}

	level := contractx.LevelInfo
	if !result.OK {
		level = contractx.LevelWarn
	}
	emit(ctx, emitter, st, contractx.StageToolExecute, level, map[string]any{
		"ok":    result.OK,
		"tool":  st.Call.Action,
		"error": result.Error,
	})
	return st, nil
}
