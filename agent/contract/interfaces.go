package contract

import "context"

type IntentSource interface {
	Eligible(ctx context.Context, in Interaction) ([]Intent, error)
}

type Classifier interface {
	Classify(ctx context.Context, in Interaction, eligible []Intent, history []Message) (Classification, error)
}

// Planner must be pure: no I/O and deterministic for identical inputs.
type Planner interface {
	Plan(intent Intent, in Interaction, params map[string]string) Plan
}

type PolicyGate interface {
	Validate(ctx context.Context, call CallStep, in Interaction, history []Message) (PolicyDecision, error)
}

type ActionRunner interface {
	Execute(ctx context.Context, call CallStep) (CallResult, error)
	Summarize(action string, data map[string]any) string
}

// Emitter records telemetry. Record must not fail the turn; sinks handle their own errors.
type Emitter interface {
	Record(ctx context.Context, ev Event)
}
