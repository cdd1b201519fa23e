package contract

// Step is one plan step. The set of implementations is closed:
// RespondStep, AskUserStep and CallStep.
type Step interface {
	isStep()
}

type RespondWhen string

const (
	RespondPre   RespondWhen = "pre"
	RespondPost  RespondWhen = "post"
	RespondError RespondWhen = "error"
)

type RespondStep struct {
	When    RespondWhen `json:"when"`
	Message string      `json:"message"`
}

type AskUserStep struct {
	Param  string `json:"param"`
	Prompt string `json:"prompt"`
}

// CallStep invokes the bound action with the accumulated parameters.
type CallStep struct {
	Action string            `json:"action"`
	Params map[string]string `json:"params"`
}

func (RespondStep) isStep() {}
func (AskUserStep) isStep() {}
func (CallStep) isStep()    {}

type Plan struct {
	IntentID string `json:"intent_id"`
	Steps    []Step `json:"steps"`
}

// StepKind is the telemetry name of a step.
func StepKind(s Step) string {
	switch s.(type) {
	case RespondStep:
		return "respond"
	case AskUserStep:
		return "ask_user"
	case CallStep:
		return "call"
	default:
		return "unknown"
	}
}

func (p Plan) Respond(when RespondWhen) (RespondStep, bool) {
	for _, s := range p.Steps {
		if r, ok := s.(RespondStep); ok && r.When == when {
			return r, true
		}
	}
	return RespondStep{}, false
}

func (p Plan) AskUser() (AskUserStep, bool) {
	for _, s := range p.Steps {
		if a, ok := s.(AskUserStep); ok {
			return a, true
		}
	}
	return AskUserStep{}, false
}

func (p Plan) Call() (CallStep, bool) {
	for _, s := range p.Steps {
		if c, ok := s.(CallStep); ok {
			return c, true
		}
	}
	return CallStep{}, false
}

func (p Plan) StepKinds() []string {
	kinds := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		kinds = append(kinds, StepKind(s))
	}
	return kinds
}
