package contract

import (
	"strings"
	"time"
)

const (
	ContextSessionID = "session_id"
	ContextChannel   = "channel"

	DefaultChannel = "chat"
)

// Interaction is one inbound turn. It is never mutated after the router receives it.
type Interaction struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	CustomerID string            `json:"customer_id,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
}

// SessionID returns the session id from the context, falling back to the interaction id.
func (i Interaction) SessionID() string {
	if v := strings.TrimSpace(i.Context[ContextSessionID]); v != "" {
		return v
	}
	return strings.TrimSpace(i.ID)
}

func (i Interaction) Channel() string {
	if v := strings.TrimSpace(i.Context[ContextChannel]); v != "" {
		return v
	}
	return DefaultChannel
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

type Message struct {
	Role      Role              `json:"role"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type Constraints struct {
	Channels []string `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// AllowsChannel reports whether the channel passes the allow-list. An empty list allows all.
func (c Constraints) AllowsChannel(channel string) bool {
	if len(c.Channels) == 0 {
		return true
	}
	for _, ch := range c.Channels {
		if strings.EqualFold(strings.TrimSpace(ch), channel) {
			return true
		}
	}
	return false
}

type Redaction struct {
	Parameters []string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func (r Redaction) Masks(param string) bool {
	for _, p := range r.Parameters {
		if p == param {
			return true
		}
	}
	return false
}

// Intent is an action definition supplied by an IntentSource.
type Intent struct {
	ID                 string            `json:"id" yaml:"id"`
	Description        string            `json:"description" yaml:"description"`
	RequiredParameters []string          `json:"required_parameters,omitempty" yaml:"required_parameters,omitempty"`
	ActionName         string            `json:"action_name" yaml:"action_name"`
	Constraints        Constraints       `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Redaction          Redaction         `json:"redaction,omitempty" yaml:"redaction,omitempty"`
	SlotPatterns       map[string]string `json:"slot_patterns,omitempty" yaml:"slot_patterns,omitempty"`
	Keywords           []string          `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

type Classification struct {
	Intent            *Intent           `json:"intent,omitempty"`
	Parameters        map[string]string `json:"parameters,omitempty"`
	MissingParameters []string          `json:"missing_parameters,omitempty"`
	Confidence        float64           `json:"confidence"`
}

type CallResult struct {
	OK    bool           `json:"ok"`
	Data  map[string]any `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

type PolicyDecision struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons,omitempty"`
}

// Outcome names how a turn ended.
type Outcome string

const (
	OutcomeCompleted     Outcome = "completed"
	OutcomeNoIntent      Outcome = "no_intent"
	OutcomeAskUser       Outcome = "ask_user"
	OutcomeDenied        Outcome = "denied"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeUnknownAction Outcome = "unknown_action"
)

type Response struct {
	Text       string      `json:"text"`
	CallResult *CallResult `json:"tool_result,omitempty"`
	Outcome    Outcome     `json:"outcome"`
	// Reason is the handled taxonomy error behind a degraded reply, nil on success.
	Reason error `json:"-"`
}

// Err maps a handled outcome to its taxonomy error.
func (o Outcome) Err() error {
	switch o {
	case OutcomeNoIntent:
		return ErrNoEligibleIntent
	case OutcomeDenied:
		return ErrActionDenied
	case OutcomeUnknownAction:
		return ErrActionNotFound
	case OutcomeNotFound:
		return ErrActionLookupFailed
	default:
		return nil
	}
}
