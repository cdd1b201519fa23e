package routernode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
	sessionx "github.com/tanpawarit/Chative-Intent-Router/agent/session"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrNilState       = errors.New("graph state is nil")
)

// Phrases are the fixed replies of degraded turns.
type Phrases struct {
	Clarification string
	NotFound      string
	Denied        string
	Failure       string
	AskDefault    string
	PostFallback  string
}

func DefaultPhrases(capability string) Phrases {
	capability = strings.TrimSpace(capability)
	if capability == "" {
		capability = "check order status"
	}
	return Phrases{
		Clarification: fmt.Sprintf("I didn’t recognize a supported request. For now I can %s.", capability),
		NotFound:      "I couldn’t find that order.",
		Denied:        "This action isn’t allowed by policy.",
		Failure:       "I couldn’t complete that request.",
		AskDefault:    "Could you provide the missing information?",
		PostFallback:  "Here’s the result: {summary}",
	}
}

type GraphInput struct {
	Interaction contractx.Interaction
	Session     *sessionx.Handle
}

type GraphOutput = contractx.Response

// GraphState is threaded through every stage of one turn.
type GraphState struct {
	Interaction contractx.Interaction
	SessionID   string
	Session     *sessionx.Handle
	Now         func() time.Time

	History        []contractx.Message
	Eligible       []contractx.Intent
	Classification contractx.Classification
	Plan           contractx.Plan
	Call           *contractx.CallStep
	Decision       contractx.PolicyDecision
	CallResult     *contractx.CallResult

	Summary string
	Outcome contractx.Outcome
}

func (s *GraphState) check() error {
	if s == nil || s.Session == nil {
		return fmt.Errorf("%w: %w", contractx.ErrValidation, ErrNilState)
	}
	return nil
}

func (s *GraphState) redaction() contractx.Redaction {
	if s.Classification.Intent == nil {
		return contractx.Redaction{}
	}
	return s.Classification.Intent.Redaction
}
