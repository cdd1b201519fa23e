// Package planner turns a chosen intent and the session's accumulated
// parameters into a plan of steps. Planners do no I/O.
package planner

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

// Phrasing holds the user-facing sentences for one intent. Pre and Post are
// format strings taking the primary parameter value; Post and PostGeneric
// must contain SummaryPlaceholder exactly once.
type Phrasing struct {
	Param       string `yaml:"param"`
	Pre         string `yaml:"pre"`
	PreGeneric  string `yaml:"pre_generic"`
	Post        string `yaml:"post"`
	PostGeneric string `yaml:"post_generic"`
}

var OrderStatusPhrasing = Phrasing{
	Param:       "order_id",
	Pre:         "I’ll check the status of order %s.",
	PreGeneric:  "I’ll check your order status.",
	Post:        "Here’s what I found for order %s: " + SummaryPlaceholder,
	PostGeneric: "Here’s what I found: " + SummaryPlaceholder,
}

var defaultPhrasing = Phrasing{
	PreGeneric:  "Working on it.",
	PostGeneric: "Here’s the result: " + SummaryPlaceholder,
}

func (p Phrasing) Validate() error {
	if err := singleValueVerb("pre", p.Pre); err != nil {
		return err
	}
	if err := singleValueVerb("post", p.Post); err != nil {
		return err
	}
	if n := strings.Count(p.PostGeneric, SummaryPlaceholder); n != 1 {
		return fmt.Errorf("%w: post_generic has %d summary placeholders", contractx.ErrValidation, n)
	}
	if p.Post == "" {
		return nil
	}
	if n := strings.Count(p.Post, SummaryPlaceholder); n != 1 {
		return fmt.Errorf("%w: post has %d summary placeholders", contractx.ErrValidation, n)
	}
	return nil
}

// singleValueVerb accepts an empty format or one with exactly one %s and no
// other verbs. A literal percent sign is written %%.
func singleValueVerb(field, format string) error {
	if format == "" {
		return nil
	}
	rest := strings.ReplaceAll(format, "%%", "")
	verbs := strings.Count(rest, "%")
	if verbs != 1 || strings.Count(rest, "%s") != 1 {
		return fmt.Errorf("%w: %s needs exactly one %%s and no other verbs", contractx.ErrValidation, field)
	}
	return nil
}

// Simple builds the three-step plan: pre respond, call, post respond.
type Simple struct {
	phrasing map[string]Phrasing
}

var _ contractx.Planner = (*Simple)(nil)

// NewSimple returns a planner with per-intent phrasing. Intents without an
// entry use a neutral phrasing.
func NewSimple(phrasing map[string]Phrasing) (*Simple, error) {
	out := make(map[string]Phrasing, len(phrasing))
	for id, p := range phrasing {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("intent %s: %w", id, err)
		}
		out[id] = p
	}
	return &Simple{phrasing: out}, nil
}

func (s *Simple) Plan(intent contractx.Intent, _ contractx.Interaction, params map[string]string) contractx.Plan {
	phrasing, ok := s.phrasing[intent.ID]
	if !ok {
		phrasing = defaultPhrasing
	}

	value := ""
	if phrasing.Param != "" {
		value = strings.TrimSpace(params[phrasing.Param])
	}

	pre, post := phrasing.PreGeneric, phrasing.PostGeneric
	if value != "" {
		if phrasing.Pre != "" {
			pre = fmt.Sprintf(phrasing.Pre, value)
		}
		if phrasing.Post != "" {
			// a parameter value must not add a second placeholder
			post = fmt.Sprintf(phrasing.Post, strings.ReplaceAll(value, SummaryPlaceholder, "{ summary }"))
		}
	}

	callParams := make(map[string]string, len(params))
	for k, v := range params {
		callParams[k] = v
	}

	return contractx.Plan{
		IntentID: intent.ID,
		Steps: []contractx.Step{
			contractx.RespondStep{When: contractx.RespondPre, Message: pre},
			contractx.CallStep{Action: intent.ActionName, Params: callParams},
			contractx.RespondStep{When: contractx.RespondPost, Message: post},
		},
	}
}
