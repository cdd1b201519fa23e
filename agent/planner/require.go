package planner

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

var DefaultPrompts = map[string]string{
	"order_id": "What’s your order number? It looks like O-12345.",
}

// RequireParameters wraps next with a completeness check: when one of the
// intent's required parameters is empty, the plan is a single AskUser step
// for the first missing one and no call is planned.
func RequireParameters(next contractx.Planner, prompts map[string]string) contractx.Planner {
	return &requireParameters{next: next, prompts: prompts}
}

type requireParameters struct {
	next    contractx.Planner
	prompts map[string]string
}

func (r *requireParameters) Plan(intent contractx.Intent, in contractx.Interaction, params map[string]string) contractx.Plan {
	for _, name := range intent.RequiredParameters {
		if strings.TrimSpace(params[name]) != "" {
			continue
		}
		prompt := r.prompts[name]
		if prompt == "" {
			prompt = fmt.Sprintf("Could you provide your %s?", strings.ReplaceAll(name, "_", " "))
		}
		return contractx.Plan{
			IntentID: intent.ID,
			Steps:    []contractx.Step{contractx.AskUserStep{Param: name, Prompt: prompt}},
		}
	}
	return r.next.Plan(intent, in, params)
}
