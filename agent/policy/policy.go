// Package policy decides whether a planned action may run.
package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

var ErrInvalidRule = errors.New("invalid policy rule")

// costLimit bounds the work a single rule may do per evaluation.
const costLimit = 10000

type Config struct {
	// Path to a YAML rules file. Empty means every call is allowed.
	Path string `split_words:"true"`
}

// AllowAll permits every call.
type AllowAll struct{}

var _ contractx.PolicyGate = AllowAll{}

func (AllowAll) Validate(context.Context, contractx.CallStep, contractx.Interaction, []contractx.Message) (contractx.PolicyDecision, error) {
	return contractx.PolicyDecision{Allowed: true}, nil
}

// Rule is one CEL expression that must evaluate to true for a call to pass.
// Expressions see `call` (action, params), `interaction` (id, text,
// customer_id, channel, context) and `history_len`.
type Rule struct {
	Name   string `yaml:"name"`
	Expr   string `yaml:"expr"`
	Reason string `yaml:"reason"`
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// CEL evaluates every rule on each call and reports the reason of each one
// that fails.
type CEL struct {
	rules []compiledRule
}

var _ contractx.PolicyGate = (*CEL)(nil)

func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("call", cel.DynType),
		cel.Variable("interaction", cel.DynType),
		cel.Variable("history_len", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return env, nil
}

func NewCEL(rules []Rule) (*CEL, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		r.Expr = strings.TrimSpace(r.Expr)
		if r.Expr == "" {
			return nil, fmt.Errorf("%w: rule %d has no expression", ErrInvalidRule, i)
		}
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule_%d", i)
		}
		if r.Reason == "" {
			r.Reason = r.Name + " failed"
		}

		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRule, r.Name, issues.Err())
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(costLimit),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRule, r.Name, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, prg: prg})
	}
	return &CEL{rules: compiled}, nil
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes a YAML document with a top-level `rules` list.
func ParseRules(raw []byte) ([]Rule, error) {
	var doc rulesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode policy rules: %w", err)
	}
	return doc.Rules, nil
}

func LoadFile(path string) (*CEL, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy rules: %w", err)
	}
	rules, err := ParseRules(raw)
	if err != nil {
		return nil, err
	}
	return NewCEL(rules)
}

// New returns AllowAll when no rules file is configured.
func New(cfg Config) (contractx.PolicyGate, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return AllowAll{}, nil
	}
	return LoadFile(cfg.Path)
}

func (c *CEL) Validate(ctx context.Context, call contractx.CallStep, in contractx.Interaction, history []contractx.Message) (contractx.PolicyDecision, error) {
	input := map[string]any{
		"call":        callInput(call),
		"interaction": interactionInput(in),
		"history_len": int64(len(history)),
	}

	decision := contractx.PolicyDecision{Allowed: true}
	for _, r := range c.rules {
		if err := ctx.Err(); err != nil {
			return contractx.PolicyDecision{}, err
		}
		out, _, err := r.prg.ContextEval(ctx, input)
		if err != nil {
			return contractx.PolicyDecision{}, fmt.Errorf("evaluate rule %s: %w", r.Name, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return contractx.PolicyDecision{}, fmt.Errorf("%w: %s does not yield a bool", ErrInvalidRule, r.Name)
		}
		if !ok {
			decision.Allowed = false
			decision.Reasons = append(decision.Reasons, r.Reason)
		}
	}
	return decision, nil
}

func callInput(call contractx.CallStep) map[string]any {
	params := make(map[string]any, len(call.Params))
	for k, v := range call.Params {
		params[k] = v
	}
	return map[string]any{
		"action": call.Action,
		"params": params,
	}
}

func interactionInput(in contractx.Interaction) map[string]any {
	ctxVals := make(map[string]any, len(in.Context))
	for k, v := range in.Context {
		ctxVals[k] = v
	}
	return map[string]any{
		"id":          in.ID,
		"text":        in.Text,
		"customer_id": in.CustomerID,
		"channel":     in.Channel(),
		"context":     ctxVals,
	}
}
