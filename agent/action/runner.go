// Package action holds the registry of side-effecting actions the router may call.
package action

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

const ErrUnknownTool = "unknown_tool"

// Handler runs one action. A returned error is a fault of the handler's own
// backend; "nothing found" is reported through CallResult.
type Handler func(ctx context.Context, params map[string]string) (contractx.CallResult, error)

// Summarizer renders a successful result payload as a short sentence fragment.
type Summarizer func(data map[string]any) string

type registration struct {
	handler   Handler
	summarize Summarizer
}

type Runner struct {
	mu      sync.RWMutex
	actions map[string]registration
}

var _ contractx.ActionRunner = (*Runner)(nil)

func NewRunner() *Runner {
	return &Runner{actions: make(map[string]registration, 4)}
}

// Register binds name to handler, replacing any previous binding. A nil
// summarizer falls back to GenericSummary.
func (r *Runner) Register(name string, handler Handler, summarize Summarizer) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: action name is empty", contractx.ErrValidation)
	}
	if handler == nil {
		return fmt.Errorf("%w: handler for %s is nil", contractx.ErrValidation, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = registration{handler: handler, summarize: summarize}
	return nil
}

func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute invokes the handler bound to call.Action. Unknown names yield
// ok=false with ErrUnknownTool and nothing runs.
func (r *Runner) Execute(ctx context.Context, call contractx.CallStep) (contractx.CallResult, error) {
	r.mu.RLock()
	reg, ok := r.actions[call.Action]
	r.mu.RUnlock()
	if !ok {
		log.Ctx(ctx).Warn().Str("action", call.Action).Msg("call to unregistered action")
		return contractx.CallResult{OK: false, Error: ErrUnknownTool}, nil
	}

	params := make(map[string]string, len(call.Params))
	for k, v := range call.Params {
		params[k] = v
	}

	res, err := reg.handler(ctx, params)
	if err != nil {
		return contractx.CallResult{}, fmt.Errorf("action %s: %w", call.Action, err)
	}
	return res, nil
}

func (r *Runner) Summarize(action string, data map[string]any) string {
	r.mu.RLock()
	reg, ok := r.actions[action]
	r.mu.RUnlock()
	if ok && reg.summarize != nil {
		return reg.summarize(data)
	}
	return GenericSummary(data)
}

// GenericSummary renders data as "key: value" pairs in key order.
func GenericSummary(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if data[k] == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %v", strings.ReplaceAll(k, "_", " "), data[k]))
	}
	return strings.Join(parts, ", ")
}
