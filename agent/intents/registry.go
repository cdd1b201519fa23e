// Package intents supplies the action definitions eligible for an interaction.
package intents

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
	plannerx "github.com/tanpawarit/Chative-Intent-Router/agent/planner"
)

//go:embed config/intents.yaml
var defaultIntentsRaw []byte

var (
	ErrDuplicateIntent = errors.New("duplicate intent id")
	ErrInvalidIntent   = errors.New("invalid intent definition")
)

type Config struct {
	Path string `split_words:"true"`
}

type document struct {
	Intents []entry `yaml:"intents"`
}

type entry struct {
	contractx.Intent `yaml:",inline"`
	Phrasing         *plannerx.Phrasing `yaml:"phrasing,omitempty"`
}

// Registry is an IntentSource backed by a YAML document. It is read-only
// after construction and safe for concurrent use.
type Registry struct {
	intents  []contractx.Intent
	phrasing map[string]plannerx.Phrasing
}

var _ contractx.IntentSource = (*Registry)(nil)

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Parse(defaultIntentsRaw)
}

// Load reads cfg.Path, or the built-in registry when the path is empty.
func Load(cfg Config) (*Registry, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return Default()
	}
	return LoadFile(cfg.Path)
}

func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intents file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode intents yaml: %w", err)
	}

	r := &Registry{
		intents:  make([]contractx.Intent, 0, len(doc.Intents)),
		phrasing: make(map[string]plannerx.Phrasing, len(doc.Intents)),
	}
	seen := make(map[string]struct{}, len(doc.Intents))
	for i, e := range doc.Intents {
		it := e.Intent
		it.ID = strings.TrimSpace(it.ID)
		it.ActionName = strings.TrimSpace(it.ActionName)
		if it.ID == "" || it.ActionName == "" {
			return nil, fmt.Errorf("%w: entry %d needs id and action_name", ErrInvalidIntent, i)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateIntent, it.ID)
		}
		seen[it.ID] = struct{}{}

		if e.Phrasing != nil {
			if err := e.Phrasing.Validate(); err != nil {
				return nil, fmt.Errorf("intent %s: %w", it.ID, err)
			}
			r.phrasing[it.ID] = *e.Phrasing
		}
		r.intents = append(r.intents, it)
	}
	return r, nil
}

// Eligible returns the intents whose channel constraint admits the
// interaction's channel, in source order.
func (r *Registry) Eligible(_ context.Context, in contractx.Interaction) ([]contractx.Intent, error) {
	channel := in.Channel()
	out := make([]contractx.Intent, 0, len(r.intents))
	for _, it := range r.intents {
		if !it.Constraints.AllowsChannel(channel) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *Registry) All() []contractx.Intent {
	return append([]contractx.Intent(nil), r.intents...)
}

// Phrasing returns the planner phrasing declared alongside the intents.
func (r *Registry) Phrasing() map[string]plannerx.Phrasing {
	out := make(map[string]plannerx.Phrasing, len(r.phrasing))
	for k, v := range r.phrasing {
		out[k] = v
	}
	return out
}

// Describe joins intent descriptions into one capability sentence.
func (r *Registry) Describe() string {
	parts := make([]string, 0, len(r.intents))
	for _, it := range r.intents {
		if d := strings.TrimSpace(it.Description); d != "" {
			parts = append(parts, strings.ToLower(d[:1])+d[1:])
		}
	}
	return strings.Join(parts, "; ")
}
