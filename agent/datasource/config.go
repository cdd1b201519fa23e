package datasource

import (
	"fmt"
	"strings"

	actionx "github.com/tanpawarit/Chative-Intent-Router/agent/action"
	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
)

type Config struct {
	Backend string `split_words:"true" default:"json"`
	Path    string `split_words:"true" default:"data/orders.json"`
	DSN     string `envconfig:"DSN"`
}

// New builds the configured order source. The returned close func is never nil.
func New(cfg Config) (actionx.OrderSource, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendJSON:
		return NewJSONFile(cfg.Path), func() error { return nil }, nil
	case BackendPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, nil, fmt.Errorf("%w: postgres backend needs ORDERS_DSN", contractx.ErrValidation)
		}
		pg := OpenPostgres(cfg.DSN)
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown orders backend %q", contractx.ErrValidation, cfg.Backend)
	}
}
