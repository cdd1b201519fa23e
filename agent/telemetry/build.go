package telemetry

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

// Build assembles the configured sinks. publisher is only needed when the
// qstash sink is enabled. The returned closers must run on shutdown.
func Build(cfg Config, publisher Publisher) (Fanout, []*QStashSink, error) {
	var (
		sinks   Fanout
		closers []*QStashSink
		seen    = make(map[string]bool, len(cfg.Sinks))
	)

	for _, name := range cfg.Sinks {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		switch name {
		case SinkLog:
			sinks = append(sinks, NewLogSink(nil))
		case SinkOTel:
			sinks = append(sinks, OTelSink{})
		case SinkQStash:
			if publisher == nil {
				return nil, nil, fmt.Errorf("%w: qstash sink needs QSTASH_TOKEN", contractx.ErrValidation)
			}
			q, err := NewQStashSink(publisher, cfg.QStashDestination, cfg.QStashBuffer)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
			}
			sinks = append(sinks, q)
			closers = append(closers, q)
		default:
			return nil, nil, fmt.Errorf("%w: unknown telemetry sink %q", contractx.ErrValidation, name)
		}
	}
	return sinks, closers, nil
}
