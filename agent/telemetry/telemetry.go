// Package telemetry fans router events out to sinks.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

const (
	SinkLog    = "log"
	SinkOTel   = "otel"
	SinkQStash = "qstash"
)

// Config is read with the TELEMETRY prefix.
type Config struct {
	Sinks             []string `split_words:"true" default:"log"`
	QStashDestination string   `envconfig:"QSTASH_DESTINATION" split_words:"true"`
	QStashBuffer      int      `envconfig:"QSTASH_BUFFER" split_words:"true" default:"256"`

	ServiceName  string  `split_words:"true" default:"intent-router"`
	OTLPEndpoint string  `envconfig:"OTLP_ENDPOINT" split_words:"true"`
	OTLPInsecure bool    `envconfig:"OTLP_INSECURE" split_words:"true" default:"false"`
	SampleRate   float64 `split_words:"true" default:"1"`
}

// Fanout delivers each event to every sink in order. A panicking sink is
// logged and the remaining sinks still receive the event.
type Fanout []contractx.Emitter

var _ contractx.Emitter = Fanout(nil)

func (f Fanout) Record(ctx context.Context, ev contractx.Event) {
	for _, sink := range f {
		if sink != nil {
			recordSafely(ctx, sink, ev)
		}
	}
}

func recordSafely(ctx context.Context, sink contractx.Emitter, ev contractx.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Ctx(ctx).Error().
				Str("stage", string(ev.Stage)).
				Str("sink", fmt.Sprintf("%T", sink)).
				Str("panic", fmt.Sprint(r)).
				Msg("telemetry sink panicked")
		}
	}()
	sink.Record(ctx, ev)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Record(context.Context, contractx.Event) {}

// Memory keeps events in arrival order.
type Memory struct {
	mu     sync.Mutex
	events []contractx.Event
}

var _ contractx.Emitter = (*Memory)(nil)

func (m *Memory) Record(_ context.Context, ev contractx.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *Memory) Events() []contractx.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]contractx.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Stages lists the recorded stages, optionally only for one interaction.
func (m *Memory) Stages(interactionID string) []contractx.Stage {
	var stages []contractx.Stage
	for _, ev := range m.Events() {
		if interactionID == "" || ev.InteractionID == interactionID {
			stages = append(stages, ev.Stage)
		}
	}
	return stages
}

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
