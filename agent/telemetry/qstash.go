package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

var ErrSinkClosed = errors.New("telemetry sink closed")

const publishTimeout = 5 * time.Second

// Publisher is satisfied by *qstash.Client.
type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte) (string, error)
}

// QStashSink forwards events to a QStash destination from a background worker.
// Events are dropped, with a warning, when the buffer is full.
type QStashSink struct {
	publisher   Publisher
	destination string

	events chan contractx.Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ contractx.Emitter = (*QStashSink)(nil)

func NewQStashSink(publisher Publisher, destination string, buffer int) (*QStashSink, error) {
	if publisher == nil {
		return nil, errors.New("qstash publisher is required")
	}
	if destination == "" {
		return nil, errors.New("qstash destination is required")
	}
	if buffer <= 0 {
		buffer = 1
	}

	s := &QStashSink{
		publisher:   publisher,
		destination: destination,
		events:      make(chan contractx.Event, buffer),
		done:        make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *QStashSink) Record(ctx context.Context, ev contractx.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.events <- ev:
	default:
		log.Ctx(ctx).Warn().
			Str("stage", string(ev.Stage)).
			Str("interaction_id", ev.InteractionID).
			Msg("telemetry buffer full, event dropped")
	}
}

func (s *QStashSink) run() {
	defer close(s.done)
	for ev := range s.events {
		s.publish(ev)
	}
}

func (s *QStashSink) publish(ev contractx.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("stage", string(ev.Stage)).Msg("marshal telemetry event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := s.publisher.Publish(ctx, s.destination, body); err != nil {
		log.Warn().Err(err).Str("stage", string(ev.Stage)).Msg("publish telemetry event")
	}
}

// Close stops accepting events and waits for queued ones to be published or
// for ctx to end.
func (s *QStashSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
