package telemetry

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

// LogSink writes each event as one structured log line.
type LogSink struct {
	logger *zerolog.Logger
}

var _ contractx.Emitter = (*LogSink)(nil)

// NewLogSink logs through logger, or through the context/global logger when nil.
func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, ev contractx.Event) {
	logger := s.logger
	if logger == nil {
		logger = log.Ctx(ctx)
		if logger.GetLevel() == zerolog.Disabled {
			logger = &log.Logger
		}
	}

	logger.WithLevel(zerologLevel(ev.Level)).
		Time("event_time", ev.Timestamp).
		Str("interaction_id", ev.InteractionID).
		Str("session_id", ev.SessionID).
		Str("stage", string(ev.Stage)).
		Fields(ev.Payload).
		Msg("router event")
}

func zerologLevel(l contractx.Level) zerolog.Level {
	switch l {
	case contractx.LevelWarn:
		return zerolog.WarnLevel
	case contractx.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
