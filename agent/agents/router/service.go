package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
	nodex "github.com/tanpawarit/Chative-Intent-Router/agent/nodes/router"
	sessionx "github.com/tanpawarit/Chative-Intent-Router/agent/session"
	telemetryx "github.com/tanpawarit/Chative-Intent-Router/agent/telemetry"
)

const instrumentationName = "github.com/tanpawarit/Chative-Intent-Router/agent/agents/router"

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = sessionx.ErrInvalidSession
)

// Config is read with the ROUTER prefix.
type Config struct {
	// Capability names what the assistant can do; it fills the clarification
	// reply. When empty, the intent source's own description is used.
	Capability   string        `split_words:"true" default:"check order status"`
	NotFoundText string        `split_words:"true"`
	DeniedText   string        `split_words:"true"`
	FailureText  string        `split_words:"true"`
	AskMissing   bool          `split_words:"true" default:"true"`
	TurnTimeout  time.Duration `split_words:"true" default:"30s"`
}

func (c Config) phrases() nodex.Phrases {
	p := nodex.DefaultPhrases(c.Capability)
	if v := strings.TrimSpace(c.NotFoundText); v != "" {
		p.NotFound = v
	}
	if v := strings.TrimSpace(c.DeniedText); v != "" {
		p.Denied = v
	}
	if v := strings.TrimSpace(c.FailureText); v != "" {
		p.Failure = v
	}
	return p
}

// describer is implemented by intent sources that can name their capability set.
type describer interface {
	Describe() string
}

// Deps are the collaborators of a Router. Emitter is optional.
type Deps struct {
	Store      *sessionx.Store
	Intents    contractx.IntentSource
	Classifier contractx.Classifier
	Planner    contractx.Planner
	Policy     contractx.PolicyGate
	Actions    contractx.ActionRunner
	Emitter    contractx.Emitter
}

type Router struct {
	store      *sessionx.Store
	intents    contractx.IntentSource
	classifier contractx.Classifier
	planner    contractx.Planner
	policy     contractx.PolicyGate
	actions    contractx.ActionRunner
	emitter    contractx.Emitter

	phrases     nodex.Phrases
	turnTimeout time.Duration

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	tracer   trace.Tracer
	turns    metric.Int64Counter
	duration metric.Float64Histogram

	now func() time.Time
}

type Option func(*Router)

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

func New(deps Deps, cfg Config, opts ...Option) (*Router, error) {
	if deps.Store == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Intents == nil {
		return nil, errors.New("intent source is required")
	}
	if deps.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if deps.Planner == nil {
		return nil, errors.New("planner is required")
	}
	if deps.Policy == nil {
		return nil, errors.New("policy gate is required")
	}
	if deps.Actions == nil {
		return nil, errors.New("action runner is required")
	}
	if deps.Emitter == nil {
		deps.Emitter = telemetryx.Discard{}
	}
	if strings.TrimSpace(cfg.Capability) == "" {
		if d, ok := deps.Intents.(describer); ok {
			cfg.Capability = d.Describe()
		}
	}

	r := &Router{
		store:       deps.Store,
		intents:     deps.Intents,
		classifier:  deps.Classifier,
		planner:     deps.Planner,
		policy:      deps.Policy,
		actions:     deps.Actions,
		emitter:     deps.Emitter,
		phrases:     cfg.phrases(),
		turnTimeout: cfg.TurnTimeout,
		tracer:      otel.Tracer(instrumentationName),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if r.turns, err = meter.Int64Counter("router.turns",
		metric.WithDescription("Turns handled, by outcome")); err != nil {
		return nil, fmt.Errorf("create turn counter: %w", err)
	}
	if r.duration, err = meter.Float64Histogram("router.turn.duration",
		metric.WithDescription("Turn latency"), metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("create turn histogram: %w", err)
	}

	graphRunner, err := r.compileHandleGraph(context.Background())
	if err != nil {
		return nil, err
	}
	r.graphRunner = graphRunner

	return r, nil
}

// Handle runs one turn. Turns on the same session run one at a time. When a
// collaborator fails the session is restored to its state before the turn and
// the error wraps contract.ErrCollaboratorFault.
func (r *Router) Handle(ctx context.Context, in contractx.Interaction) (contractx.Response, error) {
	if strings.TrimSpace(in.Text) == "" {
		return contractx.Response{}, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage)
	}
	sessionID := in.SessionID()
	if sessionID == "" {
		return contractx.Response{}, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidSession)
	}

	if r.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.turnTimeout)
		defer cancel()
	}

	started := time.Now()
	ctx, span := r.tracer.Start(ctx, "router.handle", trace.WithAttributes(
		attribute.String("router.interaction_id", in.ID),
		attribute.String("router.session_id", sessionID),
		attribute.String("router.channel", in.Channel()),
	))
	defer span.End()

	logger := log.With().Str("interaction_id", in.ID).Str("session_id", sessionID).Logger()
	ctx = logger.WithContext(ctx)

	resp, err := r.handleLocked(ctx, sessionID, in)

	outcome := string(resp.Outcome)
	if err != nil {
		outcome = "fault"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("turn failed")
	} else {
		span.SetAttributes(attribute.String("router.outcome", outcome))
		logger.Debug().Str("outcome", outcome).Msg("turn handled")
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.turns.Add(ctx, 1, attrs)
	r.duration.Record(ctx, float64(time.Since(started).Microseconds())/1000, attrs)

	return resp, err
}

func (r *Router) handleLocked(ctx context.Context, sessionID string, in contractx.Interaction) (contractx.Response, error) {
	unlock, err := r.store.Lock(ctx, sessionID)
	if err != nil {
		return contractx.Response{}, fmt.Errorf("%w: %w", contractx.ErrCollaboratorFault, err)
	}
	defer unlock()

	handle := r.store.ForSession(sessionID)
	before := handle.Snapshot()

	out, err := r.graphRunner.Invoke(ctx, nodex.GraphInput{Interaction: in, Session: handle})
	if err != nil {
		handle.Restore(before)
		if errors.Is(err, contractx.ErrValidation) {
			return contractx.Response{}, err
		}
		return contractx.Response{}, fmt.Errorf("%w: %w", contractx.ErrCollaboratorFault, err)
	}
	return out, nil
}

// Reset clears one session, waiting for any turn in flight on it.
func (r *Router) Reset(ctx context.Context, sessionID string) error {
	unlock, err := r.store.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	r.store.ForSession(sessionID).Clear()
	return nil
}
