package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	actionx "github.com/tanpawarit/Chative-Intent-Router/agent/action"
	routerx "github.com/tanpawarit/Chative-Intent-Router/agent/agents/router"
	classifierx "github.com/tanpawarit/Chative-Intent-Router/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
	datasourcex "github.com/tanpawarit/Chative-Intent-Router/agent/datasource"
	intentsx "github.com/tanpawarit/Chative-Intent-Router/agent/intents"
	llmx "github.com/tanpawarit/Chative-Intent-Router/agent/llm"
	plannerx "github.com/tanpawarit/Chative-Intent-Router/agent/planner"
	policyx "github.com/tanpawarit/Chative-Intent-Router/agent/policy"
	promptx "github.com/tanpawarit/Chative-Intent-Router/agent/prompt"
	sessionx "github.com/tanpawarit/Chative-Intent-Router/agent/session"
	telemetryx "github.com/tanpawarit/Chative-Intent-Router/agent/telemetry"
	configx "github.com/tanpawarit/Chative-Intent-Router/pkg/config"
	_ "github.com/tanpawarit/Chative-Intent-Router/pkg/logger/autoload"
	qstashx "github.com/tanpawarit/Chative-Intent-Router/pkg/qstash"
)

type AppConfig struct {
	SessionID string `envconfig:"SESSION_ID" default:"cli"`
	Channel   string `envconfig:"CHANNEL" default:"chat"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("router exited")
	}
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("APP")
	routerCfg := configx.MustNew[routerx.Config]("ROUTER")
	sessionCfg := configx.MustNew[sessionx.Config]("SESSION")
	intentsCfg := configx.MustNew[intentsx.Config]("INTENTS")
	classifierCfg := configx.MustNew[classifierx.Config]("CLASSIFIER")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	ordersCfg := configx.MustNew[datasourcex.Config]("ORDERS")
	policyCfg := configx.MustNew[policyx.Config]("POLICY")
	telemetryCfg := configx.MustNew[telemetryx.Config]("TELEMETRY")

	shutdownOTel, err := telemetryx.InitOTel(ctx, *telemetryCfg)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	var publisher telemetryx.Publisher
	qstashCfg, ok, err := configx.Optional[qstashx.Config]("QSTASH")
	if err != nil {
		return err
	}
	if ok {
		client, err := qstashx.NewClient(*qstashCfg)
		if err != nil {
			return fmt.Errorf("init qstash: %w", err)
		}
		publisher = client
	}
	emitter, qstashSinks, err := telemetryx.Build(*telemetryCfg, publisher)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, sink := range qstashSinks {
			if err := sink.Close(closeCtx); err != nil {
				log.Warn().Err(err).Msg("qstash sink close")
			}
		}
	}()

	registry, err := intentsx.Load(*intentsCfg)
	if err != nil {
		return fmt.Errorf("load intents: %w", err)
	}

	var planner contractx.Planner
	planner, err = plannerx.NewSimple(registry.Phrasing())
	if err != nil {
		return fmt.Errorf("init planner: %w", err)
	}
	if routerCfg.AskMissing {
		planner = plannerx.RequireParameters(planner, plannerx.DefaultPrompts)
	}

	gate, err := policyx.New(*policyCfg)
	if err != nil {
		return fmt.Errorf("init policy: %w", err)
	}

	orders, closeOrders, err := datasourcex.New(*ordersCfg)
	if err != nil {
		return fmt.Errorf("init order source: %w", err)
	}
	defer func() {
		if err := closeOrders(); err != nil {
			log.Warn().Err(err).Msg("order source close")
		}
	}()
	actions := actionx.NewRunner()
	if err := actionx.RegisterOrderStatus(actions, orders); err != nil {
		return err
	}

	classifier, err := classifierx.New(ctx, *classifierCfg, *llmCfg, promptx.LoadPromptSet().Classifier)
	if err != nil {
		return fmt.Errorf("init classifier: %w", err)
	}

	store := sessionx.NewStore(sessionx.WithConfig(*sessionCfg))
	backend, closeBackend, err := snapshotBackend()
	if err != nil {
		return err
	}
	if backend != nil {
		defer closeBackend()
		n, err := store.Warm(ctx, backend, appCfg.SessionID)
		if err != nil {
			log.Warn().Err(err).Msg("session warm-up failed")
		} else {
			log.Info().Int("sessions", n).Msg("sessions restored")
		}
		defer func() {
			persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Persist(persistCtx, backend); err != nil {
				log.Warn().Err(err).Msg("session persist failed")
			}
		}()
	}

	router, err := routerx.New(routerx.Deps{
		Store:      store,
		Intents:    registry,
		Classifier: classifier,
		Planner:    planner,
		Policy:     gate,
		Actions:    actions,
		Emitter:    emitter,
	}, *routerCfg)
	if err != nil {
		return fmt.Errorf("init router: %w", err)
	}

	log.Info().
		Str("classifier", classifierCfg.Backend).
		Str("orders", ordersCfg.Backend).
		Strs("sinks", telemetryCfg.Sinks).
		Msg("router ready")

	return repl(ctx, router, *appCfg)
}

// snapshotBackend picks Upstash REST when configured, then native Redis.
func snapshotBackend() (sessionx.SnapshotStore, func(), error) {
	upstashCfg, ok, err := configx.Optional[sessionx.UpstashRedisConfig]("UPSTASH_REDIS")
	if err != nil {
		return nil, nil, err
	}
	if ok {
		store, err := sessionx.NewUpstashRedisStore(*upstashCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("init upstash session store: %w", err)
		}
		return store, func() {}, nil
	}

	redisCfg, ok, err := configx.Optional[sessionx.RedisConfig]("REDIS")
	if err != nil {
		return nil, nil, err
	}
	if ok {
		store := sessionx.NewRedisStore(*redisCfg)
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("redis close")
			}
		}, nil
	}
	return nil, nil, nil
}

func repl(ctx context.Context, router *routerx.Router, cfg AppConfig) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	fmt.Fprintln(rl.Stdout(), "Type a message, /reset to clear the session, /quit to exit.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		text := strings.TrimSpace(line)
		switch text {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := router.Reset(ctx, cfg.SessionID); err != nil {
				log.Error().Err(err).Msg("reset failed")
				continue
			}
			fmt.Fprintln(rl.Stdout(), "agent> session cleared")
			continue
		}

		resp, err := router.Handle(ctx, contractx.Interaction{
			ID:   uuid.NewString(),
			Text: text,
			Context: map[string]string{
				contractx.ContextSessionID: cfg.SessionID,
				contractx.ContextChannel:   cfg.Channel,
			},
		})
		if err != nil {
			fmt.Fprintln(rl.Stdout(), "agent> something went wrong, please try again")
			continue
		}
		fmt.Fprintf(rl.Stdout(), "agent> %s\n", resp.Text)
	}
}
