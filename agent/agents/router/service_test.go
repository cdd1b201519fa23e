package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	actionx "github.com/tanpawarit/Chative-Intent-Router/agent/action"
	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
	intentsx "github.com/tanpawarit/Chative-Intent-Router/agent/intents"
	plannerx "github.com/tanpawarit/Chative-Intent-Router/agent/planner"
	policyx "github.com/tanpawarit/Chative-Intent-Router/agent/policy"
	sessionx "github.com/tanpawarit/Chative-Intent-Router/agent/session"
	telemetryx "github.com/tanpawarit/Chative-Intent-Router/agent/telemetry"
)

type classifierFunc func(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error)

func (f classifierFunc) Classify(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
	return f(ctx, in, eligible, history)
}

// stubClassifier picks the first eligible intent and returns fixed parameters.
func stubClassifier(params map[string]string) classifierFunc {
	return func(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
		if len(eligible) == 0 {
			return contractx.Classification{}, nil
		}
		intent := eligible[0]
		return contractx.Classification{Intent: &intent, Parameters: params, Confidence: 1}, nil
	}
}

func noneClassifier() classifierFunc {
	return func(context.Context, contractx.Interaction, []contractx.Intent, []contractx.Message) (contractx.Classification, error) {
		return contractx.Classification{}, nil
	}
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]map[string]any
	err    error
	calls  []string
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, orderID)
	if f.err != nil {
		return nil, f.err
	}
	return f.orders[orderID], nil
}

type recordingRunner struct {
	contractx.ActionRunner
	mu    sync.Mutex
	calls []contractx.CallStep
}

func (r *recordingRunner) Execute(ctx context.Context, call contractx.CallStep) (contractx.CallResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	return r.ActionRunner.Execute(ctx, call)
}

type denyAll struct{}

func (denyAll) Validate(context.Context, contractx.CallStep, contractx.Interaction, []contractx.Message) (contractx.PolicyDecision, error) {
	return contractx.PolicyDecision{Allowed: false, Reasons: []string{"blocked"}}, nil
}

type fixture struct {
	store   *sessionx.Store
	orders  *fakeOrders
	runner  *recordingRunner
	events  *telemetryx.Memory
	router  *Router
	planner contractx.Planner
}

type fixtureOption func(*Deps, *Config)

func withClassifier(c contractx.Classifier) fixtureOption {
	return func(d *Deps, _ *Config) { d.Classifier = c }
}

func withPolicy(p contractx.PolicyGate) fixtureOption {
	return func(d *Deps, _ *Config) { d.Policy = p }
}

func withEmitter(e contractx.Emitter) fixtureOption {
	return func(d *Deps, _ *Config) { d.Emitter = e }
}

type panickingEmitter struct{}

func (panickingEmitter) Record(context.Context, contractx.Event) {
	panic("sink exploded")
}

func withConfig(fn func(*Config)) fixtureOption {
	return func(_ *Deps, c *Config) { fn(c) }
}

func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	registry, err := intentsx.Default()
	if err != nil {
		t.Fatalf("intents.Default() error = %v", err)
	}
	simple, err := plannerx.NewSimple(registry.Phrasing())
	if err != nil {
		t.Fatalf("NewSimple() error = %v", err)
	}

	orders := &fakeOrders{orders: map[string]map[string]any{
		"O-12345": {"order_id": "O-12345", "status": "in_transit", "carrier": "UPS", "eta": "2024-01-05"},
	}}
	actions := actionx.NewRunner()
	if err := actionx.RegisterOrderStatus(actions, orders); err != nil {
		t.Fatalf("RegisterOrderStatus() error = %v", err)
	}

	clock := steppingClock()
	f := &fixture{
		store:   sessionx.NewStore(sessionx.WithMaxHistory(100), sessionx.WithClock(clock)),
		orders:  orders,
		runner:  &recordingRunner{ActionRunner: actions},
		events:  &telemetryx.Memory{},
		planner: plannerx.RequireParameters(simple, plannerx.DefaultPrompts),
	}

	deps := Deps{
		Store:      f.store,
		Intents:    registry,
		Classifier: stubClassifier(map[string]string{"order_id": "O-12345"}),
		Planner:    f.planner,
		Policy:     policyx.AllowAll{},
		Actions:    f.runner,
		Emitter:    f.events,
	}
	cfg := Config{Capability: "check order status"}
	for _, opt := range opts {
		opt(&deps, &cfg)
	}

	f.router, err = New(deps, cfg, WithClock(clock))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func interaction(id, session, text string) contractx.Interaction {
	return contractx.Interaction{
		ID:      id,
		Text:    text,
		Context: map[string]string{contractx.ContextSessionID: session},
	}
}

func stagesEqual(got []contractx.Stage, want ...contractx.Stage) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestHandleOrderStatusCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	resp, err := f.router.Handle(context.Background(), interaction("i-1", "s-1", "Where is my order O-12345?"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !strings.HasSuffix(resp.Text, "status: in transit, carrier: UPS, ETA: 2024-01-05") {
		t.Fatalf("unexpected reply: %q", resp.Text)
	}
	if resp.Text != "Here’s what I found for order O-12345: status: in transit, carrier: UPS, ETA: 2024-01-05" {
		t.Fatalf("unexpected reply: %q", resp.Text)
	}
	if resp.Outcome != contractx.OutcomeCompleted || resp.Reason != nil {
		t.Fatalf("unexpected outcome: %s (%v)", resp.Outcome, resp.Reason)
	}
	if resp.CallResult == nil || !resp.CallResult.OK {
		t.Fatalf("unexpected call result: %+v", resp.CallResult)
	}

	stages := f.events.Stages("i-1")
	if !stagesEqual(stages,
		contractx.StageReceived,
		contractx.StageIntentsEligible,
		contractx.StageIntentClassified,
		contractx.StagePlanCreated,
		contractx.StagePlanCommunicated,
		contractx.StagePolicyCheck,
		contractx.StageToolExecute,
		contractx.StageRespond,
	) {
		t.Fatalf("unexpected stages: %v", stages)
	}

	history := f.store.ForSession("s-1").History()
	if len(history) != 2 {
		t.Fatalf("expected user and agent messages, got %d", len(history))
	}
	if history[0].Role != contractx.RoleUser || history[1].Role != contractx.RoleAgent || history[1].Text != resp.Text {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestHandleSurvivesPanickingSink(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withEmitter(panickingEmitter{}))
	resp, err := f.router.Handle(context.Background(), interaction("i-1", "s-1", "Where is my order O-12345?"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Outcome != contractx.OutcomeCompleted ||
		resp.Text != "Here’s what I found for order O-12345: status: in transit, carrier: UPS, ETA: 2024-01-05" {
		t.Fatalf("unexpected reply: %+v", resp)
	}
	if got := len(f.store.ForSession("s-1").History()); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}
}

func TestHandlePreMessageStaysOutOfHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.router.Handle(context.Background(), interaction("i-1", "s-1", "order O-12345")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	var pre string
	for _, ev := range f.events.Events() {
		if ev.Stage == contractx.StagePlanCommunicated {
			pre, _ = ev.Payload["message"].(string)
		}
	}
	if pre != "I’ll check the status of order O-12345." {
		t.Fatalf("unexpected pre message: %q", pre)
	}
	for _, m := range f.store.ForSession("s-1").History() {
		if m.Text == pre {
			t.Fatal("pre message must not be appended to history")
		}
	}
}

func TestHandleNoIntentReturnsClarification(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withClassifier(noneClassifier()))
	resp, err := f.router.Handle(context.Background(), interaction("i-2", "s-2", "tell me a joke"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if resp.Text != "I didn’t recognize a supported request. For now I can check order status." {
		t.Fatalf("unexpected reply: %q", resp.Text)
	}
	if resp.Outcome != contractx.OutcomeNoIntent || !errors.Is(resp.Reason, contractx.ErrNoEligibleIntent) {
		t.Fatalf("unexpected outcome: %s (%v)", resp.Outcome, resp.Reason)
	}
	if resp.CallResult != nil {
		t.Fatalf("unexpected call result: %+v", resp.CallResult)
	}

	stages := f.events.Stages("i-2")
	if !stagesEqual(stages, contractx.StageReceived, contractx.StageIntentsEligible, contractx.StageIntentClassified) {
		t.Fatalf("unexpected stages: %v", stages)
	}
	for _, ev := range f.events.Events() {
		if steps, ok := ev.Payload["steps"].([]string); ok {
			for _, s := range steps {
				if s == "call" {
					t.Fatal("no call step may be emitted")
				}
			}
		}
	}
	if len(f.runner.calls) != 0 {
		t.Fatalf("runner must not be invoked, got %d calls", len(f.runner.calls))
	}
}

func TestClarificationFallsBackToIntentDescriptions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withClassifier(noneClassifier()), withConfig(func(c *Config) { c.Capability = "" }))
	resp, err := f.router.Handle(context.Background(), interaction("i-2", "s-2", "tell me a joke"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	want := "I didn’t recognize a supported request. For now I can check the delivery status of an existing order."
	if resp.Text != want {
		t.Fatalf("reply = %q, want %q", resp.Text, want)
	}
}

func TestHandleEmptyEligibleStillClassifies(t *testing.T) {
	t.Parallel()

	var called atomic.Bool
	var gotEligible int
	classifier := classifierFunc(func(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
		called.Store(true)
		gotEligible = len(eligible)
		return contractx.Classification{}, nil
	})
	f := newFixture(t, withClassifier(classifier))

	in := interaction("i-3", "s-3", "order O-1")
	in.Context[contractx.ContextChannel] = "voice"
	resp, err := f.router.Handle(context.Background(), in)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !called.Load() || gotEligible != 0 {
		t.Fatalf("classifier must run with an empty list (called=%v, eligible=%d)", called.Load(), gotEligible)
	}
	if resp.Outcome != contractx.OutcomeNoIntent {
		t.Fatalf("unexpected outcome: %s", resp.Outcome)
	}
}

func TestHandleOrderNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withClassifier(stubClassifier(map[string]string{"order_id": "O-99999"})))
	resp, err := f.router.Handle(context.Background(), interaction("i-4", "s-4", "Where is order O-99999?"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if resp.Text != "Here’s what I found for order O-99999: I couldn’t find that order." {
		t.Fatalf("unexpected reply: %q", resp.Text)
	}
	if resp.CallResult == nil || resp.CallResult.OK {
		t.Fatalf("expected failed call result, got %+v", resp.CallResult)
	}
	if resp.CallResult.Error != actionx.ErrOrderNotFound {
		t.Fatalf("unexpected error code: %q", resp.CallResult.Error)
	}
	if resp.Outcome != contractx.OutcomeNotFound || !errors.Is(resp.Reason, contractx.ErrActionLookupFailed) {
		t.Fatalf("unexpected outcome: %s (%v)", resp.Outcome, resp.Reason)
	}
}

func TestHandleAccumulatesParametersAcrossTurns(t *testing.T) {
	t.Parallel()

	turn := 0
	classifier := classifierFunc(func(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
		turn++
		intent := eligible[0]
		if turn == 1 {
			return contractx.Classification{Intent: &intent, Parameters: map[string]string{"customer_name": "Ann"}}, nil
		}
		return contractx.Classification{Intent: &intent, Parameters: map[string]string{"order_id": "O-12345"}}, nil
	})
	f := newFixture(t, withClassifier(classifier))

	first, err := f.router.Handle(context.Background(), interaction("i-5", "s-5", "I'm Ann, where is my order?"))
	if err != nil {
		t.Fatalf("first Handle() error = %v", err)
	}
	if first.Outcome != contractx.OutcomeAskUser || first.Text != plannerx.DefaultPrompts["order_id"] {
		t.Fatalf("unexpected first reply: %+v", first)
	}
	if got := f.store.ForSession("s-5").Waiting(); got != "order_id" {
		t.Fatalf("waiting = %q, want order_id", got)
	}
	if len(f.runner.calls) != 0 {
		t.Fatal("no call may run while a parameter is missing")
	}

	second, err := f.router.Handle(context.Background(), interaction("i-6", "s-5", "O-12345"))
	if err != nil {
		t.Fatalf("second Handle() error = %v", err)
	}
	if second.Outcome != contractx.OutcomeCompleted {
		t.Fatalf("unexpected second outcome: %s", second.Outcome)
	}

	sess := f.store.ForSession("s-5")
	if sess.Waiting() != "" {
		t.Fatalf("waiting flag must be cleared, got %q", sess.Waiting())
	}
	params := sess.Params()
	if params["customer_name"] != "Ann" || params["order_id"] != "O-12345" {
		t.Fatalf("merged params = %#v", params)
	}
	if len(f.runner.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(f.runner.calls))
	}
	call := f.runner.calls[0]
	if call.Params["customer_name"] != "Ann" || call.Params["order_id"] != "O-12345" {
		t.Fatalf("call params = %#v", call.Params)
	}

	history := sess.History()
	if len(history) != 4 || history[1].Metadata["type"] != "ask_user" || history[1].Metadata["param"] != "order_id" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestHandleAskUserEmitsRespond(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withClassifier(stubClassifier(nil)))
	if _, err := f.router.Handle(context.Background(), interaction("i-7", "s-7", "where is my package")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	stages := f.events.Stages("i-7")
	if !stagesEqual(stages,
		contractx.StageReceived,
		contractx.StageIntentsEligible,
		contractx.StageIntentClassified,
		contractx.StagePlanCreated,
		contractx.StageRespond,
	) {
		t.Fatalf("unexpected stages: %v", stages)
	}
	last := f.events.Events()[len(stages)-1]
	if last.Payload["waiting_for_param"] != "order_id" {
		t.Fatalf("unexpected respond payload: %#v", last.Payload)
	}
}

func TestHandlePolicyDenial(t *testing.T) {
	t.Parallel()

	f := newFixture(t, withPolicy(denyAll{}))
	resp, err := f.router.Handle(context.Background(), interaction("i-8", "s-8", "order O-12345"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Text != "Here’s what I found for order O-12345: This action isn’t allowed by policy." {
		t.Fatalf("unexpected reply: %q", resp.Text)
	}
	if resp.Outcome != contractx.OutcomeDenied || !errors.Is(resp.Reason, contractx.ErrActionDenied) {
		t.Fatalf("unexpected outcome: %s (%v)", resp.Outcome, resp.Reason)
	}
	if resp.CallResult != nil || len(f.runner.calls) != 0 {
		t.Fatal("denied call must not run")
	}
	for _, s := range f.events.Stages("i-8") {
		if s == contractx.StageToolExecute {
			t.Fatal("tool_execute must not be emitted after a denial")
		}
	}
}

func TestHandleUnknownAction(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.router.actions = &recordingRunner{ActionRunner: actionx.NewRunner()}

	resp, err := f.router.Handle(context.Background(), interaction("i-9", "s-9", "order O-12345"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Outcome != contractx.OutcomeUnknownAction || !errors.Is(resp.Reason, contractx.ErrActionNotFound) {
		t.Fatalf("unexpected outcome: %s (%v)", resp.Outcome, resp.Reason)
	}
	if !strings.HasSuffix(resp.Text, "I couldn’t complete that request.") {
		t.Fatalf("unexpected reply: %q", resp.Text)
	}
	if resp.CallResult == nil || resp.CallResult.Error != actionx.ErrUnknownTool {
		t.Fatalf("unexpected call result: %+v", resp.CallResult)
	}
}

func TestHandleCollaboratorFaultRollsBack(t *testing.T) {
	t.Parallel()

	boom := errors.New("classifier down")
	fail := false
	classifier := classifierFunc(func(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
		if fail {
			return contractx.Classification{}, boom
		}
		intent := eligible[0]
		return contractx.Classification{Intent: &intent, Parameters: map[string]string{"order_id": "O-12345"}}, nil
	})
	f := newFixture(t, withClassifier(classifier))

	if _, err := f.router.Handle(context.Background(), interaction("i-10", "s-10", "order O-12345")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	before := f.store.ForSession("s-10").Snapshot()

	fail = true
	_, err := f.router.Handle(context.Background(), interaction("i-11", "s-10", "and again"))
	if !errors.Is(err, contractx.ErrCollaboratorFault) || !errors.Is(err, boom) {
		t.Fatalf("Handle() error = %v, want collaborator fault wrapping cause", err)
	}

	after := f.store.ForSession("s-10").Snapshot()
	if len(after.History) != len(before.History) || after.Waiting != before.Waiting {
		t.Fatalf("session changed after fault: before=%+v after=%+v", before, after)
	}
	if after.History[len(after.History)-1].Text != before.History[len(before.History)-1].Text {
		t.Fatal("history tail changed after fault")
	}
}

func TestHandleRunnerFaultUndoesMerge(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.orders.err = errors.New("db unavailable")

	_, err := f.router.Handle(context.Background(), interaction("i-12", "s-12", "order O-12345"))
	if !errors.Is(err, contractx.ErrCollaboratorFault) {
		t.Fatalf("Handle() error = %v, want ErrCollaboratorFault", err)
	}
	sess := f.store.ForSession("s-12")
	if len(sess.History()) != 0 || len(sess.Params()) != 0 {
		t.Fatalf("partial turn leaked into session: history=%v params=%v", sess.History(), sess.Params())
	}
}

func TestHandleTimeoutIsFault(t *testing.T) {
	t.Parallel()

	blocking := classifierFunc(func(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
		<-ctx.Done()
		return contractx.Classification{}, ctx.Err()
	})
	f := newFixture(t, withClassifier(blocking), withConfig(func(c *Config) { c.TurnTimeout = 20 * time.Millisecond }))

	_, err := f.router.Handle(context.Background(), interaction("i-13", "s-13", "order O-1"))
	if !errors.Is(err, contractx.ErrCollaboratorFault) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Handle() error = %v, want fault wrapping deadline", err)
	}
	if len(f.store.ForSession("s-13").History()) != 0 {
		t.Fatal("timed out turn must leave no history")
	}
}

func TestHandleRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.router.Handle(context.Background(), interaction("i-14", "s-14", "   ")); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("empty text error = %v", err)
	}
	if _, err := f.router.Handle(context.Background(), contractx.Interaction{Text: "order"}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("missing session error = %v", err)
	}
	if len(f.events.Events()) != 0 {
		t.Fatal("rejected input must not emit events")
	}
}

func TestHandleFallsBackToInteractionID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.router.Handle(context.Background(), contractx.Interaction{ID: "solo", Text: "order O-12345"}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(f.store.ForSession("solo").History()) != 2 {
		t.Fatal("session should be keyed by interaction id")
	}
}

func TestHandleSerializesSameSession(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight atomic.Int32
	classifier := classifierFunc(func(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		intent := eligible[0]
		return contractx.Classification{Intent: &intent, Parameters: map[string]string{"order_id": "O-12345"}}, nil
	})
	f := newFixture(t, withClassifier(classifier))

	const turns = 20
	var wg sync.WaitGroup
	errs := make(chan error, turns)
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.router.Handle(context.Background(), interaction("i", "shared", "order O-12345")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Handle() error = %v", err)
	}

	if maxInFlight.Load() != 1 {
		t.Fatalf("turns overlapped on one session: max in flight = %d", maxInFlight.Load())
	}
	history := f.store.ForSession("shared").History()
	if len(history) != 2*turns {
		t.Fatalf("history length = %d, want %d", len(history), 2*turns)
	}
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != contractx.RoleUser || history[i+1].Role != contractx.RoleAgent {
			t.Fatalf("turns interleaved at %d: %v then %v", i, history[i].Role, history[i+1].Role)
		}
	}
}

func TestHandleRunsSessionsInParallel(t *testing.T) {
	t.Parallel()

	entered := make(chan string, 2)
	release := make(chan struct{})
	classifier := classifierFunc(func(ctx context.Context, in contractx.Interaction, eligible []contractx.Intent, history []contractx.Message) (contractx.Classification, error) {
		entered <- in.SessionID()
		select {
		case <-release:
		case <-ctx.Done():
			return contractx.Classification{}, ctx.Err()
		}
		return contractx.Classification{}, nil
	})
	f := newFixture(t, withClassifier(classifier))

	var wg sync.WaitGroup
	for _, s := range []string{"a", "b"} {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			_, _ = f.router.Handle(context.Background(), interaction("i-"+session, session, "hello"))
		}(s)
	}

	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-timeout:
			close(release)
			wg.Wait()
			t.Fatal("sessions did not run in parallel")
		}
	}
	close(release)
	wg.Wait()
}

func TestTelemetryTimestampsAreOrdered(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.router.Handle(context.Background(), interaction("i-15", "s-15", "order O-12345")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	events := f.events.Events()
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Fatalf("event %d (%s) precedes event %d", i, events[i].Stage, i-1)
		}
		if events[i].SessionID != "s-15" || events[i].InteractionID != "i-15" {
			t.Fatalf("unexpected ids on event %d: %+v", i, events[i])
		}
	}
}

func TestPolicyCheckPayloadIsRedacted(t *testing.T) {
	t.Parallel()

	registry, err := intentsx.Parse([]byte(`
intents:
  - id: order_status
    description: Check an order
    required_parameters: [order_id]
    action_name: check_order_status
    redaction:
      parameters: [order_id]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	f := newFixture(t)
	f.router.intents = registry

	if _, err := f.router.Handle(context.Background(), interaction("i-16", "s-16", "order O-12345")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	for _, ev := range f.events.Events() {
		if ev.Stage != contractx.StagePolicyCheck {
			continue
		}
		params, _ := ev.Payload["params"].(map[string]string)
		if params["order_id"] != telemetryx.Masked {
			t.Fatalf("order_id not masked: %#v", params)
		}
		return
	}
	t.Fatal("policy_check event missing")
}

func TestReset(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.router.Handle(context.Background(), interaction("i-17", "s-17", "order O-12345")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := f.router.Reset(context.Background(), "s-17"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	sess := f.store.ForSession("s-17")
	if len(sess.History()) != 0 || len(sess.Params()) != 0 || sess.Waiting() != "" {
		t.Fatal("session not cleared")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	full := Deps{
		Store:      sessionx.NewStore(),
		Intents:    &intentsx.Registry{},
		Classifier: noneClassifier(),
		Planner:    plannerx.RequireParameters(nil, nil),
		Policy:     policyx.AllowAll{},
		Actions:    actionx.NewRunner(),
	}
	if _, err := New(full, Config{}); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	breakers := []func(*Deps){
		func(d *Deps) { d.Store = nil },
		func(d *Deps) { d.Intents = nil },
		func(d *Deps) { d.Classifier = nil },
		func(d *Deps) { d.Planner = nil },
		func(d *Deps) { d.Policy = nil },
		func(d *Deps) { d.Actions = nil },
	}
	for i, br := range breakers {
		d := full
		br(&d)
		if _, err := New(d, Config{}); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestConfigPhrasesOverride(t *testing.T) {
	t.Parallel()

	p := Config{Capability: "track parcels", DeniedText: "Nope."}.phrases()
	if p.Clarification != "I didn’t recognize a supported request. For now I can track parcels." {
		t.Fatalf("unexpected clarification: %q", p.Clarification)
	}
	if p.Denied != "Nope." || p.NotFound != "I couldn’t find that order." {
		t.Fatalf("unexpected phrases: %+v", p)
	}
}
