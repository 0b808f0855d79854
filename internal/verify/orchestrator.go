package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"verdict/internal/chain"
	"verdict/internal/config"
	"verdict/internal/explain"
	"verdict/internal/gateway"
	"verdict/internal/intent"
	"verdict/internal/logging"
	"verdict/internal/parser"
	"verdict/internal/payload"
	"verdict/internal/store"
)

var (
	// ErrEmptyIntent rejects blank submissions before any model call.
	ErrEmptyIntent = errors.New("intent is empty")

	// ErrWrongStep means the requested operation does not apply to the
	// session's current step.
	ErrWrongStep = errors.New("operation not valid in current step")

	// ErrNotReviewed means Confirm was called before Review.
	ErrNotReviewed = errors.New("session has not been reviewed")

	// ErrVerificationBlocked means the explanation sub-loop exhausted its
	// bound; the session cannot be confirmed and must be reset.
	ErrVerificationBlocked = errors.New("verification failed, session must be reset")

	// ErrResetNeedsConfirm asks the caller to acknowledge that resetting
	// discards an in-progress session.
	ErrResetNeedsConfirm = errors.New("reset discards session progress, confirmation required")

	// ErrExecutionBlocked means the safety gate classified the intent as
	// high risk. The submission is rejected outright.
	ErrExecutionBlocked = errors.New("execution blocked due to unresolved safety risk")
)

// ReviewResult is what the confirmation screen renders.
type ReviewResult struct {
	Explanation *parser.ExplanationReport
	Summary     string
	Risks       []string
	// NeedsSafetyAnswer is set when the explanation came back incomplete
	// and the fixed safety question must be answered before review can
	// complete.
	NeedsSafetyAnswer bool
	SafetyQuestion    string
}

// Orchestrator drives a verification session through the state machine.
// It is the only writer of the session aggregate. Methods are safe for
// concurrent use, though the flow itself is a single conversation.
type Orchestrator struct {
	mu sync.Mutex

	gate      *intent.SafetyGate
	interp    *intent.Interpreter
	engine    *explain.Engine
	generator *payload.Generator
	analyzer  *payload.RiskAnalyzer
	submitter *chain.Submitter
	snapshots *store.SnapshotStore

	maxClarificationRounds int

	session      *Session
	gateState    parser.SafetyState
	loop         *intent.ClarificationLoop
	safetyLoop   *explain.SafetyLoop
	pending      *payload.ExecutionPayload
	receipt      *chain.Receipt
	conversation []ConversationEntry
}

// NewOrchestrator wires a fresh session. The snapshot store may be nil, in
// which case nothing is persisted.
func NewOrchestrator(cfg *config.Config, client gateway.Client, snapshots *store.SnapshotStore) *Orchestrator {
	return &Orchestrator{
		gate:                   intent.NewSafetyGate(client),
		interp:                 intent.NewInterpreter(client),
		engine:                 explain.NewEngineWithRounds(client, cfg.Verification.MaxExplanationRounds),
		generator:              payload.NewGenerator(client),
		analyzer:               payload.NewRiskAnalyzerWithLimit(client, cfg.Verification.MaxRisks),
		submitter:              chain.NewSubmitter(),
		snapshots:              snapshots,
		maxClarificationRounds: cfg.Verification.MaxClarificationRounds,
		session:                newSession(),
	}
}

// SetSubmitter replaces the chain submitter, for tests.
func (o *Orchestrator) SetSubmitter(s *chain.Submitter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitter = s
}

// Submit enters the flow with a raw intent. Depending on interpretation
// the session moves to Clarify or straight to ConfirmIntent.
func (o *Orchestrator) Submit(ctx context.Context, userIntent string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session.CurrentStep != StepCaptureIntent {
		return fmt.Errorf("%w: submit in %s", ErrWrongStep, o.session.CurrentStep)
	}
	userIntent = strings.TrimSpace(userIntent)
	if userIntent == "" {
		return ErrEmptyIntent
	}

	logging.Session("Intent submitted: %q", userIntent)

	// Safety pre-screen. Only a high-risk classification stops the flow;
	// the clarifying states are recorded and handled by the interpreter's
	// own clarification loop.
	decision := o.gate.Screen(ctx, userIntent)
	o.gateState = decision.State
	if decision.State == parser.StateExecutionBlocked {
		o.persist()
		logging.Session("Safety gate blocked submission")
		return ErrExecutionBlocked
	}

	result, err := o.interp.Interpret(ctx, userIntent)
	if err != nil {
		return err
	}

	o.session.OriginalIntent = userIntent
	o.record("user", userIntent)

	if result.NeedsClarification {
		o.loop = intent.NewClarificationLoop(o.interp, userIntent, result, o.maxClarificationRounds)
		o.session.CurrentStep = StepClarify
		o.record("assistant", result.Question)
		logging.Session("Clarification required: %q", result.Question)
	} else {
		o.session.InterpretedIntent = result.Interpretation
		o.session.CurrentStep = StepConfirmIntent
		logging.Session("Intent interpreted without clarification")
	}
	o.persist()
	return nil
}

// Question returns the open clarification question, or "" when the session
// is not awaiting one.
func (o *Orchestrator) Question() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loop == nil || o.session.CurrentStep != StepClarify {
		return ""
	}
	return o.loop.Question()
}

// CurrentReading returns the interpreter's partial reading shown alongside
// the clarification question.
func (o *Orchestrator) CurrentReading() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loop == nil {
		return ""
	}
	return o.loop.CurrentReading()
}

// Clarify consumes one clarification answer. When the interpreter resolves,
// the session moves to ConfirmIntent with the full-history interpretation.
func (o *Orchestrator) Clarify(ctx context.Context, answer string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session.CurrentStep != StepClarify || o.loop == nil {
		return fmt.Errorf("%w: clarify in %s", ErrWrongStep, o.session.CurrentStep)
	}

	o.record("user", answer)
	if err := o.loop.Answer(ctx, answer); err != nil {
		if errors.Is(err, intent.ErrRoundsExhausted) {
			o.session.ClarificationHistory = o.loop.History()
			o.persist()
		}
		return err
	}

	o.session.ClarificationHistory = o.loop.History()
	if o.loop.Resolved() {
		o.session.InterpretedIntent = o.loop.Interpretation()
		o.session.CurrentStep = StepConfirmIntent
		logging.Session("Clarification resolved after %d round(s)", len(o.session.ClarificationHistory))
	} else {
		o.record("assistant", o.loop.Question())
	}
	o.persist()
	return nil
}

// Review builds the confirmation screen. A complete explanation triggers
// the concurrent summary, payload and risk calls; an incomplete one opens
// the safety sub-loop instead. The session is mutated only after all
// concurrent calls have joined.
func (o *Orchestrator) Review(ctx context.Context) (*ReviewResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session.CurrentStep != StepConfirmIntent {
		return nil, fmt.Errorf("%w: review in %s", ErrWrongStep, o.session.CurrentStep)
	}
	if o.session.VerificationFailed {
		return nil, ErrVerificationBlocked
	}

	report := o.session.Explanation
	if report == nil || report.Incomplete {
		var err error
		report, err = o.engine.Explain(ctx, o.session.InterpretedIntent)
		if err != nil {
			return nil, err
		}
	}

	if report.Incomplete {
		if o.safetyLoop == nil {
			o.safetyLoop = explain.NewSafetyLoop(o.engine, o.session.InterpretedIntent, report)
		}
		question := o.safetyLoop.Question()
		o.record("assistant", question)
		o.persist()
		return &ReviewResult{
			Explanation:       report,
			NeedsSafetyAnswer: true,
			SafetyQuestion:    question,
		}, nil
	}

	finalIntent := o.session.InterpretedIntent
	var (
		summary string
		p       *payload.ExecutionPayload
		risks   []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary = o.engine.Summarize(gctx, finalIntent)
		return nil
	})
	g.Go(func() error {
		p = o.generator.Generate(gctx, finalIntent)
		return nil
	})
	g.Go(func() error {
		risks = o.analyzer.Analyze(gctx, finalIntent)
		return nil
	})
	// Each call degrades internally, so the join cannot fail; Wait is kept
	// for the context plumbing.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.session.Explanation = report
	o.session.Summary = summary
	o.session.Risks = risks
	o.pending = p
	o.persist()
	logging.Session("Review complete, awaiting confirmation")
	return &ReviewResult{Explanation: report, Summary: summary, Risks: risks}, nil
}

// SafetyQuestion returns the open fixed safety question, or "".
func (o *Orchestrator) SafetyQuestion() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.safetyLoop == nil || o.safetyLoop.Done() {
		return ""
	}
	return o.safetyLoop.Question()
}

// AnswerSafety consumes one safety answer. Exhausting the sub-loop bound
// fails verification permanently; the session then only accepts Reset.
func (o *Orchestrator) AnswerSafety(ctx context.Context, answer string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.safetyLoop == nil {
		return fmt.Errorf("%w: no safety question pending", ErrWrongStep)
	}

	o.record("user", answer)
	report, err := o.safetyLoop.Answer(ctx, answer)
	if errors.Is(err, explain.ErrVerificationFailed) {
		o.session.VerificationFailed = true
		o.session.Explanation = report
		o.persist()
		logging.Session("Verification failed, session blocked")
		return ErrVerificationBlocked
	}
	if err != nil {
		return err
	}

	if o.safetyLoop.Done() {
		o.session.InterpretedIntent = o.safetyLoop.FinalIntent()
		o.session.Explanation = report
		o.safetyLoop = nil
		logging.Session("Explanation completed through safety clarification")
	}
	o.persist()
	return nil
}

// Confirm records the user's explicit approval and freezes the execution
// payload. Only a reviewed, unblocked session in ConfirmIntent can be
// confirmed; the payload becomes visible to consumers from this point on.
func (o *Orchestrator) Confirm(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session.CurrentStep != StepConfirmIntent {
		return fmt.Errorf("%w: confirm in %s", ErrWrongStep, o.session.CurrentStep)
	}
	if o.session.VerificationFailed {
		return ErrVerificationBlocked
	}
	if o.pending == nil {
		return ErrNotReviewed
	}

	o.session.IntentConfirmed = true
	o.session.ExecutionPayload = o.pending
	o.session.CurrentStep = StepExecute
	o.persist()
	logging.Session("Intent confirmed, payload frozen")
	return nil
}

// Execute submits the confirmed payload to the chain simulator.
func (o *Orchestrator) Execute(ctx context.Context) (*chain.Receipt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session.CurrentStep != StepExecute || !o.session.IntentConfirmed {
		return nil, fmt.Errorf("%w: execute in %s", ErrWrongStep, o.session.CurrentStep)
	}

	receipt, err := o.submitter.Execute(ctx, o.session.ExecutionPayload)
	if err != nil {
		return nil, err
	}
	o.receipt = receipt
	o.persist()
	return receipt, nil
}

// Reset discards the session. An in-progress session requires force; a
// fresh or finished one resets unconditionally.
func (o *Orchestrator) Reset(force bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	inProgress := o.session.OriginalIntent != "" && o.receipt == nil
	if inProgress && !force {
		return ErrResetNeedsConfirm
	}

	o.session = newSession()
	o.gateState = ""
	o.loop = nil
	o.safetyLoop = nil
	o.pending = nil
	o.receipt = nil
	o.conversation = nil
	if o.snapshots != nil {
		if err := o.snapshots.Reset(); err != nil {
			logging.Get(logging.CategorySession).Warn("Failed to clear snapshots: %v", err)
		}
	}
	logging.Session("Session reset")
	return nil
}

// ====================================================================
// Read-only consumer surface
// ====================================================================

// Session returns a copy of the aggregate for display.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return *o.session
}

// Step returns the current step.
func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.CurrentStep
}

// Explanation returns the latest explanation report, nil until one exists.
func (o *Orchestrator) Explanation() *parser.ExplanationReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Explanation
}

// CurrentIntent returns the interpreted intent, falling back to the raw
// submission before interpretation completes.
func (o *Orchestrator) CurrentIntent() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.InterpretedIntent != "" {
		return o.session.InterpretedIntent
	}
	return o.session.OriginalIntent
}

// Payload returns the execution payload. It stays nil until the session is
// confirmed.
func (o *Orchestrator) Payload() *payload.ExecutionPayload {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.ExecutionPayload
}

// Export packages the explanation for external consumers.
func (o *Orchestrator) Export() *ExplanationExport {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.Explanation == nil {
		return nil
	}
	return &ExplanationExport{
		SessionID:   o.session.SessionID,
		Intent:      o.session.InterpretedIntent,
		Explanation: o.session.Explanation,
		Risks:       o.session.Risks,
		Timestamp:   time.Now().UTC(),
	}
}

// ====================================================================
// Persistence
// ====================================================================

func (o *Orchestrator) record(role, content string) {
	o.conversation = append(o.conversation, ConversationEntry{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// persist snapshots the session, best-effort. Callers hold the lock.
func (o *Orchestrator) persist() {
	if o.snapshots == nil {
		return
	}
	if err := o.snapshots.Save(store.KeySessionState, o.session); err != nil {
		logging.Get(logging.CategorySession).Warn("Failed to persist session: %v", err)
	}
	state := assistantState{GateState: o.gateState}
	if o.safetyLoop != nil {
		state.Attempts = o.safetyLoop.Attempts()
		state.History = o.safetyLoop.History()
		state.Failed = o.safetyLoop.Failed()
	}
	if err := o.snapshots.Save(store.KeyAssistantState, state); err != nil {
		logging.Get(logging.CategorySession).Warn("Failed to persist assistant state: %v", err)
	}
	if err := o.snapshots.Save(store.KeyConversationHistory, o.conversation); err != nil {
		logging.Get(logging.CategorySession).Warn("Failed to persist conversation: %v", err)
	}
}

// LoadLastSession reads the most recent persisted session snapshot for
// display. A missing or corrupt snapshot returns nil rather than an error.
func LoadLastSession(snapshots *store.SnapshotStore) *Session {
	if snapshots == nil {
		return nil
	}
	var s Session
	if err := snapshots.Load(store.KeySessionState, &s); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.Get(logging.CategorySession).Warn("Failed to load session snapshot: %v", err)
		}
		return nil
	}
	return &s
}
