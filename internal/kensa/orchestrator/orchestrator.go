// Package orchestrator drives one conversation turn end to end: intent
// classification, context assembly from long- and short-term memory, the
// branch-specific LLM and SQL calls, metric folding, and the final commit
// of the exchange back into both memory subsystems.
//
// Each turn is a single pass through a fixed state machine:
//
//	Start → ContextAssembly → {Predictive | SQL | PlainQA} → MemoryCommit → Done
//
// There are no retries and no backtracking between branches. LLM failures
// propagate and terminate the turn; SQL failures arrive as SQL_ERROR text
// from the runner and flow into the explanation step as data.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bdobrica/Kensa/internal/kensa/llm"
	"github.com/bdobrica/Kensa/internal/kensa/memory"
	"github.com/bdobrica/Kensa/internal/kensa/router"
)

// Retrieval and windowing defaults for a turn.
const (
	// defaultTopK is the number of long-term hits injected per turn.
	defaultTopK = 5
	// defaultMinScore is the lexical eligibility threshold for hits.
	defaultMinScore = 0.15
	// defaultRowLimit caps SQL result rows per turn.
	defaultRowLimit = 200
)

// Retriever ranks long-term memories for a query. *memory.Ranker satisfies
// this; tests substitute fixtures.
type Retriever interface {
	Rank(ctx context.Context, ownerID int64, query string, k int, minScore float64) ([]memory.ScoredMemory, error)
}

// Recorder appends exchanges to the long-term ledger. *memory.Ledger
// satisfies this.
type Recorder interface {
	Append(ctx context.Context, ownerID int64, text string) error
}

// SQLRunner executes read-only SQL, returning results or SQL_ERROR text.
// *sqlrunner.Runner satisfies this.
type SQLRunner interface {
	Run(ctx context.Context, sqlText string, rowLimit int) string
}

// Result is the outcome of one turn. SQL and SQLResults are empty unless
// the turn took the SQL-analytic branch.
type Result struct {
	Answer     string
	SQL        string
	SQLResults string
	Session    Session
}

// Orchestrator wires the per-turn state machine to its collaborators.
type Orchestrator struct {
	router    *router.Router
	retriever Retriever
	recorder  Recorder
	provider  llm.Provider
	runner    SQLRunner
	logger    *slog.Logger

	topK     int
	minScore float64
	rowLimit int
	turnCap  int
}

// Option adjusts orchestrator defaults.
type Option func(*Orchestrator)

// WithTurnCap overrides the short-term window bound (default 6).
func WithTurnCap(cap int) Option {
	return func(o *Orchestrator) { o.turnCap = cap }
}

// WithRetrieval overrides the long-term retrieval parameters
// (default k=5, minScore=0.15).
func WithRetrieval(topK int, minScore float64) Option {
	return func(o *Orchestrator) {
		o.topK = topK
		o.minScore = minScore
	}
}

// New creates an Orchestrator. retriever and recorder may be nil only when
// every session is anonymous; provider and runner are required. If logger
// is nil, the default slog logger is used.
func New(rt *router.Router, retriever Retriever, recorder Recorder, provider llm.Provider, runner SQLRunner, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		router:    rt,
		retriever: retriever,
		recorder:  recorder,
		provider:  provider,
		runner:    runner,
		logger:    logger,
		topK:      defaultTopK,
		minScore:  defaultMinScore,
		rowLimit:  defaultRowLimit,
		turnCap:   memory.DefaultRecentTurnCap,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle runs one query through the state machine and returns the answer
// together with the updated session. The input session is never mutated.
func (o *Orchestrator) Handle(ctx context.Context, session Session, query string) (Result, error) {
	intent := o.router.Classify(query)
	o.logger.Debug("orchestrator: classified query",
		"session_id", session.ID,
		"intent", string(intent),
	)

	contextMsgs, err := o.assembleContext(ctx, session, query)
	if err != nil {
		return Result{}, err
	}

	switch intent {
	case router.IntentPredictive:
		return o.handlePredictive(ctx, session, query, contextMsgs)
	case router.IntentSQLAnalytic:
		return o.handleSQLAnalytic(ctx, session, query, contextMsgs)
	default:
		return o.handlePlainQA(ctx, session, query, contextMsgs)
	}
}

// assembleContext gathers long-term hits (for identified users) and the
// short-term window into the ordered context block.
func (o *Orchestrator) assembleContext(ctx context.Context, session Session, query string) ([]llm.Message, error) {
	var hits []memory.ScoredMemory
	if session.UserID != 0 && o.retriever != nil {
		var err error
		hits, err = o.retriever.Rank(ctx, session.UserID, query, o.topK, o.minScore)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: long-term retrieval: %w", err)
		}
	}
	return memory.BuildContext(hits, session.Memory), nil
}

// handlePredictive produces strategy recommendations. No SQL runs in this
// branch; the reply is the answer verbatim.
func (o *Orchestrator) handlePredictive(ctx context.Context, session Session, query string, contextMsgs []llm.Message) (Result, error) {
	msgs := promptWith(llm.PredictiveSystemPrompt, contextMsgs,
		fmt.Sprintf("User question:\n%s\n\nKnown metrics:\n%s", query, formatMetrics(session.Metrics)))

	answer, err := o.provider.Invoke(ctx, msgs)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: predictive call: %w", err)
	}

	session, err = o.commit(ctx, session, query, answer, "", "")
	if err != nil {
		return Result{}, err
	}
	return Result{Answer: answer, Session: session}, nil
}

// handleSQLAnalytic generates a SELECT, executes it, extracts metrics
// best-effort, and explains the outcome. SQL failures are data here: the
// runner's SQL_ERROR payload goes to the explanation call unchanged.
func (o *Orchestrator) handleSQLAnalytic(ctx context.Context, session Session, query string, contextMsgs []llm.Message) (Result, error) {
	genMsgs := promptWith(llm.SQLGenSystemPrompt, contextMsgs,
		fmt.Sprintf("User question:\n%s\n\nReturn ONLY a SELECT SQL query.", query))
	sqlText, err := o.provider.Invoke(ctx, genMsgs)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: sql generation call: %w", err)
	}
	sqlText = stripCodeFence(sqlText)

	sqlResults := o.runner.Run(ctx, sqlText, o.rowLimit)

	metricMsgs := []llm.Message{
		llm.System(llm.MetricExtractionPrompt),
		llm.User("SQL results (markdown):\n" + sqlResults),
	}
	metricText, err := o.provider.Invoke(ctx, metricMsgs)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: metric extraction call: %w", err)
	}
	metrics := foldMetrics(session.Metrics, metricText)
	session.Metrics = metrics

	qaMsgs := promptWith(llm.QASystemPrompt, contextMsgs, fmt.Sprintf(
		"User question:\n%s\n\nSQL executed:\n%s\n\nSQL results:\n%s\n\nKnown structured metrics:\n%s",
		query, sqlText, sqlResults, formatMetrics(metrics)))
	answer, err := o.provider.Invoke(ctx, qaMsgs)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: explanation call: %w", err)
	}

	session, err = o.commit(ctx, session, query, answer, sqlText, sqlResults)
	if err != nil {
		return Result{}, err
	}
	return Result{Answer: answer, SQL: sqlText, SQLResults: sqlResults, Session: session}, nil
}

// handlePlainQA answers directly from context and known metrics.
func (o *Orchestrator) handlePlainQA(ctx context.Context, session Session, query string, contextMsgs []llm.Message) (Result, error) {
	msgs := promptWith(llm.QASystemPrompt, contextMsgs,
		fmt.Sprintf("User question:\n%s\n\nKnown structured metrics:\n%s", query, formatMetrics(session.Metrics)))

	answer, err := o.provider.Invoke(ctx, msgs)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: qa call: %w", err)
	}

	session, err = o.commit(ctx, session, query, answer, "", "")
	if err != nil {
		return Result{}, err
	}
	return Result{Answer: answer, Session: session}, nil
}

// commit writes the completed exchange into both memory subsystems and
// returns the updated session value. Ledger writes are skipped for
// anonymous sessions; ledger failures are fatal for the turn (the answer
// exists but the exchange would be lost silently otherwise).
func (o *Orchestrator) commit(ctx context.Context, session Session, query, answer, sqlText, sqlResults string) (Session, error) {
	session.Memory = memory.AppendTurn(session.Memory, query, answer, o.turnCap)
	session.Metrics = cloneMetrics(session.Metrics)

	if session.UserID != 0 && o.recorder != nil {
		record := compositeRecord(query, answer, sqlText, sqlResults)
		if err := o.recorder.Append(ctx, session.UserID, record); err != nil {
			return Session{}, fmt.Errorf("orchestrator: commit to ledger: %w", err)
		}
	}
	return session, nil
}

// compositeRecord renders the exchange as a single ledger entry, including
// the SQL and its results when the turn executed any.
func compositeRecord(query, answer, sqlText, sqlResults string) string {
	if sqlText != "" {
		return fmt.Sprintf("User: %s\nSQL: %s\nResult: %s\nAssistant: %s",
			query, sqlText, sqlResults, answer)
	}
	return fmt.Sprintf("User: %s\nAssistant: %s", query, answer)
}

// promptWith builds [system, context..., user] message sequences.
func promptWith(systemPrompt string, contextMsgs []llm.Message, userContent string) []llm.Message {
	msgs := make([]llm.Message, 0, len(contextMsgs)+2)
	msgs = append(msgs, llm.System(systemPrompt))
	msgs = append(msgs, contextMsgs...)
	msgs = append(msgs, llm.User(userContent))
	return msgs
}

// formatMetrics renders the metrics map as compact JSON with sorted keys,
// or "(none)" when empty, for inclusion in prompts.
func formatMetrics(metrics map[string]float64) string {
	if len(metrics) == 0 {
		return "(none)"
	}
	data, err := json.Marshal(metrics)
	if err != nil {
		return "(none)"
	}
	return string(data)
}
