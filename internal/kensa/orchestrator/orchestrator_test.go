package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bdobrica/Kensa/internal/kensa/llm"
	"github.com/bdobrica/Kensa/internal/kensa/memory"
	"github.com/bdobrica/Kensa/internal/kensa/router"
)

// scriptedProvider returns canned completions in order and records every
// prompt it saw.
type scriptedProvider struct {
	responses []string
	err       error
	calls     [][]llm.Message
}

func (p *scriptedProvider) Invoke(_ context.Context, msgs []llm.Message) (string, error) {
	p.calls = append(p.calls, msgs)
	if p.err != nil {
		return "", p.err
	}
	if len(p.responses) == 0 {
		return "", errors.New("scripted provider: out of responses")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

type fixedRetriever struct {
	hits  []memory.ScoredMemory
	err   error
	calls int
}

func (r *fixedRetriever) Rank(_ context.Context, _ int64, _ string, _ int, _ float64) ([]memory.ScoredMemory, error) {
	r.calls++
	return r.hits, r.err
}

type capturingRecorder struct {
	records []string
	err     error
}

func (r *capturingRecorder) Append(_ context.Context, _ int64, text string) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, text)
	return nil
}

type stubRunner struct {
	output  string
	lastSQL string
}

func (s *stubRunner) Run(_ context.Context, sqlText string, _ int) string {
	s.lastSQL = sqlText
	return s.output
}

func TestHandle_SQLAnalyticBranch(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"```sql\nSELECT suite, AVG(passed) FROM runs GROUP BY suite\n```",
		`{"pass_rate": 0.82}`,
		"Checkout passes 82% of the time.",
	}}
	retriever := &fixedRetriever{hits: []memory.ScoredMemory{{Score: 1.1, Text: "checkout suite is flaky"}}}
	recorder := &capturingRecorder{}
	runner := &stubRunner{output: "| suite | avg |\n| --- | --- |\n| checkout | 0.82 |"}

	o := New(router.New(router.Lexicon{}), retriever, recorder, provider, runner, nil)
	session := NewSession(7)

	res, err := o.Handle(context.Background(), session, "show me the top suites from runs")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if res.Answer != "Checkout passes 82% of the time." {
		t.Errorf("Answer = %q", res.Answer)
	}
	if res.SQL != "SELECT suite, AVG(passed) FROM runs GROUP BY suite" {
		t.Errorf("code fence not stripped: SQL = %q", res.SQL)
	}
	if runner.lastSQL != res.SQL {
		t.Errorf("runner received %q, result reports %q", runner.lastSQL, res.SQL)
	}
	if res.SQLResults != runner.output {
		t.Errorf("SQLResults = %q", res.SQLResults)
	}
	if res.Session.Metrics["pass_rate"] != 0.82 {
		t.Errorf("metric not folded: %v", res.Session.Metrics)
	}

	// The exchange lands in both memory subsystems.
	turns := res.Session.Memory.RecentTurns
	if len(turns) != 2 || turns[0].Role != memory.RoleUser || turns[1].Role != memory.RoleAssistant {
		t.Errorf("short-term window = %+v", turns)
	}
	if len(recorder.records) != 1 {
		t.Fatalf("expected 1 ledger record, got %d", len(recorder.records))
	}
	record := recorder.records[0]
	for _, part := range []string{"User: ", "SQL: ", "Result: ", "Assistant: "} {
		if !strings.Contains(record, part) {
			t.Errorf("composite record missing %q:\n%s", part, record)
		}
	}

	// Long-term hits reach the generation prompt.
	if retriever.calls != 1 {
		t.Errorf("retriever called %d times, want 1", retriever.calls)
	}
	found := false
	for _, msg := range provider.calls[0] {
		if strings.Contains(msg.Content, "checkout suite is flaky") {
			found = true
		}
	}
	if !found {
		t.Error("long-term hit absent from SQL generation prompt")
	}

	// Input session stays untouched.
	if len(session.Memory.RecentTurns) != 0 || len(session.Metrics) != 0 {
		t.Errorf("input session mutated: %+v", session)
	}
}

func TestHandle_PredictiveBranchSkipsSQL(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"Focus on the login suite next."}}
	recorder := &capturingRecorder{}
	runner := &stubRunner{output: "should never run"}

	o := New(router.New(router.Lexicon{}), &fixedRetriever{}, recorder, provider, runner, nil)

	res, err := o.Handle(context.Background(), NewSession(7), "suggest a strategy for next week")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if res.SQL != "" || res.SQLResults != "" {
		t.Errorf("predictive branch produced SQL: %+v", res)
	}
	if runner.lastSQL != "" {
		t.Errorf("runner invoked on predictive branch with %q", runner.lastSQL)
	}
	if len(provider.calls) != 1 {
		t.Errorf("expected a single LLM call, got %d", len(provider.calls))
	}
	if len(recorder.records) != 1 || strings.Contains(recorder.records[0], "SQL: ") {
		t.Errorf("ledger record = %v", recorder.records)
	}
}

func TestHandle_PlainQABranch(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"The pass rate is 82%."}}
	o := New(router.New(router.Lexicon{}), &fixedRetriever{}, &capturingRecorder{}, provider, &stubRunner{}, nil)

	session := NewSession(7)
	session.Metrics["pass_rate"] = 0.82

	res, err := o.Handle(context.Background(), session, "what is our pass rate")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if res.Answer != "The pass rate is 82%." {
		t.Errorf("Answer = %q", res.Answer)
	}

	// Known metrics reach the QA prompt.
	var userMsg string
	for _, msg := range provider.calls[0] {
		if msg.Role == llm.RoleUser {
			userMsg = msg.Content
		}
	}
	if !strings.Contains(userMsg, "pass_rate") {
		t.Errorf("metrics absent from QA prompt:\n%s", userMsg)
	}
}

func TestHandle_AnonymousSessionSkipsLongTermMemory(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"Hello."}}
	retriever := &fixedRetriever{err: errors.New("must not be called")}
	recorder := &capturingRecorder{err: errors.New("must not be called")}

	o := New(router.New(router.Lexicon{}), retriever, recorder, provider, &stubRunner{}, nil)

	res, err := o.Handle(context.Background(), NewSession(0), "what happened yesterday")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if retriever.calls != 0 {
		t.Errorf("retriever called for anonymous session")
	}
	// The short-term window still works.
	if len(res.Session.Memory.RecentTurns) != 2 {
		t.Errorf("short-term window = %+v", res.Session.Memory.RecentTurns)
	}
}

func TestHandle_ProviderFailurePropagates(t *testing.T) {
	wantErr := errors.New("upstream down")
	provider := &scriptedProvider{err: wantErr}
	recorder := &capturingRecorder{}

	o := New(router.New(router.Lexicon{}), &fixedRetriever{}, recorder, provider, &stubRunner{}, nil)

	_, err := o.Handle(context.Background(), NewSession(7), "what is going on")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Handle() error = %v, want wrapped %v", err, wantErr)
	}
	if len(recorder.records) != 0 {
		t.Errorf("failed turn committed to ledger: %v", recorder.records)
	}
}

func TestHandle_LedgerFailureIsFatal(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"An answer."}}
	recorder := &capturingRecorder{err: errors.New("disk full")}

	o := New(router.New(router.Lexicon{}), &fixedRetriever{}, recorder, provider, &stubRunner{}, nil)

	if _, err := o.Handle(context.Background(), NewSession(7), "what is going on"); err == nil {
		t.Fatal("expected ledger failure to fail the turn")
	}
}

func TestHandle_WindowEvictionAcrossTurns(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"a1", "a2", "a3", "a4"}}
	o := New(router.New(router.Lexicon{}), &fixedRetriever{}, &capturingRecorder{}, provider, &stubRunner{}, nil)

	session := NewSession(7)
	for _, q := range []string{"why one", "why two", "why three", "why four"} {
		res, err := o.Handle(context.Background(), session, q)
		if err != nil {
			t.Fatalf("Handle(%q) error: %v", q, err)
		}
		session = res.Session
	}

	turns := session.Memory.RecentTurns
	if len(turns) != memory.DefaultRecentTurnCap {
		t.Fatalf("window length = %d, want %d", len(turns), memory.DefaultRecentTurnCap)
	}
	if turns[0].Content != "why two" {
		t.Errorf("oldest retained turn = %q, want the second question", turns[0].Content)
	}
	if turns[5].Content != "a4" {
		t.Errorf("newest turn = %q, want the last answer", turns[5].Content)
	}
}
