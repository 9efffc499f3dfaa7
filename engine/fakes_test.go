package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sicko7947/fraudflow"
	"github.com/sicko7947/fraudflow/store"
	"github.com/stretchr/testify/require"
)

// fakeGenerator returns scripted SQL, one entry per call. The last entry
// repeats once the script runs out.
type fakeGenerator struct {
	mu      sync.Mutex
	script  []generated
	prompts []string
}

type generated struct {
	sql string
	err error
}

func (g *fakeGenerator) GenerateSQL(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prompts = append(g.prompts, prompt)
	if len(g.script) == 0 {
		return "SELECT * FROM claims LIMIT 20", nil
	}
	next := g.script[0]
	if len(g.script) > 1 {
		g.script = g.script[1:]
	}
	return next.sql, next.err
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// fakeCompleter records every call and answers from a script, falling back
// to a fixed combined query
type fakeCompleter struct {
	mu     sync.Mutex
	script []generated
	calls  []completion
}

type completion struct {
	system string
	prompt string
}

func (c *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, completion{system: system, prompt: prompt})
	if len(c.script) == 0 {
		return "SELECT claim_id FROM claims LIMIT 50", nil
	}
	next := c.script[0]
	if len(c.script) > 1 {
		c.script = c.script[1:]
	}
	return next.sql, next.err
}

func (c *fakeCompleter) combineCalls() []completion {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []completion
	for _, call := range c.calls {
		if call.system == combinationSystemPrompt {
			out = append(out, call)
		}
	}
	return out
}

// fakeExecutor succeeds unless runFunc says otherwise
type fakeExecutor struct {
	mu        sync.Mutex
	runFunc   func(sql string, rowLimit int) (*fraudflow.QueryResult, error)
	upsertErr error
	linkErr   error
	ran       []string
	tools     []fraudflow.ToolRecord
	links     []string
}

func (x *fakeExecutor) Run(ctx context.Context, sql string, rowLimit int) (*fraudflow.QueryResult, error) {
	x.mu.Lock()
	x.ran = append(x.ran, sql)
	fn := x.runFunc
	x.mu.Unlock()

	if fn != nil {
		return fn(sql, rowLimit)
	}
	return &fraudflow.QueryResult{
		Columns: []string{"claim_id", "amount"},
		Rows:    [][]any{{"C1", 120.5}, {"C2", 99.0}},
	}, nil
}

func (x *fakeExecutor) UpsertTool(ctx context.Context, tool fraudflow.ToolRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tools = append(x.tools, tool)
	return x.upsertErr
}

func (x *fakeExecutor) LinkPatternTool(ctx context.Context, patternID, toolID, patternsTable string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.links = append(x.links, patternID+"->"+toolID)
	return x.linkErr
}

// fakeReviewer answers from per-port queues and approves once a queue is
// empty. The func fields take precedence when set.
type fakeReviewer struct {
	mu sync.Mutex

	sqlReviews     []fraudflow.SQLReview
	execDecisions  []fraudflow.Decision
	finalDecisions []fraudflow.Decision
	feedback       []string

	sqlFunc func(ctx context.Context, view fraudflow.ReviewView) (fraudflow.SQLReview, error)

	views       []fraudflow.ReviewView
	rethinkSeen int
}

func (r *fakeReviewer) record(view fraudflow.ReviewView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, view)
}

func (r *fakeReviewer) ReviewSQL(ctx context.Context, view fraudflow.ReviewView) (fraudflow.SQLReview, error) {
	r.record(view)
	if r.sqlFunc != nil {
		return r.sqlFunc(ctx, view)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sqlReviews) == 0 {
		return fraudflow.SQLReview{Decision: fraudflow.DecisionApproved}, nil
	}
	next := r.sqlReviews[0]
	r.sqlReviews = r.sqlReviews[1:]
	return next, nil
}

func (r *fakeReviewer) ReviewExecution(ctx context.Context, view fraudflow.ReviewView) (fraudflow.Decision, error) {
	r.record(view)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.execDecisions) == 0 {
		return fraudflow.DecisionApproved, nil
	}
	next := r.execDecisions[0]
	r.execDecisions = r.execDecisions[1:]
	return next, nil
}

func (r *fakeReviewer) ReviewFinal(ctx context.Context, view fraudflow.ReviewView) (fraudflow.Decision, error) {
	r.record(view)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.finalDecisions) == 0 {
		return fraudflow.DecisionApproved, nil
	}
	next := r.finalDecisions[0]
	r.finalDecisions = r.finalDecisions[1:]
	return next, nil
}

func (r *fakeReviewer) Rethink(ctx context.Context, view fraudflow.ReviewView) (string, error) {
	r.record(view)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rethinkSeen++
	if len(r.feedback) == 0 {
		return "", nil
	}
	next := r.feedback[0]
	r.feedback = r.feedback[1:]
	return next, nil
}

// failingStore wraps a memory store and fails step writes
type failingStore struct {
	*store.MemoryStore
	appendErr error
}

func (s *failingStore) AppendStep(ctx context.Context, rec fraudflow.StepRecord) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.MemoryStore.AppendStep(ctx, rec)
}

type testHarness struct {
	engine    *Engine
	generator *fakeGenerator
	completer *fakeCompleter
	executor  *fakeExecutor
	records   *store.MemoryStore
	reviewer  *fakeReviewer
}

func createTestEngine(t *testing.T, opts ...EngineOption) *testHarness {
	t.Helper()

	h := &testHarness{
		generator: &fakeGenerator{},
		completer: &fakeCompleter{},
		executor:  &fakeExecutor{},
		records:   store.NewMemoryStore(),
		reviewer:  &fakeReviewer{},
	}
	h.engine = h.build(t, opts...)
	return h
}

// build (re)creates the engine over the harness fakes
func (h *testHarness) build(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()

	base := []EngineOption{
		WithLogger(zerolog.Nop()),
		WithRetryDelay(time.Millisecond),
	}
	eng, err := NewEngine(Ports{
		Generator: h.generator,
		Completer: h.completer,
		Executor:  h.executor,
		Records:   h.records,
		Reviewer:  h.reviewer,
	}, append(base, opts...)...)
	require.NoError(t, err)
	return eng
}

func testPattern(steps ...string) fraudflow.Pattern {
	return fraudflow.Pattern{
		ID:          "FRAUD-001",
		Name:        "Duplicate Billing",
		Description: "Claims billed twice for the same service",
		Steps:       steps,
	}
}

var errBoom = errors.New("boom")

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
