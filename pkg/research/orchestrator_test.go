package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlanner struct {
	plan ResearchPlan
	err  error
}

func (p stubPlanner) Plan(ctx context.Context, topic string) (ResearchPlan, error) {
	return p.plan, p.err
}

type stubResearcher struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
	done     []string
	delay    func(query string) time.Duration
	fail     string
}

func (r *stubResearcher) Research(ctx context.Context, query string, facts *FactStore) (string, error) {
	n := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)
	for {
		p := atomic.LoadInt32(&r.peak)
		if n <= p || atomic.CompareAndSwapInt32(&r.peak, p, n) {
			break
		}
	}
	if r.delay != nil {
		time.Sleep(r.delay(query))
	}
	if query == r.fail {
		return "", fmt.Errorf("%w: search down", ErrUpstreamUnavailable)
	}
	facts.Append("fact from "+query, "")

	r.mu.Lock()
	r.done = append(r.done, query)
	r.mu.Unlock()
	return "summary of " + query, nil
}

type stubEditor struct {
	calls    int32
	research []string
	before   func() int
	seen     int
}

func (e *stubEditor) Edit(ctx context.Context, topic string, research []string) (ResearchReport, error) {
	atomic.AddInt32(&e.calls, 1)
	e.research = research
	if e.before != nil {
		e.seen = e.before()
	}
	body := words(1000)
	return ResearchReport{Title: topic, Outline: []string{"a"}, Report: body, Sources: []string{"s"}, WordCount: CountWords(body)}, nil
}

func threeQueryPlan() ResearchPlan {
	return ResearchPlan{
		Topic:         "topic",
		SearchQueries: []string{"q1", "q2", "q3"},
		FocusAreas:    []string{"f1", "f2", "f3"},
	}
}

func TestOrchestrator_EditorRunsOnceAfterAllResearch(t *testing.T) {
	researcher := &stubResearcher{delay: func(q string) time.Duration {
		// q1 finishes last so arrival order differs from plan order.
		if q == "q1" {
			return 30 * time.Millisecond
		}
		return time.Millisecond
	}}
	editor := &stubEditor{}
	editor.before = func() int {
		researcher.mu.Lock()
		defer researcher.mu.Unlock()
		return len(researcher.done)
	}
	o := NewOrchestrator(stubPlanner{plan: threeQueryPlan()}, researcher, editor, 3, logger.NewNopLogger())

	wf, _ := NewWorkflow("topic")
	facts := NewFactStore()
	require.NoError(t, o.Run(context.Background(), wf, facts))

	assert.Equal(t, int32(1), atomic.LoadInt32(&editor.calls))
	assert.Equal(t, 3, editor.seen, "editor saw every research result finished")
	assert.Equal(t, []string{"summary of q1", "summary of q2", "summary of q3"}, editor.research)
	assert.Equal(t, 3, facts.Len())

	snap := wf.Snapshot()
	assert.Equal(t, StateDone, snap.State)
	assert.Equal(t, threeQueryPlan(), *snap.Plan)
	assert.Equal(t, editor.research, snap.Summaries)
	require.NotNil(t, snap.Report)
}

func TestOrchestrator_RespectsConcurrencyLimit(t *testing.T) {
	plan := threeQueryPlan()
	plan.SearchQueries = []string{"q1", "q2", "q3", "q4", "q5"}
	researcher := &stubResearcher{delay: func(string) time.Duration { return 10 * time.Millisecond }}
	o := NewOrchestrator(stubPlanner{plan: plan}, researcher, &stubEditor{}, 2, logger.NewNopLogger())

	wf, _ := NewWorkflow("topic")
	require.NoError(t, o.Run(context.Background(), wf, NewFactStore()))
	assert.LessOrEqual(t, atomic.LoadInt32(&researcher.peak), int32(2))
}

func TestOrchestrator_PlannerFailure(t *testing.T) {
	researcher := &stubResearcher{}
	editor := &stubEditor{}
	planErr := fmt.Errorf("%w: bad plan", ErrSchemaViolation)
	o := NewOrchestrator(stubPlanner{err: planErr}, researcher, editor, 3, logger.NewNopLogger())

	wf, _ := NewWorkflow("topic")
	err := o.Run(context.Background(), wf, NewFactStore())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePlanning, stageErr.Stage)
	assert.ErrorIs(t, err, ErrSchemaViolation)
	assert.Equal(t, StateFailed, wf.State())
	assert.Empty(t, researcher.done)
	assert.Zero(t, atomic.LoadInt32(&editor.calls))
}

func TestOrchestrator_ResearchFailureKeepsFacts(t *testing.T) {
	researcher := &stubResearcher{
		fail: "q3",
		delay: func(q string) time.Duration {
			if q == "q3" {
				return 20 * time.Millisecond
			}
			return 0
		},
	}
	editor := &stubEditor{}
	o := NewOrchestrator(stubPlanner{plan: threeQueryPlan()}, researcher, editor, 3, logger.NewNopLogger())

	wf, _ := NewWorkflow("topic")
	facts := NewFactStore()
	err := o.Run(context.Background(), wf, facts)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageResearching, stageErr.Stage)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, StateFailed, wf.State())
	assert.Zero(t, atomic.LoadInt32(&editor.calls), "editor never runs without complete research")
	assert.Equal(t, 2, facts.Len(), "facts already saved survive the failure")
}

func TestOrchestrator_CancelledRunFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := newScriptedLLM().on(planSchema.Name, func(int, []llm.Message) (string, error) {
		return "", ctx.Err()
	})
	o := NewOrchestrator(
		NewTriagePlanner(fake, "", testPolicy()),
		&stubResearcher{},
		&stubEditor{},
		1,
		logger.NewNopLogger(),
	)

	wf, _ := NewWorkflow("topic")
	err := o.Run(ctx, wf, NewFactStore())
	assert.Error(t, err)
	assert.Equal(t, StateFailed, wf.State())
}

// End to end through the real stages with a scripted model.
func TestOrchestrator_AISafetyScenario(t *testing.T) {
	const topic = "Latest developments in AI safety"
	queries := []string{"AI safety research 2024", "AI alignment breakthroughs", "AI safety regulation"}

	fake := newScriptedLLM().
		on(planSchema.Name, func(int, []llm.Message) (string, error) {
			return planJSON(topic, queries...), nil
		}).
		on(researchSchema.Name, func(_ int, history []llm.Message) (string, error) {
			in := userInput(history)
			for _, q := range queries {
				if strings.Contains(in, "Search query: "+q+"\n") {
					return researchJSON("Findings on "+q+". "+words(40), q+" fact"), nil
				}
			}
			return "", errors.New("unexpected query")
		}).
		on(outlineSchema.Name, func(int, []llm.Message) (string, error) {
			return outlineJSON("Introduction", "Research", "Policy", "Conclusion"), nil
		}).
		on(reportSchema.Name, func(_ int, history []llm.Message) (string, error) {
			in := userInput(history)
			for _, q := range queries {
				assert.Contains(t, in, "Findings on "+q)
			}
			return reportJSON("AI Safety: State of the Field", "# AI Safety\n\n"+words(1100)), nil
		})

	searcher := &fakeSearch{}
	policy := testPolicy()
	o := NewOrchestrator(
		NewTriagePlanner(fake, "triage", policy),
		NewSearchResearcher(fake, searcher, "research", policy, logger.NewNopLogger()),
		NewReportEditor(fake, "editor", policy, DefaultMinReportWords),
		3,
		logger.NewNopLogger(),
	)

	wf, err := NewWorkflow(topic)
	require.NoError(t, err)
	var states []State
	var mu sync.Mutex
	wf.Observe(func(tr Transition) {
		mu.Lock()
		states = append(states, tr.To)
		mu.Unlock()
	})
	facts := NewFactStore()

	require.NoError(t, o.Run(context.Background(), wf, facts))

	snap := wf.Snapshot()
	require.NotNil(t, snap.Plan)
	assert.GreaterOrEqual(t, len(snap.Plan.SearchQueries), MinPlanItems)
	assert.LessOrEqual(t, len(snap.Plan.SearchQueries), MaxPlanItems)
	assert.GreaterOrEqual(t, len(snap.Plan.FocusAreas), MinPlanItems)
	assert.LessOrEqual(t, len(snap.Plan.FocusAreas), MaxPlanItems)

	assert.Len(t, snap.Summaries, len(queries))
	for _, s := range snap.Summaries {
		assert.Less(t, CountWords(s), MaxSummaryWords)
	}

	require.NotNil(t, snap.Report)
	assert.Equal(t, CountWords(snap.Report.Report), snap.Report.WordCount)
	assert.GreaterOrEqual(t, snap.Report.WordCount, DefaultMinReportWords)
	assert.Equal(t, 3, facts.Len())
	assert.ElementsMatch(t, queries, searcher.queries)

	assert.Equal(t, []State{StatePlanning, StateResearching, StateEditing, StateDone}, states)

	order := fake.callOrder()
	last := -1
	for i, name := range order {
		if name == researchSchema.Name {
			last = i
		}
	}
	assert.Equal(t, outlineSchema.Name, order[last+1], "editor starts only after every research call")
	assert.Equal(t, 1, fake.callCount(outlineSchema.Name))
	assert.Equal(t, 1, fake.callCount(reportSchema.Name))
}
