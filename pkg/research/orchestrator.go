package research

import (
	"context"
	"fmt"

	"research-agent-be/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Orchestrator routes a workflow through planner, researchers and editor.
// All research finishes before the editor runs, and the editor runs once.
type Orchestrator struct {
	planner     Planner
	researcher  Researcher
	editor      Editor
	concurrency int
	logger      logger.ILogger
	tracer      trace.Tracer
}

func NewOrchestrator(planner Planner, researcher Researcher, editor Editor, concurrency int, log logger.ILogger) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		planner:     planner,
		researcher:  researcher,
		editor:      editor,
		concurrency: concurrency,
		logger:      log,
		tracer:      otel.Tracer("research-agent-be/pkg/research"),
	}
}

// Run drives wf to Done or Failed. Facts found along the way go to facts.
func (o *Orchestrator) Run(ctx context.Context, wf *Workflow, facts *FactStore) error {
	ctx, span := o.tracer.Start(ctx, "research.workflow", trace.WithAttributes(
		attribute.String("run_id", wf.ID.String()),
		attribute.String("topic", wf.Topic),
	))
	defer span.End()

	err := o.run(ctx, wf, facts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("Orchestrator", "Research run failed", map[string]interface{}{
			"run_id": wf.ID.String(),
			"state":  string(wf.State()),
			"error":  err.Error(),
		})
		return wf.fail(err)
	}
	o.logger.Info("Orchestrator", "Research run finished", map[string]interface{}{
		"run_id": wf.ID.String(),
		"facts":  facts.Len(),
	})
	return nil
}

func (o *Orchestrator) run(ctx context.Context, wf *Workflow, facts *FactStore) error {
	if err := wf.advance(StatePlanning); err != nil {
		return err
	}
	plan, err := o.plan(ctx, wf.Topic)
	if err != nil {
		return err
	}
	wf.setPlan(plan)

	if err := wf.advance(StateResearching); err != nil {
		return err
	}
	summaries, err := o.research(ctx, wf.ID.String(), plan.SearchQueries, facts)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		return &StageError{Stage: StageResearching, Err: fmt.Errorf("%w: plan produced no research", ErrSchemaViolation)}
	}
	wf.setSummaries(summaries)

	if err := wf.advance(StateEditing); err != nil {
		return err
	}
	report, err := o.edit(ctx, wf.Topic, summaries)
	if err != nil {
		return err
	}
	wf.setReport(report)

	return wf.advance(StateDone)
}

func (o *Orchestrator) plan(ctx context.Context, topic string) (ResearchPlan, error) {
	ctx, span := o.tracer.Start(ctx, "research.plan")
	defer span.End()

	plan, err := o.planner.Plan(ctx, topic)
	if err != nil {
		return ResearchPlan{}, &StageError{Stage: StagePlanning, Err: err}
	}
	span.SetAttributes(attribute.Int("queries", len(plan.SearchQueries)))
	return plan, nil
}

// research runs one researcher per query and keeps results in plan order.
func (o *Orchestrator) research(ctx context.Context, runID string, queries []string, facts *FactStore) ([]string, error) {
	summaries := make([]string, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			qctx, span := o.tracer.Start(gctx, "research.query", trace.WithAttributes(attribute.String("query", q)))
			defer span.End()

			summary, err := o.researcher.Research(qctx, q, facts)
			if err != nil {
				span.RecordError(err)
				return &StageError{Stage: StageResearching, Err: err}
			}
			summaries[i] = summary
			o.logger.Debug("Orchestrator", "Query researched", map[string]interface{}{
				"run_id": runID,
				"query":  q,
				"words":  CountWords(summary),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (o *Orchestrator) edit(ctx context.Context, topic string, summaries []string) (ResearchReport, error) {
	ctx, span := o.tracer.Start(ctx, "research.edit")
	defer span.End()

	report, err := o.editor.Edit(ctx, topic, summaries)
	if err != nil {
		return ResearchReport{}, &StageError{Stage: StageEditing, Err: err}
	}
	span.SetAttributes(attribute.Int("word_count", report.WordCount))
	return report, nil
}
