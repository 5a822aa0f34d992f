package research

import (
	"context"
	"fmt"
	"strings"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/search"
)

// Planner turns a topic into a research plan.
type Planner interface {
	Plan(ctx context.Context, topic string) (ResearchPlan, error)
}

// Researcher turns one query into a bounded summary, saving facts on the way.
type Researcher interface {
	Research(ctx context.Context, query string, facts *FactStore) (string, error)
}

// Editor synthesizes the final report from every research summary.
type Editor interface {
	Edit(ctx context.Context, topic string, research []string) (ResearchReport, error)
}

const (
	StagePlanning    = "planning"
	StageResearching = "research"
	StageEditing     = "editing"
)

// --- Triage / planner ---

type TriagePlanner struct {
	agent    Agent
	provider llm.LLMProvider
	policy   RetryPolicy
}

func NewTriagePlanner(provider llm.LLMProvider, model string, policy RetryPolicy) *TriagePlanner {
	return &TriagePlanner{
		agent: Agent{
			Name:         "Triage Agent",
			Instructions: triageInstructions,
			Model:        model,
			Temperature:  0.3,
			Schema:       planSchema,
		},
		provider: provider,
		policy:   policy,
	}
}

func (p *TriagePlanner) Plan(ctx context.Context, topic string) (ResearchPlan, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ResearchPlan{}, fmt.Errorf("%w: topic is empty", ErrUserInput)
	}

	plan, err := GenerateValid(ctx, p.agent, p.provider, p.policy, "Topic: "+topic, func(plan ResearchPlan) []Violation {
		if strings.TrimSpace(plan.Topic) == "" {
			plan.Topic = topic
		}
		return plan.Validate()
	})
	if err != nil {
		return ResearchPlan{}, err
	}
	if strings.TrimSpace(plan.Topic) == "" {
		plan.Topic = topic
	}
	return plan, nil
}

// --- Research ---

type researchAnswer struct {
	Summary string `json:"summary"`
	Facts   []struct {
		Fact   string `json:"fact"`
		Source string `json:"source"`
	} `json:"facts"`
}

type SearchResearcher struct {
	agent    Agent
	provider llm.LLMProvider
	searcher search.Provider
	policy   RetryPolicy
	logger   logger.ILogger
}

func NewSearchResearcher(provider llm.LLMProvider, searcher search.Provider, model string, policy RetryPolicy, log logger.ILogger) *SearchResearcher {
	return &SearchResearcher{
		agent: Agent{
			Name:         "Research Agent",
			Instructions: researchInstructions,
			Model:        model,
			Temperature:  0.2,
			Schema:       researchSchema,
		},
		provider: provider,
		searcher: searcher,
		policy:   policy,
		logger:   log,
	}
}

func (r *SearchResearcher) Research(ctx context.Context, query string, facts *FactStore) (string, error) {
	results, err := withRetry(ctx, r.policy, func() ([]search.Result, error) {
		return r.searcher.Search(ctx, query)
	})
	if err != nil {
		return "", fmt.Errorf("web search for %q: %w", query, err)
	}

	answer, err := GenerateValid(ctx, r.agent, r.provider, r.policy, formatSearchInput(query, results), func(a researchAnswer) []Violation {
		if strings.TrimSpace(a.Summary) == "" {
			return []Violation{{Field: "summary", Reason: "must not be empty"}}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	for _, f := range answer.Facts {
		facts.Append(f.Fact, f.Source)
	}

	summary, cut := TruncateWords(strings.TrimSpace(answer.Summary), MaxSummaryWords)
	if cut {
		r.logger.Warn("Researcher", "Summary exceeded word limit, truncated", map[string]interface{}{
			"query": query,
			"limit": MaxSummaryWords,
		})
	}
	return summary, nil
}

func formatSearchInput(query string, results []search.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search query: %s\n\nSearch results:\n", query)
	if len(results) == 0 {
		b.WriteString("(no results)\n")
	}
	for i, res := range results {
		fmt.Fprintf(&b, "[%d] %s\nURL: %s\n%s\n\n", i+1, res.Title, res.URL, res.Snippet)
	}
	return b.String()
}

// --- Editor ---

type reportOutline struct {
	Outline []string `json:"outline"`
}

type ReportEditor struct {
	outliner Agent
	writer   Agent
	provider llm.LLMProvider
	policy   RetryPolicy
	minWords int
}

// NewReportEditor builds the two-phase editor. minWords <= 0 disables the length target.
func NewReportEditor(provider llm.LLMProvider, model string, policy RetryPolicy, minWords int) *ReportEditor {
	return &ReportEditor{
		outliner: Agent{
			Name:         "Editor Agent (outline)",
			Instructions: outlineInstructions,
			Model:        model,
			Temperature:  0.4,
			Schema:       outlineSchema,
		},
		writer: Agent{
			Name:         "Editor Agent",
			Instructions: editorInstructions,
			Model:        model,
			Temperature:  0.4,
			Schema:       reportSchema,
		},
		provider: provider,
		policy:   policy,
		minWords: minWords,
	}
}

func (e *ReportEditor) Edit(ctx context.Context, topic string, research []string) (ResearchReport, error) {
	if len(research) == 0 {
		return ResearchReport{}, fmt.Errorf("%w: no research summaries to edit", ErrSchemaViolation)
	}
	notes := strings.Join(research, "\n\n---\n\n")

	outline, err := GenerateValid(ctx, e.outliner, e.provider, e.policy,
		fmt.Sprintf("Topic: %s\n\nResearch notes:\n%s", topic, notes),
		func(o reportOutline) []Violation {
			if len(o.Outline) == 0 {
				return []Violation{{Field: "outline", Reason: "must not be empty"}}
			}
			return nil
		})
	if err != nil {
		return ResearchReport{}, fmt.Errorf("outline: %w", err)
	}

	input := fmt.Sprintf("Topic: %s\n\nOutline:\n- %s\n\nResearch notes:\n%s",
		topic, strings.Join(outline.Outline, "\n- "), notes)
	report, err := GenerateValid(ctx, e.writer, e.provider, e.policy, input, func(r ResearchReport) []Violation {
		if len(r.Outline) == 0 {
			r.Outline = outline.Outline
		}
		return r.Validate(e.minWords)
	})
	if err != nil {
		return ResearchReport{}, fmt.Errorf("report: %w", err)
	}

	if len(report.Outline) == 0 {
		report.Outline = outline.Outline
	}
	report.WordCount = CountWords(report.Report)
	return report, nil
}
