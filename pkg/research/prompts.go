package research

import (
	"sort"

	"research-agent-be/pkg/llm"
)

const triageInstructions = `You are the coordinator of a research team.
Turn the user's topic into a research plan.

Rules:
- "topic": restate the topic in a short, clear phrase.
- "search_queries": between 3 and 5 distinct web search queries that together cover the topic.
- "focus_areas": between 3 and 5 aspects the final report must address.
Respond with a single JSON object and nothing else.`

const researchInstructions = `You are a research assistant.
You receive a search query and the web search results for it.

Write "summary": 2-3 paragraphs, under 300 words. Capture only the substantive findings.
Telegraphic style is fine; fragments are acceptable. No commentary about the search itself.

Write "facts": the most important concrete facts you found (figures, dates, names, claims),
each with the URL it came from in "source" (empty string if unknown).
Respond with a single JSON object and nothing else.`

const outlineInstructions = `You are a senior editor planning a long-form research report.
Given a topic and research notes, produce "outline": the ordered list of section headings
the report should follow. Use between 5 and 10 sections.
Respond with a single JSON object and nothing else.`

const editorInstructions = `You are a senior editor writing a long-form research report.
You receive the topic, an approved outline and research notes.

Follow the outline exactly. Write "report" in markdown, at least 1000 words, with a heading
per outline section. Ground every claim in the notes. Put every URL you relied on in "sources".
Give the report a "title" and repeat the outline in "outline".
Respond with a single JSON object and nothing else.`

var planSchema = &llm.Schema{
	Name: "research_plan",
	Definition: objectSchema(map[string]any{
		"topic":          map[string]any{"type": "string"},
		"search_queries": stringArray(MinPlanItems, MaxPlanItems),
		"focus_areas":    stringArray(MinPlanItems, MaxPlanItems),
	}),
}

var researchSchema = &llm.Schema{
	Name: "research_summary",
	Definition: objectSchema(map[string]any{
		"summary": map[string]any{"type": "string"},
		"facts": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"fact":   map[string]any{"type": "string"},
				"source": map[string]any{"type": "string"},
			}),
		},
	}),
}

var outlineSchema = &llm.Schema{
	Name: "report_outline",
	Definition: objectSchema(map[string]any{
		"outline": stringArray(0, 0),
	}),
}

var reportSchema = &llm.Schema{
	Name: "research_report",
	Definition: objectSchema(map[string]any{
		"title":   map[string]any{"type": "string"},
		"outline": stringArray(0, 0),
		"report":  map[string]any{"type": "string"},
		"sources": stringArray(0, 0),
	}),
}

// objectSchema marks every property required, as strict structured output demands.
func objectSchema(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func stringArray(min, max int) map[string]any {
	s := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	if min > 0 {
		s["minItems"] = min
	}
	if max > 0 {
		s["maxItems"] = max
	}
	return s
}
