package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/search"
)

// scriptedLLM answers by schema name. Each handler sees the call number for
// its schema, starting at 1.
type scriptedLLM struct {
	mu       sync.Mutex
	handlers map[string]func(call int, history []llm.Message) (string, error)
	calls    map[string]int
	order    []string
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		handlers: map[string]func(int, []llm.Message) (string, error){},
		calls:    map[string]int{},
	}
}

func (s *scriptedLLM) on(schema string, fn func(call int, history []llm.Message) (string, error)) *scriptedLLM {
	s.handlers[schema] = fn
	return s
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	o := llm.Apply(llm.Options{}, options...)
	name := ""
	if o.Schema != nil {
		name = o.Schema.Name
	}

	s.mu.Lock()
	s.calls[name]++
	call := s.calls[name]
	s.order = append(s.order, name)
	fn := s.handlers[name]
	s.mu.Unlock()

	if fn == nil {
		return "", fmt.Errorf("no script for schema %q", name)
	}
	return fn(call, history)
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (s *scriptedLLM) callCount(schema string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[schema]
}

func (s *scriptedLLM) callOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeSearch) Search(ctx context.Context, query string) ([]search.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []search.Result{
		{Title: "Result for " + query, URL: "https://example.com/" + strings.ReplaceAll(query, " ", "-"), Snippet: "snippet about " + query},
	}, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		SchemaRetries:   1,
	}
}

func planJSON(topic string, queries ...string) string {
	return mustJSON(ResearchPlan{
		Topic:         topic,
		SearchQueries: queries,
		FocusAreas:    []string{"history", "current state", "outlook"},
	})
}

func researchJSON(summary string, facts ...string) string {
	type fact struct {
		Fact   string `json:"fact"`
		Source string `json:"source"`
	}
	out := struct {
		Summary string `json:"summary"`
		Facts   []fact `json:"facts"`
	}{Summary: summary}
	for _, f := range facts {
		out.Facts = append(out.Facts, fact{Fact: f, Source: "https://example.com"})
	}
	return mustJSON(out)
}

func outlineJSON(sections ...string) string {
	return mustJSON(map[string]any{"outline": sections})
}

func reportJSON(title string, body string) string {
	return mustJSON(ResearchReport{
		Title:   title,
		Outline: []string{"Introduction", "Findings", "Conclusion"},
		Report:  body,
		Sources: []string{"https://example.com"},
		WordCount: 7,
	})
}

// userInput returns the user message of a chat history.
func userInput(history []llm.Message) string {
	for _, m := range history {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	return ""
}
