package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"research-agent-be/pkg/llm"
)

// Violation is one reason a structured answer failed validation.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// Structured is the typed outcome of a schema-constrained generation.
// Value is only meaningful when Violations is empty.
type Structured[T any] struct {
	Value      T
	Violations []Violation
	Raw        string
}

func (s Structured[T]) OK() bool {
	return len(s.Violations) == 0
}

// Err converts outstanding violations into an ErrSchemaViolation.
func (s Structured[T]) Err() error {
	if s.OK() {
		return nil
	}
	parts := make([]string, len(s.Violations))
	for i, v := range s.Violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(parts, "; "))
}

// Agent pairs instructions with a model and an optional output schema.
type Agent struct {
	Name         string
	Instructions string
	Model        string
	Temperature  float64
	Schema       *llm.Schema
}

// Run sends input to the agent's model and returns the raw text reply.
// Transient failures are retried; what remains is ErrUpstreamUnavailable.
func (a Agent) Run(ctx context.Context, provider llm.LLMProvider, policy RetryPolicy, input string) (string, error) {
	history := []llm.Message{
		{Role: llm.RoleSystem, Content: a.Instructions},
		{Role: llm.RoleUser, Content: input},
	}
	opts := []llm.Option{llm.WithTemperature(a.Temperature)}
	if a.Model != "" {
		opts = append(opts, llm.WithModel(a.Model))
	}
	if a.Schema != nil {
		opts = append(opts, llm.WithSchema(a.Schema))
	}

	return withRetry(ctx, policy, func() (string, error) {
		return provider.Chat(ctx, history, opts...)
	})
}

// Generate runs the agent and decodes its reply into T, then applies validate.
// Decoding and validation failures come back as violations, not errors.
func Generate[T any](ctx context.Context, a Agent, provider llm.LLMProvider, policy RetryPolicy, input string, validate func(T) []Violation) (Structured[T], error) {
	raw, err := a.Run(ctx, provider, policy, input)
	if err != nil {
		return Structured[T]{}, err
	}

	out := Structured[T]{Raw: raw}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out.Value); err != nil {
		out.Violations = []Violation{{Field: "$", Reason: "not a valid JSON object: " + err.Error()}}
		return out, nil
	}
	if validate != nil {
		out.Violations = validate(out.Value)
	}
	return out, nil
}

// GenerateValid is Generate with one retry on violations.
func GenerateValid[T any](ctx context.Context, a Agent, provider llm.LLMProvider, policy RetryPolicy, input string, validate func(T) []Violation) (T, error) {
	var zero T
	var res Structured[T]
	var err error
	for attempt := 0; attempt <= policy.SchemaRetries; attempt++ {
		res, err = Generate(ctx, a, provider, policy, input, validate)
		if err != nil {
			return zero, err
		}
		if res.OK() {
			return res.Value, nil
		}
	}
	return zero, res.Err()
}

// extractJSON isolates the outermost JSON object in a reply.
func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return response
	}

	return response[startIdx : endIdx+1]
}
