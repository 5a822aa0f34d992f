package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"research-agent-be/internal/bootstrap"
	"research-agent-be/internal/config"
	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/server"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/search"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedLLM answers every agent with a fixed, valid payload.
type cannedLLM struct{}

func (cannedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	o := llm.Apply(llm.Options{}, options...)
	if o.Schema == nil {
		return "", fmt.Errorf("expected structured request")
	}
	switch o.Schema.Name {
	case "research_plan":
		return `{"topic":"AI safety","search_queries":["ai safety 2024","alignment research","ai policy"],"focus_areas":["research","policy","industry"]}`, nil
	case "research_summary":
		return `{"summary":"Alignment work expanding. Policy catching up.","facts":[{"fact":"Labs publish safety frameworks","source":"https://example.com/frameworks"}]}`, nil
	case "report_outline":
		return `{"outline":["Introduction","Research","Policy","Conclusion"]}`, nil
	case "research_report":
		body := "# AI Safety\n\n" + strings.Repeat("insight ", 60)
		out, _ := json.Marshal(map[string]any{
			"title":      "AI Safety Today",
			"outline":    []string{"Introduction", "Research", "Policy", "Conclusion"},
			"report":     body,
			"sources":    []string{"https://example.com/frameworks"},
			"word_count": 0,
		})
		return string(out), nil
	}
	return "", fmt.Errorf("unknown schema %s", o.Schema.Name)
}

func (c cannedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return c.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

type cannedSearch struct{}

func (cannedSearch) Search(ctx context.Context, query string) ([]search.Result, error) {
	return []search.Result{{Title: query, URL: "https://example.com/frameworks", Snippet: "snippet"}}, nil
}

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{
			Port:               "0",
			Environment:        "test",
			CorsAllowedOrigins: "*",
			WebDir:             "../../web",
			SessionTTL:         time.Hour,
		},
		Ai: config.AIConfig{LLMProvider: "openai"},
		Research: config.ResearchConfig{
			RunTimeout:     time.Minute,
			Concurrency:    2,
			MinReportWords: 50,
			MaxTries:       1,
		},
	}

	container := bootstrap.Assemble(cfg, bootstrap.Deps{
		LLM:    cannedLLM{},
		Search: search.NewCached(cannedSearch{}, time.Minute),
		Logger: logger.NewNopLogger(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		container.Close()
	})
	require.NoError(t, container.Start(ctx))

	return server.New(cfg, container).GetApp()
}

func call(t *testing.T, app *fiber.App, method, path, token, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func TestResearchFlow_EndToEnd(t *testing.T) {
	app := newApp(t)

	var created envelope[dto.CreateSessionResponse]
	require.Equal(t, fiber.StatusCreated, call(t, app, "POST", "/api/research/v1/sessions", "", "", &created))
	base := "/api/research/v1/sessions/" + created.Data.Id.String()
	token := created.Data.Token

	var run envelope[dto.RunResponse]
	code := call(t, app, "POST", base+"/runs?wait=true", token, `{"topic":"Latest developments in AI safety"}`, &run)
	require.Equal(t, fiber.StatusOK, code, run.Message)
	assert.Equal(t, "DONE", string(run.Data.State))
	require.NotNil(t, run.Data.Plan)
	assert.Len(t, run.Data.Plan.SearchQueries, 3)
	require.NotNil(t, run.Data.Report)
	assert.Equal(t, 63, run.Data.Report.WordCount)

	var sess envelope[dto.SessionResponse]
	require.Equal(t, fiber.StatusOK, call(t, app, "GET", base, token, "", &sess))
	assert.Len(t, sess.Data.Facts, 3)
	for i := 1; i < len(sess.Data.Facts); i++ {
		assert.False(t, sess.Data.Facts[i].RecordedAt.Before(sess.Data.Facts[i-1].RecordedAt))
	}

	var report map[string]any
	require.Equal(t, fiber.StatusOK, call(t, app, "GET", base+"/report", token, "", &report))
	assert.Equal(t, "AI Safety Today", report["title"])

	var health envelope[map[string]int]
	require.Equal(t, fiber.StatusOK, call(t, app, "GET", "/api/health", "", "", &health))
	assert.Equal(t, 1, health.Data["sessions"])

	require.Equal(t, fiber.StatusOK, call(t, app, "DELETE", base, token, "", nil))
	assert.Equal(t, fiber.StatusNotFound, call(t, app, "GET", base, token, "", nil))
}

func TestResearchFlow_BlankTopicRejected(t *testing.T) {
	app := newApp(t)

	var created envelope[dto.CreateSessionResponse]
	require.Equal(t, fiber.StatusCreated, call(t, app, "POST", "/api/research/v1/sessions", "", "", &created))
	base := "/api/research/v1/sessions/" + created.Data.Id.String()

	var failed envelope[any]
	assert.Equal(t, fiber.StatusBadRequest, call(t, app, "POST", base+"/runs", created.Data.Token, `{"topic":"   "}`, &failed))
	assert.False(t, failed.Success)

	var sess envelope[dto.SessionResponse]
	require.Equal(t, fiber.StatusOK, call(t, app, "GET", base, created.Data.Token, "", &sess))
	assert.Nil(t, sess.Data.Run)
	assert.Empty(t, sess.Data.Facts)
}
