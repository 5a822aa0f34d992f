// Command smoke drives a running server through one full research run.
//
//	go run ./cmd/smoke -topic "Latest developments in AI safety"
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *client) send(method, path string, body interface{}) (*envelope, int, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return &env, resp.StatusCode, nil
}

func fail(format string, args ...interface{}) {
	color.Red(format, args...)
	os.Exit(1)
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000/api/research/v1", "research API base URL")
	topic := flag.String("topic", "Latest developments in AI safety", "topic to research")
	flag.Parse()

	c := &client{baseURL: *baseURL, http: &http.Client{Timeout: 15 * time.Minute}}

	color.Cyan("Research smoke test: %q\n", *topic)

	// 1. Session
	color.Yellow("\n1. Create session")
	env, status, err := c.send("POST", "/sessions", nil)
	if err != nil {
		fail("Failed: %v", err)
	}
	var session struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &session); err != nil || session.ID == "" {
		fail("Unexpected session response (%d): %s", status, env.Message)
	}
	c.token = session.Token
	color.Green("Session %s", session.ID)

	// 2. Blank topic must be rejected
	color.Yellow("\n2. Blank topic is rejected")
	env, status, err = c.send("POST", "/sessions/"+session.ID+"/runs", map[string]string{"topic": "   "})
	if err != nil {
		fail("Failed: %v", err)
	}
	if status != http.StatusBadRequest {
		fail("Expected 400, got %d", status)
	}
	color.Green("Rejected: %s", env.Message)

	// 3. Full run
	color.Yellow("\n3. Run workflow (this takes a while)")
	started := time.Now()
	env, status, err = c.send("POST", "/sessions/"+session.ID+"/runs?wait=true", map[string]string{"topic": *topic})
	if err != nil {
		fail("Failed: %v", err)
	}
	if status != http.StatusOK {
		fail("Run failed (%d): %s", status, env.Message)
	}
	var run struct {
		State string `json:"state"`
		Plan  struct {
			SearchQueries []string `json:"search_queries"`
			FocusAreas    []string `json:"focus_areas"`
		} `json:"plan"`
		Report struct {
			Title     string   `json:"title"`
			Outline   []string `json:"outline"`
			Sources   []string `json:"sources"`
			WordCount int      `json:"word_count"`
		} `json:"report"`
	}
	json.Unmarshal(env.Data, &run)
	color.Green("State %s after %s", run.State, time.Since(started).Round(time.Second))
	fmt.Printf("Queries: %s\n", strings.Join(run.Plan.SearchQueries, " | "))
	fmt.Printf("Focus:   %s\n", strings.Join(run.Plan.FocusAreas, " | "))
	fmt.Printf("Report:  %q, %d words, %d sections, %d sources\n",
		run.Report.Title, run.Report.WordCount, len(run.Report.Outline), len(run.Report.Sources))

	// 4. Facts
	color.Yellow("\n4. Collected facts")
	env, _, err = c.send("GET", "/sessions/"+session.ID+"/facts", nil)
	if err != nil {
		fail("Failed: %v", err)
	}
	var facts []struct {
		Fact      string `json:"fact"`
		Timestamp string `json:"timestamp"`
	}
	json.Unmarshal(env.Data, &facts)
	for _, f := range facts {
		fmt.Printf("[%s] %s\n", f.Timestamp, f.Fact)
	}
	color.Green("%d facts", len(facts))

	// 5. Cleanup
	color.Yellow("\n5. End session")
	if _, status, err = c.send("DELETE", "/sessions/"+session.ID, nil); err != nil || status != http.StatusOK {
		fail("End session failed (%d): %v", status, err)
	}
	color.Cyan("\nAll checks passed")
}
