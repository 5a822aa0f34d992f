// Package search holds the web search backends used by the research stage.
package search

import (
	"context"
	"fmt"
	"net/http"
)

// Result is one ranked hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider executes a query and returns ranked results.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// StatusError is a non-200 reply from a search backend.
type StatusError struct {
	Backend    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d", e.Backend, e.StatusCode)
}

// Retryable reports whether the request may succeed if retried.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

const maxResults = 5
