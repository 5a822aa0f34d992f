package search

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

const duckDuckGoLite = "https://lite.duckduckgo.com/lite/"

// DuckDuckGo scrapes the lite HTML interface. No key required.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client

	// One query per second across goroutines.
	mu   sync.Mutex
	last time.Time
}

func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		endpoint: duckDuckGoLite,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *DuckDuckGo) WithEndpoint(endpoint string) *DuckDuckGo {
	d.endpoint = endpoint
	return d
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if err := d.wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Backend: "duckduckgo", StatusCode: resp.StatusCode}
	}

	return parseLite(resp.Body)
}

func (d *DuckDuckGo) wait(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if delay := time.Until(d.last.Add(time.Second)); delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	d.last = time.Now()
	return nil
}

// parseLite pairs each a.result-link with the following td.result-snippet.
func parseLite(r io.Reader) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var results []Result
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) > maxResults {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result-link"):
				results = append(results, Result{
					Title: strings.TrimSpace(textOf(n)),
					URL:   attr(n, "href"),
				})
			case n.Data == "td" && hasClass(n, "result-snippet") && len(results) > 0:
				last := &results[len(results)-1]
				if last.Snippet == "" {
					last.Snippet = strings.Join(strings.Fields(textOf(n)), " ")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	out := results[:0]
	for _, res := range results {
		if res.URL == "" || res.Title == "" {
			continue
		}
		out = append(out, res)
		if len(out) == maxResults {
			break
		}
	}
	return out, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}
