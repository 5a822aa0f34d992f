package search

import (
	"fmt"
	"time"
)

// New builds the configured backend, wrapped in a cache when cacheTTL > 0.
func New(backend, tavilyKey, tavilyDepth string, cacheTTL time.Duration) (Provider, error) {
	var p Provider
	switch backend {
	case "tavily":
		if tavilyKey == "" {
			return nil, fmt.Errorf("tavily search requires TAVILY_API_KEY")
		}
		p = NewTavily(tavilyKey, tavilyDepth)
	case "duckduckgo", "":
		p = NewDuckDuckGo()
	default:
		return nil, fmt.Errorf("unsupported search backend: %s", backend)
	}
	if cacheTTL > 0 {
		p = NewCached(p, cacheTTL)
	}
	return p, nil
}
