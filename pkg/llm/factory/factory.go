package factory

import (
	"fmt"

	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/llm/huggingface"
	"research-agent-be/pkg/llm/ollama"
	"research-agent-be/pkg/llm/openai"
)

// Settings selects and configures a backend.
type Settings struct {
	Provider string // "openai" | "ollama" | "huggingface"
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(s Settings) (llm.LLMProvider, error) {
	switch s.Provider {
	case "openai", "":
		if s.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewOpenAIProvider(s.APIKey, s.BaseURL, s.Model), nil
	case "ollama":
		return ollama.NewOllamaProvider(s.BaseURL, s.Model), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(s.APIKey, s.BaseURL, s.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
	}
}
