package factory

import (
	"testing"

	"research-agent-be/pkg/llm/huggingface"
	"research-agent-be/pkg/llm/ollama"
	"research-agent-be/pkg/llm/openai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantType any
		wantErr  bool
	}{
		{name: "openai default", settings: Settings{APIKey: "sk"}, wantType: &openai.OpenAIProvider{}},
		{name: "openai without key", settings: Settings{Provider: "openai"}, wantErr: true},
		{name: "ollama", settings: Settings{Provider: "ollama"}, wantType: &ollama.OllamaProvider{}},
		{name: "huggingface", settings: Settings{Provider: "huggingface", APIKey: "hf"}, wantType: &huggingface.HuggingFaceProvider{}},
		{name: "unknown", settings: Settings{Provider: "anthropic"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLLMProvider(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, p)
		})
	}
}
