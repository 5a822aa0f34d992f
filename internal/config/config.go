package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"research-agent-be/pkg/research"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Keys     APIKeys
	Ai       AIConfig
	Search   SearchConfig
	Research ResearchConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	EventLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	WebDir             string
	SessionSecret      string
	SessionTTL         time.Duration
}

type APIKeys struct {
	OpenAI      string
	HuggingFace string
	Tavily      string
}

type AIConfig struct {
	LLMProvider   string // "openai", "ollama", "huggingface"
	LLMBaseURL    string
	TriageModel   string
	ResearchModel string
	EditorModel   string
}

type SearchConfig struct {
	Backend  string // "duckduckgo" or "tavily"
	Depth    string
	CacheTTL time.Duration
}

type ResearchConfig struct {
	RunTimeout     time.Duration
	Concurrency    int
	MinReportWords int
	MaxTries       int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			EventLogFilePath:   getEnv("EVENT_LOG_FILE_PATH", "logs/events.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			WebDir:             getEnv("WEB_DIR", "./web"),
			SessionSecret:      getEnv("SESSION_SECRET", ""),
			SessionTTL:         getEnvAsDuration("SESSION_TTL", time.Hour),
		},
		Keys: APIKeys{
			OpenAI:      getEnv("OPENAI_API_KEY", ""),
			HuggingFace: getEnv("HUGGINGFACE_API_KEY", ""),
			Tavily:      getEnv("TAVILY_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "openai"),
			LLMBaseURL:    getEnv("LLM_BASE_URL", ""),
			TriageModel:   getEnv("TRIAGE_MODEL", "gpt-4o-mini"),
			ResearchModel: getEnv("RESEARCH_MODEL", "gpt-4o-mini"),
			EditorModel:   getEnv("EDITOR_MODEL", "gpt-4o"),
		},
		Search: SearchConfig{
			Backend:  getEnv("SEARCH_BACKEND", "duckduckgo"),
			Depth:    getEnv("TAVILY_SEARCH_DEPTH", "basic"),
			CacheTTL: getEnvAsDuration("SEARCH_CACHE_TTL", 10*time.Minute),
		},
		Research: ResearchConfig{
			RunTimeout:     getEnvAsDuration("RESEARCH_RUN_TIMEOUT", 10*time.Minute),
			Concurrency:    getEnvAsInt("RESEARCH_CONCURRENCY", 3),
			MinReportWords: getEnvAsInt("MIN_REPORT_WORDS", research.DefaultMinReportWords),
			MaxTries:       getEnvAsInt("UPSTREAM_MAX_TRIES", 3),
		},
	}
}

// Validate reports settings the process cannot start without.
func (c *Config) Validate() error {
	var missing []string
	switch c.Ai.LLMProvider {
	case "openai":
		if c.Keys.OpenAI == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case "huggingface":
		if c.Keys.HuggingFace == "" {
			missing = append(missing, "HUGGINGFACE_API_KEY")
		}
	case "ollama":
	default:
		return fmt.Errorf("%w: unsupported LLM_PROVIDER %q", research.ErrConfiguration, c.Ai.LLMProvider)
	}
	if c.Search.Backend == "tavily" && c.Keys.Tavily == "" {
		missing = append(missing, "TAVILY_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: please set %s", research.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// APIKeyFor returns the credential of the configured LLM provider.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.Keys.OpenAI
	case "huggingface":
		return c.Keys.HuggingFace
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
