package bootstrap

import (
	"context"
	"fmt"

	"research-agent-be/internal/config"
	"research-agent-be/internal/controller"
	"research-agent-be/internal/handler"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/pkg/serverutils"
	"research-agent-be/internal/repository/memory"
	"research-agent-be/internal/service"
	"research-agent-be/internal/websocket"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/llm/factory"
	pktNats "research-agent-be/pkg/nats"
	"research-agent-be/pkg/research"
	"research-agent-be/pkg/search"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/redis/go-redis/v9"
)

const sessionEventsTopic = "research.session_events"

type Container struct {
	ResearchController controller.IResearchController
	StreamHandler      *handler.StreamHandler
	SessionTokens      *serverutils.SessionTokens
	Sessions           *memory.SessionRepository
	Logger             logger.ILogger

	// Background pieces, started by Start.
	EventRelay   service.IEventRelay
	WebSocketHub *websocket.Hub

	closers []func()
}

// Deps are the external collaborators. Tests substitute fakes here.
type Deps struct {
	LLM       llm.LLMProvider
	Search    search.Provider
	Logger    logger.ILogger
	EventLog  logger.ILogger
	Redis     *redis.Client
	Publisher *pktNats.Publisher
}

// NewContainer builds the real backends from cfg. cfg must already be validated.
func NewContainer(cfg *config.Config) (*Container, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	llmProvider, err := factory.NewLLMProvider(factory.Settings{
		Provider: cfg.Ai.LLMProvider,
		BaseURL:  cfg.Ai.LLMBaseURL,
		APIKey:   cfg.APIKeyFor(cfg.Ai.LLMProvider),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", research.ErrConfiguration, err)
	}
	sysLogger.Info("Bootstrap", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"models":   []string{cfg.Ai.TriageModel, cfg.Ai.ResearchModel, cfg.Ai.EditorModel},
	})

	searcher, err := search.New(cfg.Search.Backend, cfg.Keys.Tavily, cfg.Search.Depth, cfg.Search.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", research.ErrConfiguration, err)
	}

	deps := Deps{
		LLM:      llmProvider,
		Search:   searcher,
		Logger:   sysLogger,
		EventLog: logger.NewIsolatedLogger(cfg.App.EventLogFilePath),
	}

	// Optional infrastructure: the service works without either.
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			sysLogger.Warn("Bootstrap", "Redis unavailable, live events stay local", map[string]interface{}{"error": err.Error()})
			rdb.Close()
		} else {
			deps.Redis = rdb
		}
	}
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "NATS unavailable, events are not forwarded", map[string]interface{}{"error": err.Error()})
		} else {
			deps.Publisher = pub
		}
	}

	return Assemble(cfg, deps), nil
}

// Assemble wires services and controllers around deps.
func Assemble(cfg *config.Config, deps Deps) *Container {
	eventLog := deps.EventLog
	if eventLog == nil {
		eventLog = deps.Logger
	}

	policy := research.DefaultRetryPolicy()
	if cfg.Research.MaxTries > 0 {
		policy.MaxTries = uint(cfg.Research.MaxTries)
	}

	orchestrator := research.NewOrchestrator(
		research.NewTriagePlanner(deps.LLM, cfg.Ai.TriageModel, policy),
		research.NewSearchResearcher(deps.LLM, deps.Search, cfg.Ai.ResearchModel, policy, deps.Logger),
		research.NewReportEditor(deps.LLM, cfg.Ai.EditorModel, policy, cfg.Research.MinReportWords),
		cfg.Research.Concurrency,
		deps.Logger,
	)

	// In-process event bus
	pubSub := service.NewEventBus(watermill.NewStdLogger(false, false))

	sessions := memory.NewSessionRepository(cfg.App.SessionTTL)
	tokens := serverutils.NewSessionTokens(cfg.App.SessionSecret, cfg.App.SessionTTL)

	wsHub := websocket.NewHub(deps.Redis, eventLog)

	var bus service.BusPublisher
	if deps.Publisher != nil {
		bus = deps.Publisher
	}
	relay := service.NewEventRelay(pubSub, sessionEventsTopic, wsHub, bus, eventLog)

	researchService := service.NewResearchService(
		sessions,
		orchestrator,
		service.NewEventPublisher(sessionEventsTopic, pubSub),
		tokens,
		cfg.Research.RunTimeout,
		deps.Logger,
	)

	c := &Container{
		ResearchController: controller.NewResearchController(researchService),
		StreamHandler:      handler.NewStreamHandler(wsHub, sessions, eventLog),
		SessionTokens:      tokens,
		Sessions:           sessions,
		Logger:             deps.Logger,
		EventRelay:         relay,
		WebSocketHub:       wsHub,
	}
	c.closers = append(c.closers, func() { pubSub.Close() })
	if deps.Publisher != nil {
		c.closers = append(c.closers, deps.Publisher.Close)
	}
	if deps.Redis != nil {
		c.closers = append(c.closers, func() { deps.Redis.Close() })
	}
	return c
}

// Start launches the hub and the event relay. They stop when ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)
	if err := c.EventRelay.Consume(ctx); err != nil {
		return fmt.Errorf("start event relay: %w", err)
	}
	return nil
}

func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.Logger.Sync()
}
