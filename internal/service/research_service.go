package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/repository/memory"
	"research-agent-be/pkg/research"
	"research-agent-be/pkg/store"

	"github.com/google/uuid"
)

// ErrReportNotReady is returned until a run of the session reaches Done.
var ErrReportNotReady = errors.New("report not ready")

// Runner executes one workflow against a session's fact store.
type Runner interface {
	Run(ctx context.Context, wf *research.Workflow, facts *research.FactStore) error
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(sessionID uuid.UUID) (string, time.Time, error)
}

type IResearchService interface {
	CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*dto.SessionResponse, error)
	EndSession(ctx context.Context, sessionID uuid.UUID) error
	StartRun(ctx context.Context, sessionID uuid.UUID, req *dto.StartRunRequest, wait bool) (*dto.RunResponse, error)
	SaveFact(ctx context.Context, sessionID uuid.UUID, req *dto.SaveFactRequest) (*dto.SaveFactResponse, error)
	ListFacts(ctx context.Context, sessionID uuid.UUID) ([]research.Fact, error)
	GetReport(ctx context.Context, sessionID uuid.UUID) (*research.ResearchReport, error)
}

type researchService struct {
	sessions   *memory.SessionRepository
	runner     Runner
	publisher  IEventPublisher
	tokens     TokenIssuer
	runTimeout time.Duration
	logger     logger.ILogger
}

func NewResearchService(
	sessions *memory.SessionRepository,
	runner Runner,
	publisher IEventPublisher,
	tokens TokenIssuer,
	runTimeout time.Duration,
	log logger.ILogger,
) IResearchService {
	return &researchService{
		sessions:   sessions,
		runner:     runner,
		publisher:  publisher,
		tokens:     tokens,
		runTimeout: runTimeout,
		logger:     log,
	}
}

func (s *researchService) CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error) {
	session := store.NewSession()
	session.OnFactStoreCreated(func(facts *research.FactStore) {
		facts.OnAppend(func(seq int, f research.Fact) {
			s.publish(context.Background(), newEvent(dto.EventFactSaved, session.ID, nil, map[string]interface{}{
				"seq":       seq,
				"fact":      f.Fact,
				"source":    f.Source,
				"timestamp": f.Timestamp,
			}))
		})
	})

	token, exp, err := s.tokens.Issue(session.ID)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	s.sessions.Save(session)

	s.logger.Info("ResearchService", "Session created", map[string]interface{}{"session_id": session.ID.String()})
	return &dto.CreateSessionResponse{Id: session.ID, Token: token, ExpiresAt: exp}, nil
}

func (s *researchService) session(sessionID uuid.UUID) (*store.Session, error) {
	session, found := s.sessions.Get(sessionID)
	if !found || session.Ended() {
		return nil, research.ErrSessionNotFound
	}
	return session, nil
}

func (s *researchService) GetSession(ctx context.Context, sessionID uuid.UUID) (*dto.SessionResponse, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	res := &dto.SessionResponse{
		Id:        session.ID,
		CreatedAt: session.CreatedAt,
		Facts:     session.FactList(),
	}
	if wf := session.Run(); wf != nil {
		res.Run = toRunResponse(wf.Snapshot())
	}
	return res, nil
}

func (s *researchService) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.session(sessionID); err != nil {
		return err
	}
	// Eviction ends the session, which cancels any in-flight run.
	s.sessions.Delete(sessionID)
	s.logger.Info("ResearchService", "Session ended", map[string]interface{}{"session_id": sessionID.String()})
	return nil
}

func (s *researchService) StartRun(ctx context.Context, sessionID uuid.UUID, req *dto.StartRunRequest, wait bool) (*dto.RunResponse, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	// Blank topics stop here: no plan, no stage, no session change.
	wf, err := research.NewWorkflow(req.Topic)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	if err := session.BeginRun(wf, cancel); err != nil {
		cancel()
		return nil, err
	}

	runID := wf.ID
	wf.Observe(func(t research.Transition) {
		data := map[string]interface{}{"from": string(t.From), "to": string(t.To)}
		if t.To == research.StateResearching {
			if plan := wf.Snapshot().Plan; plan != nil {
				data["plan"] = plan
			}
		}
		if t.Err != nil {
			data["error"] = research.UserMessage(t.Err)
		}
		s.publish(context.Background(), newEvent(dto.EventStageChanged, sessionID, &runID, data))
	})

	done := make(chan struct{})
	facts := session.Facts()
	go func() {
		defer close(done)
		defer cancel()

		err := s.runner.Run(runCtx, wf, facts)
		snap := wf.Snapshot()
		if err != nil {
			s.publish(context.Background(), newEvent(dto.EventRunFailed, sessionID, &runID, map[string]interface{}{
				"error": research.UserMessage(err),
				"facts": len(session.FactList()),
			}))
			return
		}
		s.publish(context.Background(), newEvent(dto.EventRunFinished, sessionID, &runID, map[string]interface{}{
			"report": snap.Report,
		}))
	}()

	s.logger.Info("ResearchService", "Research run started", map[string]interface{}{
		"session_id": sessionID.String(),
		"run_id":     runID.String(),
		"topic":      wf.Topic,
	})

	if wait {
		select {
		case <-done:
		case <-ctx.Done():
		}
		snap := wf.Snapshot()
		if snap.State == research.StateFailed {
			return nil, snap.Err
		}
		return toRunResponse(snap), nil
	}
	return toRunResponse(wf.Snapshot()), nil
}

func (s *researchService) SaveFact(ctx context.Context, sessionID uuid.UUID, req *dto.SaveFactRequest) (*dto.SaveFactResponse, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	confirmation := session.Facts().Append(req.Fact, req.Source)
	return &dto.SaveFactResponse{Confirmation: confirmation}, nil
}

func (s *researchService) ListFacts(ctx context.Context, sessionID uuid.UUID) ([]research.Fact, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.FactList(), nil
}

func (s *researchService) GetReport(ctx context.Context, sessionID uuid.UUID) (*research.ResearchReport, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	wf := session.Run()
	if wf == nil {
		return nil, ErrReportNotReady
	}
	snap := wf.Snapshot()
	if snap.Report == nil {
		return nil, ErrReportNotReady
	}
	return snap.Report, nil
}

func (s *researchService) publish(ctx context.Context, evt dto.SessionEventMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("ResearchService", "Failed to publish event", map[string]interface{}{
			"type":  evt.Type,
			"error": err.Error(),
		})
	}
}

func toRunResponse(snap research.Snapshot) *dto.RunResponse {
	res := &dto.RunResponse{
		RunId:     snap.RunID,
		Topic:     snap.Topic,
		State:     snap.State,
		Plan:      snap.Plan,
		Report:    snap.Report,
		StartedAt: snap.StartedAt,
	}
	if snap.Err != nil {
		res.Error = research.UserMessage(snap.Err)
	}
	return res
}
