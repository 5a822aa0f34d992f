package dto

import (
	"time"

	"research-agent-be/pkg/research"

	"github.com/google/uuid"
)

type CreateSessionResponse struct {
	Id        uuid.UUID `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type StartRunRequest struct {
	Topic string `json:"topic" validate:"required,max=500"`
}

type SaveFactRequest struct {
	Fact   string `json:"fact"`
	Source string `json:"source,omitempty" validate:"omitempty,max=2048"`
}

type SaveFactResponse struct {
	Confirmation string `json:"confirmation"`
}

type RunResponse struct {
	RunId     uuid.UUID                `json:"run_id"`
	Topic     string                   `json:"topic"`
	State     research.State           `json:"state"`
	Plan      *research.ResearchPlan   `json:"plan,omitempty"`
	Report    *research.ResearchReport `json:"report,omitempty"`
	Error     string                   `json:"error,omitempty"`
	StartedAt time.Time                `json:"started_at"`
}

type SessionResponse struct {
	Id        uuid.UUID       `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Facts     []research.Fact `json:"facts"`
	Run       *RunResponse    `json:"run,omitempty"`
}

// Event types streamed to clients and forwarded to the bus.
const (
	EventFactSaved    = "FACT_SAVED"
	EventStageChanged = "STAGE_CHANGED"
	EventRunFinished  = "RUN_FINISHED"
	EventRunFailed    = "RUN_FAILED"
)

// SessionEventMessage is the payload published on the in-process event topic.
type SessionEventMessage struct {
	Type       string                 `json:"type"`
	SessionId  uuid.UUID              `json:"session_id"`
	RunId      *uuid.UUID             `json:"run_id,omitempty"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}
