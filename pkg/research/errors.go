package research

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is fatal at startup (e.g. missing credential).
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstreamUnavailable means a search or model call failed after retries.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrSchemaViolation means model output did not match the expected structure.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrUserInput is returned for empty or invalid topics, before any stage runs.
	ErrUserInput = errors.New("invalid user input")

	ErrRunInProgress     = errors.New("a research run is already in progress for this session")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid workflow transition")
)

// StageError ties a failure to the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// UserMessage returns a short, non-technical description of err for display.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUserInput):
		return "Please enter a research topic."
	case errors.Is(err, ErrUpstreamUnavailable):
		return "A research service is temporarily unavailable. Please try again in a moment."
	case errors.Is(err, ErrSchemaViolation):
		return "The assistant returned an unexpected answer. Please try again."
	case errors.Is(err, ErrRunInProgress):
		return "Research is already running for this session."
	case errors.Is(err, ErrSessionNotFound):
		return "Your session has expired. Please start a new one."
	case errors.Is(err, ErrConfiguration):
		return "The service is not configured correctly."
	default:
		return "Something went wrong while researching. Please try again."
	}
}
