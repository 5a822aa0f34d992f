package research

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError_Unwraps(t *testing.T) {
	err := fmt.Errorf("run: %w", &StageError{Stage: StageEditing, Err: fmt.Errorf("report: %w", ErrSchemaViolation)})

	assert.ErrorIs(t, err, ErrSchemaViolation)
	var se *StageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, StageEditing, se.Stage)
	assert.Equal(t, "editing stage: report: schema violation", se.Error())
}

func TestUserMessage_HidesInternals(t *testing.T) {
	errs := []error{
		fmt.Errorf("%w: topic is empty", ErrUserInput),
		&StageError{Stage: StageResearching, Err: fmt.Errorf("%w: dial tcp 10.0.0.1:443", ErrUpstreamUnavailable)},
		fmt.Errorf("%w: report: has 12 words", ErrSchemaViolation),
		context.DeadlineExceeded,
		errors.New("panic: nil map"),
	}
	for _, err := range errs {
		msg := UserMessage(err)
		assert.NotEmpty(t, msg)
		assert.NotContains(t, msg, "10.0.0.1")
		assert.NotContains(t, msg, "words")
		assert.NotContains(t, msg, "nil map")
	}
	assert.Empty(t, UserMessage(nil))
}
