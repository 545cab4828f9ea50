package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, CodeOf(NotFound("line", "abc")))
	assert.Equal(t, ErrCodeValidation, CodeOf(InvalidInput("reason", "required")))
	assert.Equal(t, ErrCodeConflict, CodeOf(Conflict("stale")))

	// Uncoded errors default to internal.
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("boom")))
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := New(ErrCodeConflict, "stale line")
	wrapped := fmt.Errorf("advance: %w", inner)

	assert.True(t, IsCode(wrapped, ErrCodeConflict))
	assert.False(t, IsCode(wrapped, ErrCodeNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrCodeInternal, "query failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "query failed")
	assert.Contains(t, err.Error(), "connection refused")
}
