package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lorrc/severino-relay/internal/core/errors"
)

func TestValidator_CollectsFieldErrors(t *testing.T) {
	v := NewValidator()
	v.Required("room", " ").
		MaxLength("title", strings.Repeat("x", 11), 10).
		Timestamp("at", "14/10/2026").
		Custom("payload", false, "This field is required")

	require.True(t, v.HasErrors())
	errs := v.Errors().Errors
	assert.Contains(t, errs, "room")
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "at")
	assert.Contains(t, errs, "payload")

	err := v.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidPayload))
}

func TestValidator_NoErrors(t *testing.T) {
	v := NewValidator()
	v.Required("room", "managers").
		MaxLength("room", "managers", 256).
		Timestamp("at", "2026-10-14T09:30:00.5Z").
		Timestamp("optional", "")

	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Err())
}
