package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jacentio/conference/apperr"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"authorization", apperr.Authorization("Authorization required"), apperr.IsAuthorization},
		{"validation", apperr.Validation("name", "required"), apperr.IsValidation},
		{"not found", apperr.NotFound("conference", "abc"), apperr.IsNotFound},
		{"conflict", apperr.Conflict("abc", "already registered"), apperr.IsConflict},
		{"transient", &apperr.TransientStoreError{Attempts: 3, Err: errors.New("boom")}, apperr.IsTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestClassification_NoCrossMatch(t *testing.T) {
	err := apperr.Conflict("k", "no seats available")
	assert.False(t, apperr.IsNotFound(err))
	assert.False(t, apperr.IsValidation(err))
	assert.False(t, apperr.IsTransient(err))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "no conference found with key: abc", apperr.NotFound("conference", "abc").Error())
	assert.Equal(t, `validation failed for field "name": required`, apperr.Validation("name", "required").Error())
	assert.Equal(t, "validation failed: bad", apperr.Validation("", "bad").Error())
	assert.Equal(t, "already registered (key: abc)", apperr.Conflict("abc", "already registered").Error())
	assert.Equal(t, "authorization required", apperr.Authorization("").Error())
}

func TestTransientStoreError_Unwrap(t *testing.T) {
	cause := errors.New("conflict")
	err := &apperr.TransientStoreError{Attempts: 5, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "5 attempts")
}
