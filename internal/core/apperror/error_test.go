package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidation("bad"), http.StatusBadRequest},
		{"state", NewState("", "not pending"), http.StatusBadRequest},
		{"already received", NewState(CodeAlreadyReceived, "done"), http.StatusBadRequest},
		{"conflict", NewInventoryConflict("Widget"), http.StatusBadRequest},
		{"insufficient stock", NewInsufficientStock("p1", "5", "2"), http.StatusBadRequest},
		{"not found", NewNotFound("purchase order", "x"), http.StatusNotFound},
		{"persistence", NewPersistence("insert movement", errors.New("boom")), http.StatusInternalServerError},
		{"partial", NewPartialFailure(errors.New("boom"), []error{errors.New("restore failed")}), http.StatusInternalServerError},
		{"plain error", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.err))
		})
	}
}

func TestInventoryConflictMessage(t *testing.T) {
	err := NewInventoryConflict("Widget")
	assert.Equal(t, CodeConflict, err.Code)
	assert.Equal(t, "Inventory update conflict for Widget. Please retry", err.Message)
	assert.True(t, IsConflict(fmt.Errorf("wrapped: %w", err)))
}

func TestPartialFailureNamesCauseAndRollbackErrors(t *testing.T) {
	cause := errors.New("insert movement: connection reset")
	err := NewPartialFailure(cause, []error{
		errors.New("restore product A: timeout"),
		errors.New("delete movement 2: timeout"),
	})

	assert.Contains(t, err.Message, "connection reset")
	assert.Contains(t, err.Message, "restore product A")
	assert.Contains(t, err.Message, "delete movement 2")
	assert.ErrorIs(t, err, cause)
	assert.Len(t, err.Details["rollback_errors"], 2)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap("op", nil))

	notFound := NewNotFound("product", "p1")
	assert.Same(t, notFound, Wrap("op", notFound))

	wrapped := Wrap("load order", errors.New("driver"))
	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeDatabase, appErr.Code)
	assert.Equal(t, "load order", appErr.Details["operation"])
}
