package purchase_order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"purchasing/internal/core/apperror"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
)

func TestEnsureReceivable(t *testing.T) {
	order := New(id.New(), "buyer")
	assert.NoError(t, order.EnsureReceivable())

	order.Status = StatusReceived
	assert.True(t, apperror.HasCode(order.EnsureReceivable(), apperror.CodeAlreadyReceived))

	order.Status = StatusCancelled
	assert.True(t, apperror.HasCode(order.EnsureReceivable(), apperror.CodeCannotReceiveCancelled))
}

func TestReturnNote(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	note := ReturnNote(at, "", []string{"a x 1", "b x 2 (broken)"}, types.MustMoney("12.5"))
	assert.Equal(t, "[2026-05-04T10:00:00Z] Returned to supplier by unknown: a x 1; b x 2 (broken) (total 12.50)", note)
}

func TestAppendNote(t *testing.T) {
	assert.Equal(t, "line", AppendNote("  ", "line"))
	assert.Equal(t, "first\nline", AppendNote("first", "line"))
}
