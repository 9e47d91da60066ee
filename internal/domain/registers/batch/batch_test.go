package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
)

type failingRepo struct {
	created int
}

func (f *failingRepo) Create(context.Context, *Batch) error {
	f.created++
	return errors.New("relation product_batches does not exist")
}
func (f *failingRepo) DeleteByMovement(context.Context, id.ID) error { return errors.New("gone") }
func (f *failingRepo) ListByProduct(context.Context, id.ID) ([]Batch, error) {
	return nil, nil
}
func (f *failingRepo) SumInitialByProduct(context.Context) (map[id.ID]types.Quantity, error) {
	return nil, nil
}

func TestRecorder_SwallowsWriteFailures(t *testing.T) {
	repo := &failingRepo{}
	r := NewRecorder(repo)
	b := New(id.New(), id.New(), id.New(), types.NewQuantity(5), types.MustMoney("2"), nil)

	assert.False(t, r.Record(context.Background(), b))
	assert.Equal(t, 1, repo.created)
	assert.NotPanics(t, func() { r.Discard(context.Background(), b.MovementID) })
}

func TestRecorder_NilRepoDisablesTracking(t *testing.T) {
	r := NewRecorder(nil)
	assert.False(t, r.Record(context.Background(), &Batch{}))
}

func TestNew_RemainingStartsAtInitial(t *testing.T) {
	b := New(id.New(), id.New(), id.New(), types.NewQuantity(12), types.MustMoney("1.5"), nil)
	assert.Equal(t, b.QuantityInitial, b.QuantityRemaining)
}
