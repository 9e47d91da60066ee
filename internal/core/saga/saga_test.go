package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core/apperror"
)

type journal struct {
	entries []string
}

func (j *journal) step(name string, actionErr, compensateErr error) Step {
	return Step{
		Name: name,
		Action: func(ctx context.Context) error {
			if actionErr != nil {
				return actionErr
			}
			j.entries = append(j.entries, "do "+name)
			return nil
		},
		Compensate: func(ctx context.Context) error {
			if compensateErr != nil {
				return compensateErr
			}
			j.entries = append(j.entries, "undo "+name)
			return nil
		},
	}
}

func TestRun_AllStepsSucceed(t *testing.T) {
	j := &journal{}
	s := New("receive")

	err := s.Run(context.Background(), j.step("a", nil, nil), j.step("b", nil, nil))

	require.NoError(t, err)
	assert.Equal(t, []string{"do a", "do b"}, j.entries)
	assert.Equal(t, 2, s.Completed())
}

func TestRun_CompensatesInReverseOrder(t *testing.T) {
	j := &journal{}
	cause := errors.New("insert movement failed")
	s := New("receive")

	err := s.Run(context.Background(),
		j.step("a", nil, nil),
		j.step("b", nil, nil),
		j.step("c", cause, nil),
	)

	assert.Same(t, cause, err)
	assert.Equal(t, []string{"do a", "do b", "undo b", "undo a"}, j.entries)
	assert.Zero(t, s.Completed())
}

func TestRun_CollectsEveryRollbackError(t *testing.T) {
	j := &journal{}
	cause := errors.New("conflict on item 3")
	s := New("return")

	err := s.Run(context.Background(),
		j.step("a", nil, errors.New("restore a: timeout")),
		j.step("b", nil, nil),
		j.step("c", nil, errors.New("restore c: timeout")),
		j.step("d", cause, nil),
	)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePartialFailure, appErr.Code)
	assert.Contains(t, appErr.Message, "conflict on item 3")
	assert.Contains(t, appErr.Message, "compensate a")
	assert.Contains(t, appErr.Message, "compensate c")
	assert.ErrorIs(t, err, cause)
	// the middle step is still undone even though its neighbours failed
	assert.Contains(t, j.entries, "undo b")
}

func TestAbort_WithoutCompletedStepsReturnsCause(t *testing.T) {
	cause := errors.New("validation")
	s := New("noop")
	assert.Same(t, cause, s.Abort(context.Background(), cause))
}

func TestCompensationIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var compensatedWithLiveCtx bool

	s := New("cancelled")
	require.NoError(t, s.Execute(ctx, Step{
		Name:   "a",
		Action: func(context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			compensatedWithLiveCtx = ctx.Err() == nil
			return nil
		},
	}))

	cancel()
	err := s.Execute(ctx, Step{Name: "b", Action: func(ctx context.Context) error { return ctx.Err() }})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, compensatedWithLiveCtx)
}

func TestExecute_AfterAbortFails(t *testing.T) {
	j := &journal{}
	s := New("spent")
	_ = s.Execute(context.Background(), j.step("a", errors.New("boom"), nil))

	err := s.Execute(context.Background(), j.step("b", nil, nil))
	assert.Error(t, err)
	assert.Empty(t, j.entries)
}
