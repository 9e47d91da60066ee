package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core/apperror"
)

func TestLocal_SecondObtainWaitsForRelease(t *testing.T) {
	l := NewLocal(0)
	key := OrderKey("po-1")

	release, err := l.Obtain(context.Background(), key)
	require.NoError(t, err)

	obtained := make(chan Release, 1)
	go func() {
		r, err := l.Obtain(context.Background(), key)
		if err == nil {
			obtained <- r
		}
	}()

	select {
	case <-obtained:
		t.Fatal("second obtain must wait while the key is held")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, release(context.Background()))

	select {
	case r := <-obtained:
		assert.NoError(t, r(context.Background()))
	case <-time.After(time.Second):
		t.Fatal("second obtain did not proceed after release")
	}
}

func TestLocal_BusyKeyAfterWaitIsConflict(t *testing.T) {
	l := NewLocal(10 * time.Millisecond)
	key := OrderKey("po-1")

	release, err := l.Obtain(context.Background(), key)
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	_, err = l.Obtain(context.Background(), key)
	assert.True(t, apperror.IsConflict(err))
}

func TestLocal_CancelledContextIsConflict(t *testing.T) {
	l := NewLocal(0)
	key := OrderKey("po-1")

	release, err := l.Obtain(context.Background(), key)
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Obtain(ctx, key)
	assert.True(t, apperror.IsConflict(err))
}

func TestLocal_KeysAreIndependent(t *testing.T) {
	l := NewLocal(10 * time.Millisecond)

	relA, err := l.Obtain(context.Background(), OrderKey("a"))
	require.NoError(t, err)
	relB, err := l.Obtain(context.Background(), OrderKey("b"))
	require.NoError(t, err)

	assert.NoError(t, relA(context.Background()))
	assert.NoError(t, relB(context.Background()))
}

func TestLocal_DoubleReleaseIsHarmless(t *testing.T) {
	l := NewLocal(10 * time.Millisecond)
	key := OrderKey("po-1")

	release, err := l.Obtain(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))
	require.NoError(t, release(context.Background()))

	again, err := l.Obtain(context.Background(), key)
	require.NoError(t, err)
	assert.NoError(t, again(context.Background()))
}
