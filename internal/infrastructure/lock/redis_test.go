package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasing/internal/core/apperror"
	corelock "purchasing/internal/core/lock"
)

func fakeLocker(obtainErr, releaseErr error) (*RedisLocker, *[]string) {
	var calls []string
	return &RedisLocker{
		cfg: DefaultConfig(),
		obtain: func(_ context.Context, key string, ttl time.Duration, opt *redislock.Options) (corelock.Release, error) {
			calls = append(calls, "obtain "+key)
			if obtainErr != nil {
				return nil, obtainErr
			}
			return func(context.Context) error {
				calls = append(calls, "release "+key)
				return releaseErr
			}, nil
		},
	}, &calls
}

func TestRedisLocker_ObtainAndRelease(t *testing.T) {
	l, calls := fakeLocker(nil, nil)
	key := corelock.OrderKey("po-1")

	release, err := l.Obtain(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, release(context.Background()))

	assert.Equal(t, []string{"obtain " + key, "release " + key}, *calls)
}

func TestRedisLocker_BusyKeyIsConflict(t *testing.T) {
	l, _ := fakeLocker(redislock.ErrNotObtained, nil)

	_, err := l.Obtain(context.Background(), corelock.OrderKey("po-1"))
	assert.True(t, apperror.IsConflict(err))
}

func TestRedisLocker_RedisDownIsInternal(t *testing.T) {
	l, _ := fakeLocker(errors.New("dial tcp: connection refused"), nil)

	_, err := l.Obtain(context.Background(), "k")
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))
}

func TestRedisLocker_ExpiredLockReleasesQuietly(t *testing.T) {
	l, _ := fakeLocker(nil, redislock.ErrLockNotHeld)

	release, err := l.Obtain(context.Background(), "k")
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}
