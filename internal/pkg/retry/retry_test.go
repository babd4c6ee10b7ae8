package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("service unavailable")

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(3, time.Millisecond), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(3, time.Millisecond), "test", func(context.Context) error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrMaxAttempts)
	assert.ErrorIs(t, err, errTransient)
}

func TestDoStopsOnPermanent(t *testing.T) {
	errBad := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), Fixed(3, time.Millisecond), "test", func(context.Context) error {
		calls++
		return Permanent(errBad)
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, errBad, err)
	assert.False(t, IsPermanent(err))
	assert.True(t, IsPermanent(Permanent(errBad)))
	assert.Nil(t, Permanent(nil))
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Fixed(5, time.Hour), "test", func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoExponentialDelayIsCapped(t *testing.T) {
	start := time.Now()
	p := Policy{Attempts: 4, Delay: time.Millisecond, Multiplier: 10, MaxDelay: 5 * time.Millisecond}
	_ = Do(context.Background(), p, "test", func(context.Context) error { return errTransient })
	assert.Less(t, time.Since(start), time.Second)
}
