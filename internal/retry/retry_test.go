package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoVal_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, WithBackoff(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoVal_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	cause := errors.New("bad request")
	_, err := DoVal(context.Background(), func() (int, error) {
		calls++
		return 0, Permanent(cause)
	}, WithBackoff(time.Millisecond))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("down")
	}, WithMaxAttempts(2), WithBackoff(time.Millisecond))

	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func() error {
		calls++
		return errors.New("down")
	}, WithBackoff(time.Hour))

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
