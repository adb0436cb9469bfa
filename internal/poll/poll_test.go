package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"autoeval/internal/control"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func running(t *testing.T) *control.Controller {
	t.Helper()
	c := control.New(time.Millisecond)
	require.NoError(t, c.Begin())
	t.Cleanup(func() { c.End(control.StateCompleted, "") })
	return c
}

func TestReadyOnThirdAttempt(t *testing.T) {
	c := running(t)
	calls := 0
	res, err := WaitUntil(context.Background(), c, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	}, time.Millisecond, 10)

	require.NoError(t, err)
	assert.True(t, res.Ready())
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, calls)
}

func TestTimeoutIsAResult(t *testing.T) {
	c := running(t)
	calls := 0
	res, err := WaitUntil(context.Background(), c, func(context.Context) (bool, error) {
		calls++
		return false, nil
	}, time.Millisecond, 4)

	require.NoError(t, err)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, 4, calls)
	assert.Contains(t, res.String(), "timed_out")
}

func TestPredicateErrorCountsAsNotReady(t *testing.T) {
	c := running(t)
	boom := errors.New("boom")
	calls := 0
	res, err := WaitUntil(context.Background(), c, func(context.Context) (bool, error) {
		calls++
		if calls == 1 {
			return false, boom
		}
		return true, nil
	}, time.Millisecond, 3)

	require.NoError(t, err)
	assert.True(t, res.Ready())
	assert.ErrorIs(t, res.LastErr, boom)
}

func TestStopCancelsWait(t *testing.T) {
	c := running(t)
	calls := 0
	_, err := WaitUntil(context.Background(), c, func(context.Context) (bool, error) {
		calls++
		c.Stop()
		return false, nil
	}, time.Hour, 10)

	assert.ErrorIs(t, err, control.ErrCancelled)
	assert.Equal(t, 1, calls, "no evaluation after stop")
}

func TestZeroAttemptsEvaluatesOnce(t *testing.T) {
	c := running(t)
	res, err := WaitUntil(context.Background(), c, func(context.Context) (bool, error) { return true, nil }, time.Millisecond, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
}
