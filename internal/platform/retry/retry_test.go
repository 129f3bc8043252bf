package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) Config {
	return Config{MaxAttempts: maxAttempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastErrorAfterExhaustingAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("still failing")
	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return sentinel
	})

	assert.Equal(t, sentinel, err)
	assert.Equal(t, 3, calls)
}

func TestDoUntil_StopsEarlyOnTerminalError(t *testing.T) {
	calls := 0
	terminal := errors.New("not balanced")
	err := DoUntil(context.Background(), fastConfig(5), func(ctx context.Context) error {
		calls++
		return terminal
	}, func(err error) bool { return true })

	assert.Equal(t, terminal, err)
	assert.Equal(t, 1, calls, "a terminal error must not consume more than one attempt")
}

func TestDoUntil_NilStopBehavesLikeDo(t *testing.T) {
	calls := 0
	err := DoUntil(context.Background(), fastConfig(4), func(ctx context.Context) error {
		calls++
		return errors.New("keep trying")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(5), func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "the first attempt still runs before the post-attempt sleep observes cancellation")
}

func TestJitter_NeverBelowBaseAndBoundedAbove(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := jitter(base)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/5+time.Millisecond)
	}
}

func TestJitter_ZeroOrNegativeIsNoop(t *testing.T) {
	assert.Equal(t, time.Duration(0), jitter(0))
	assert.Equal(t, -time.Millisecond, jitter(-time.Millisecond))
}
