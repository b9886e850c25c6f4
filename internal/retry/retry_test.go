package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type zeroBackoff struct{}

func (zeroBackoff) Reset()                  {}
func (zeroBackoff) Duration() time.Duration { return 0 }

type nonRetriableError struct{}

func (nonRetriableError) Error() string { return "permanent" }
func (nonRetriableError) Retry() bool   { return false }

func TestNWithBackoffCtxExhaustsTries(t *testing.T) {
	calls := 0
	err := NWithBackoffCtx(context.Background(), zeroBackoff{}, 3, func() error {
		calls++
		return errors.New("transient")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestNWithBackoffCtxStopsOnSuccess(t *testing.T) {
	calls := 0
	err := NWithBackoffCtx(context.Background(), zeroBackoff{}, 5, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithBackoffCtxRespectsNonRetriable(t *testing.T) {
	calls := 0
	err := WithBackoffCtx(context.Background(), zeroBackoff{}, func() error {
		calls++
		return nonRetriableError{}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffCtxHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithBackoffCtx(ctx, zeroBackoff{}, func() error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimpleBackoffGrowsAndCaps(t *testing.T) {
	b := NewSimpleBackoff(time.Second, 4*time.Second, 0, 2)

	assert.Equal(t, time.Second, b.Duration())
	assert.Equal(t, 2*time.Second, b.Duration())
	assert.Equal(t, 4*time.Second, b.Duration())
	// Capped at max from here on.
	assert.Equal(t, 4*time.Second, b.Duration())

	b.Reset()
	assert.Equal(t, time.Second, b.Duration())
}

func TestAddJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := AddJitter(time.Second, 500*time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1500*time.Millisecond)
	}

	assert.Equal(t, time.Second, AddJitter(time.Second, 0))
}
