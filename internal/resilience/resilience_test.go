package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := Config{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond}

	callCount := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

	callCount := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := Config{MaxRetries: 2, InitialBackoff: time.Millisecond}

	callCount := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return errors.New("persistent error")
	})

	assert.EqualError(t, err, "persistent error")
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoff_StopsOnPermanent(t *testing.T) {
	cfg := Config{MaxRetries: 5, InitialBackoff: time.Millisecond}
	bad := errors.New("bad request")

	callCount := 0
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return &Permanent{Err: bad}
	})

	assert.ErrorIs(t, err, bad)
	assert.Equal(t, 1, callCount)
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := Config{MaxRetries: 5, InitialBackoff: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_TripsAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, errors.New("boom") })
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Execute(func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBulkhead_LimitsConcurrency(t *testing.T) {
	b := NewBulkhead(2)
	var inFlight, peak int32

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_ = b.Do(context.Background(), func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestBulkhead_AcquireHonoursContext(t *testing.T) {
	b := NewBulkhead(1)
	require.NoError(t, b.Acquire(context.Background()))
	defer b.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Acquire(ctx), context.DeadlineExceeded)
}
