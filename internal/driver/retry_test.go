package driver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindlehq/spindle/internal/driver"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net fault" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return e.timeout }

func TestRetryableClassification(t *testing.T) {
	t.Parallel()

	p := driver.NewRetryPolicy()
	assert.False(t, p.Retryable(nil))
	assert.False(t, p.Retryable(context.Canceled))
	assert.False(t, p.Retryable(context.DeadlineExceeded))
	assert.False(t, p.Retryable(timeoutErr{timeout: false}))
	assert.True(t, p.Retryable(timeoutErr{timeout: true}))
	assert.True(t, p.Retryable(errors.New("connection reset by peer")))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := driver.NewRetryPolicy()
	prevCeiling := time.Duration(0)
	for attempt := 0; attempt < 8; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 5*time.Second)
		// The jittered value stays within this attempt's full window.
		ceiling := 250 * time.Millisecond << attempt
		if ceiling > 5*time.Second {
			ceiling = 5 * time.Second
		}
		require.LessOrEqual(t, d, ceiling)
		if ceiling > prevCeiling {
			prevCeiling = ceiling
		}
	}
}

func TestZeroPolicyHasNoDelay(t *testing.T) {
	t.Parallel()

	p := &driver.RetryPolicy{}
	for attempt := 0; attempt < 4; attempt++ {
		assert.Zero(t, p.Backoff(attempt))
	}
}
