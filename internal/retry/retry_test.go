package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTemporary = errors.New("temporary error")
	errPermanent = errors.New("permanent error")
)

func isTemporary(err error) bool {
	return errors.Is(err, errTemporary)
}

func TestPolicy_Do(t *testing.T) {
	tests := map[string]struct {
		failures      int
		failWith      error
		expectedCalls int
		wantErr       error
	}{
		"success on first attempt": {
			failures:      0,
			expectedCalls: 1,
		},
		"success on third attempt": {
			failures:      2,
			failWith:      errTemporary,
			expectedCalls: 3,
		},
		"failure after max attempts": {
			failures:      10,
			failWith:      errTemporary,
			expectedCalls: 4,
			wantErr:       errTemporary,
		},
		"non-retryable error fails immediately": {
			failures:      10,
			failWith:      errPermanent,
			expectedCalls: 1,
			wantErr:       errPermanent,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			p := NewPolicy(4, time.Millisecond, isTemporary)

			calls := 0
			err := p.Do(context.Background(), func(context.Context) error {
				calls++
				if calls <= tc.failures {
					return tc.failWith
				}
				return nil
			})

			assert.Equal(t, tc.expectedCalls, calls)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestPolicy_Do_NilClassifierRetriesEverything(t *testing.T) {
	p := NewPolicy(3, 0, nil)

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errPermanent
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_ContextCancellation(t *testing.T) {
	p := NewPolicy(5, time.Hour, isTemporary)
	p.jitter = func() float64 { return 0.99 }

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Do(ctx, func(context.Context) error {
		calls++
		return errTemporary
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPolicy_Backoff_WithinJitterRange(t *testing.T) {
	p := NewPolicy(3, time.Second, nil)

	for i := 0; i < 100; i++ {
		d := p.Backoff()
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, time.Second)
	}

	p.jitter = func() float64 { return 0.5 }
	assert.Equal(t, 500*time.Millisecond, p.Backoff())
}

func TestNewPolicy_ClampsAttempts(t *testing.T) {
	assert.Equal(t, 1, NewPolicy(0, time.Second, nil).MaxAttempts)
}
