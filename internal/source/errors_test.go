package source

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"auth", fmt.Errorf("token: %w", ErrAuth), true},
		{"rate limited", fmt.Errorf("listing: %w", ErrRateLimited), true},
		{"transport", fmt.Errorf("listing: %w", ErrTransport), true},
		{"malformed", fmt.Errorf("listing: %w", ErrMalformedResponse), true},
		{"cancelled", context.Canceled, false},
		{"other", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
