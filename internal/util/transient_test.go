package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
)

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "ETIMEDOUT",
			err:      syscall.ETIMEDOUT,
			expected: true,
		},
		{
			name:     "ECONNREFUSED",
			err:      syscall.ECONNREFUSED,
			expected: true,
		},
		{
			name:     "ENOENT (not transient)",
			err:      syscall.ENOENT,
			expected: false,
		},
		{
			name:     "PathError wrapping EIO",
			err:      &os.PathError{Op: "write", Path: "/tmp/x", Err: syscall.EIO},
			expected: true,
		},
		{
			name:     "wrapped deadline",
			err:      fmt.Errorf("lookup: %w", context.DeadlineExceeded),
			expected: true,
		},
		{
			name:     "message pattern",
			err:      errors.New("dial tcp: connection reset by peer"),
			expected: true,
		},
		{
			name:     "corrupt index",
			err:      fmt.Errorf("index.json: %w", ErrCorrupt),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsTransientError(tt.err)
			if result != tt.expected {
				t.Errorf("IsTransientError(%v) = %v, expected %v", tt.err, result, tt.expected)
			}
		})
	}
}
