package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultFromError(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name       string
		err        error
		wantStatus Status
	}{
		{"nil passes", nil, StatusPassed},
		{"plain error fails", boom, StatusFailed},
		{"wrapped error fails", fmt.Errorf("step: %w", boom), StatusFailed},
		{"canceled is cancelled", context.Canceled, StatusCancelled},
		{"wrapped canceled is cancelled", fmt.Errorf("apply: %w", context.Canceled), StatusCancelled},
		{"deadline is cancelled", context.DeadlineExceeded, StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ResultFromError(tt.err, "scheme Items")
			assert.Equal(t, tt.wantStatus, r.Status)
			if tt.err != nil {
				assert.ErrorIs(t, r.Err, tt.err)
			}
		})
	}
}

func TestResultHelpers(t *testing.T) {
	r := Failure("No commands available to undo", "")
	assert.False(t, r.OK())
	assert.Equal(t, "No commands available to undo", r.Message)
	assert.Equal(t, "failed: No commands available to undo", r.String())

	c := Cancelled("history")
	assert.True(t, c.IsCancelled())
	assert.False(t, c.OK())
	assert.ErrorIs(t, c.Err, context.Canceled)

	p := Passed("done")
	assert.True(t, p.OK())
	assert.Equal(t, "passed", p.Status.String())
}
