package marketplace

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"validation", fmt.Errorf("[op] %w: Price failed on gt", ErrValidation), KindValidation},
		{"validation error type", fmt.Errorf("[op] %w", &ValidationError{Detail: "Price failed on gt"}), KindValidation},
		{"gig not open", fmt.Errorf("[op] %w", ErrGigNotOpen), KindAdmission},
		{"self bid", ErrSelfBid, KindAdmission},
		{"duplicate bid", fmt.Errorf("[a] [b] %w", ErrDuplicateBid), KindAdmission},
		{"conflict", fmt.Errorf("[op] %w", ErrConflict), KindConflict},
		{"transient", fmt.Errorf("[op] %w, last=%w", ErrTransient, ErrStorageConflict), KindTransient},
		{"storage conflict", ErrStorageConflict, KindTransient},
		{"forbidden", ErrForbidden, KindForbidden},
		{"not found", fmt.Errorf("[op] %w", ErrNotFound), KindNotFound},
		{"canceled", fmt.Errorf("[op] %w", context.Canceled), KindCanceled},
		{"inconsistent", ErrInconsistentState, KindInternal},
		{"unknown", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("[op] %w", ErrTransient)))
	assert.False(t, Retryable(ErrConflict))
	assert.False(t, Retryable(nil))
}
