package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError_Error(t *testing.T) {
	t.Run("with inner error", func(t *testing.T) {
		err := &StoreError{Op: "InsertVote", Kind: KindDuplicateKey, Err: errors.New("pq: duplicate key")}
		assert.Equal(t, "InsertVote: pq: duplicate key", err.Error())
	})
	t.Run("without inner error", func(t *testing.T) {
		err := &StoreError{Op: "UpdateVote", Kind: KindNotFound}
		assert.Equal(t, "UpdateVote: not_found", err.Error())
	})
}

func TestStoreError_Is(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewStoreError("InsertVote", KindDuplicateKey, errors.New("conflict")))

	assert.True(t, errors.Is(err, ErrDuplicateKey))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrNetworkTransient))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"nil", nil, ""},
		{"store error", NewStoreError("FetchVotes", KindNetworkTransient, errors.New("dial tcp")), KindNetworkTransient},
		{"wrapped store error", fmt.Errorf("load: %w", NewStoreError("op", KindPermissionDenied, nil)), KindPermissionDenied},
		{"sentinel", ErrInvalidKey, KindInvalidKey},
		{"wrapped sentinel", fmt.Errorf("commit: %w", ErrInvariantViolation), KindInvariantViolation},
		{"plain error", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewStoreError("op", KindNetworkTransient, nil)))
	assert.False(t, IsRetryable(NewStoreError("op", KindDuplicateKey, nil)))
	assert.False(t, IsRetryable(NewStoreError("op", KindSessionExpired, nil)))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestMessageFor(t *testing.T) {
	tests := []struct {
		kind       ErrorKind
		text       string
		persistent bool
	}{
		{KindSessionExpired, "Your session has expired. Please sign in again.", true},
		{KindPermissionDenied, "You are not allowed to do that. Please sign in again.", true},
		{KindNetworkTransient, "Network error. Please check your connection and try again.", false},
		{KindDuplicateKey, "You have already voted for this song. Please refresh.", false},
		{KindNotConfigured, "This tally display is not configured. Add an artist key to the URL.", true},
		{ErrorKind("bogus"), "Something went wrong. Please try again.", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			msg := MessageFor(tt.kind)
			assert.Equal(t, tt.text, msg.Text)
			assert.Equal(t, tt.persistent, msg.Persistent)
			if tt.persistent {
				assert.Zero(t, msg.DismissAfter)
			} else {
				assert.Equal(t, int64(5000), msg.DismissAfter)
			}
		})
	}
}

func TestSubmitNotice(t *testing.T) {
	one := SubmitNotice(1)
	assert.Equal(t, "Successfully voted with 1 point!", one.Text)
	assert.Equal(t, SuccessDismissAfter.Milliseconds(), one.DismissAfter)
	assert.False(t, one.Persistent)

	assert.Equal(t, "Successfully voted with 4 points!", SubmitNotice(4).Text)
}
