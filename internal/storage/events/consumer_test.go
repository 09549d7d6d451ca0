package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) HandleVoteCast(ctx context.Context, vote *domain.VoteEvent) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *MockEventHandler) HandleVoteUpdated(ctx context.Context, vote *domain.VoteEvent) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func TestDispatch(t *testing.T) {
	vote := &domain.VoteEvent{
		VoterID:    uuid.New(),
		SongID:     uuid.New(),
		Points:     3,
		Delta:      2,
		OccurredAt: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name        string
		eventType   string
		setupMocks  func(h *MockEventHandler)
		expectError bool
	}{
		{
			name:      "vote cast",
			eventType: TypeVoteCast,
			setupMocks: func(h *MockEventHandler) {
				h.On("HandleVoteCast", mock.Anything, vote).Return(nil)
			},
		},
		{
			name:      "vote updated",
			eventType: TypeVoteUpdated,
			setupMocks: func(h *MockEventHandler) {
				h.On("HandleVoteUpdated", mock.Anything, vote).Return(nil)
			},
		},
		{
			name:        "unknown type",
			eventType:   "vote.deleted",
			setupMocks:  func(h *MockEventHandler) {},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := new(MockEventHandler)
			tt.setupMocks(h)

			body, err := json.Marshal(envelope{Type: tt.eventType, Timestamp: vote.OccurredAt.Format(time.RFC3339), Data: vote})
			assert.NoError(t, err)

			err = Dispatch(context.Background(), h, body)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			h.AssertExpectations(t)
		})
	}
}

func TestDispatch_InvalidBody(t *testing.T) {
	h := new(MockEventHandler)
	assert.Error(t, Dispatch(context.Background(), h, []byte("not json")))
	h.AssertNotCalled(t, "HandleVoteCast", mock.Anything, mock.Anything)
}
