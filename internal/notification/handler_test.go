package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendNotification(ctx context.Context, voterID string, title, message string) error {
	args := m.Called(ctx, voterID, title, message)
	return args.Error(0)
}

type MockTotals struct {
	mock.Mock
}

func (m *MockTotals) SumVoterPoints(ctx context.Context, voterID uuid.UUID) (int, error) {
	args := m.Called(ctx, voterID)
	return args.Int(0), args.Error(1)
}

type MockTally struct {
	mock.Mock
}

func (m *MockTally) Refresh(ctx context.Context, songID uuid.UUID) (*domain.Tally, error) {
	args := m.Called(ctx, songID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tally), args.Error(1)
}

func TestNotificationHandler(t *testing.T) {
	vote := &domain.VoteEvent{VoterID: uuid.New(), SongID: uuid.New(), Points: 5, Delta: 5}

	tests := []struct {
		name        string
		total       int
		totalErr    error
		tallyErr    error
		expectSend  bool
		expectError bool
	}{
		{name: "budget not yet spent", total: 7},
		{name: "budget spent sends thank you", total: 10, expectSend: true},
		{name: "tally refresh failure is tolerated", total: 10, tallyErr: errors.New("redis down"), expectSend: true},
		{name: "total lookup failure requeues", totalErr: errors.New("connection refused"), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := new(MockNotificationService)
			totals := new(MockTotals)
			tally := new(MockTally)

			if tt.tallyErr != nil {
				tally.On("Refresh", mock.Anything, vote.SongID).Return(nil, tt.tallyErr)
			} else {
				tally.On("Refresh", mock.Anything, vote.SongID).Return(&domain.Tally{SongID: vote.SongID}, nil)
			}
			totals.On("SumVoterPoints", mock.Anything, vote.VoterID).Return(tt.total, tt.totalErr)
			if tt.expectSend {
				notifier.On("SendNotification", mock.Anything, vote.VoterID.String(), "Thank you for voting!", mock.Anything).Return(nil)
			}

			h := NewNotificationHandler(notifier, totals, tally, 10, zap.NewNop())
			err := h.HandleVoteCast(context.Background(), vote)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			if tt.expectSend {
				notifier.AssertExpectations(t)
			} else {
				notifier.AssertNotCalled(t, "SendNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			tally.AssertExpectations(t)
		})
	}
}

func TestLogNotificationService(t *testing.T) {
	s := &LogNotificationService{Logger: zap.NewNop()}
	assert.NoError(t, s.SendNotification(context.Background(), uuid.New().String(), "title", "message"))
}
