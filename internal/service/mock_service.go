package service

import (
	"context"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) FetchSongs(ctx context.Context) ([]domain.Song, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Song), args.Error(1)
}

func (m *MockService) ListSongs(ctx context.Context) ([]domain.Song, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Song), args.Error(1)
}

func (m *MockService) FetchSong(ctx context.Context, id uuid.UUID) (*domain.Song, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Song), args.Error(1)
}

func (m *MockService) FetchVotes(ctx context.Context, voterID uuid.UUID) ([]domain.VoteRecord, error) {
	args := m.Called(ctx, voterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VoteRecord), args.Error(1)
}

func (m *MockService) FetchSongVotes(ctx context.Context, songID uuid.UUID) ([]domain.VoteRecord, error) {
	args := m.Called(ctx, songID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VoteRecord), args.Error(1)
}

func (m *MockService) InsertVote(ctx context.Context, vote domain.VoteRecord) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *MockService) UpdateVote(ctx context.Context, voterID, songID uuid.UUID, points int) error {
	args := m.Called(ctx, voterID, songID, points)
	return args.Error(0)
}

func (m *MockService) SumVoterPoints(ctx context.Context, voterID uuid.UUID) (int, error) {
	args := m.Called(ctx, voterID)
	return args.Int(0), args.Error(1)
}

func (m *MockService) RegisterVoter(ctx context.Context, req *domain.RegisterRequest) (*domain.Voter, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Voter), args.Error(1)
}

func (m *MockService) Authenticate(ctx context.Context, email, password string) (*domain.Voter, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Voter), args.Error(1)
}

func (m *MockService) GetVoterByID(ctx context.Context, id uuid.UUID) (*domain.Voter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Voter), args.Error(1)
}
