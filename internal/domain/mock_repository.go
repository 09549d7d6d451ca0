package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FetchSongs(ctx context.Context) ([]Song, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Song), args.Error(1)
}

func (m *MockRepository) FetchSong(ctx context.Context, id uuid.UUID) (*Song, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Song), args.Error(1)
}

func (m *MockRepository) FetchVotes(ctx context.Context, voterID uuid.UUID) ([]VoteRecord, error) {
	args := m.Called(ctx, voterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]VoteRecord), args.Error(1)
}

func (m *MockRepository) FetchSongVotes(ctx context.Context, songID uuid.UUID) ([]VoteRecord, error) {
	args := m.Called(ctx, songID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]VoteRecord), args.Error(1)
}

func (m *MockRepository) InsertVote(ctx context.Context, vote VoteRecord) error {
	args := m.Called(ctx, vote)
	return args.Error(0)
}

func (m *MockRepository) UpdateVote(ctx context.Context, voterID, songID uuid.UUID, points int) error {
	args := m.Called(ctx, voterID, songID, points)
	return args.Error(0)
}

func (m *MockRepository) CreateVoter(ctx context.Context, voter *Voter) error {
	args := m.Called(ctx, voter)
	return args.Error(0)
}

func (m *MockRepository) GetVoterByID(ctx context.Context, id uuid.UUID) (*Voter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Voter), args.Error(1)
}

func (m *MockRepository) GetVoterByEmail(ctx context.Context, email string) (*Voter, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Voter), args.Error(1)
}

func (m *MockRepository) SumVoterPoints(ctx context.Context, voterID uuid.UUID) (int, error) {
	args := m.Called(ctx, voterID)
	return args.Int(0), args.Error(1)
}
