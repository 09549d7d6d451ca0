package domain

import (
	"context"

	"github.com/google/uuid"
)

// VoteStore is the authoritative store consumed by sessions and the tally read path.
type VoteStore interface {
	FetchSongs(ctx context.Context) ([]Song, error)
	FetchSong(ctx context.Context, id uuid.UUID) (*Song, error)
	FetchVotes(ctx context.Context, voterID uuid.UUID) ([]VoteRecord, error)
	FetchSongVotes(ctx context.Context, songID uuid.UUID) ([]VoteRecord, error)
	InsertVote(ctx context.Context, vote VoteRecord) error
	UpdateVote(ctx context.Context, voterID, songID uuid.UUID, points int) error
}

type Subscription interface {
	Close() error
}

// ChangeFeed delivers "something changed" signals; subscribers reload on their own.
type ChangeFeed interface {
	SubscribeVoter(ctx context.Context, voterID uuid.UUID, onChange func()) (Subscription, error)
	SubscribeSong(ctx context.Context, songID uuid.UUID, onChange func()) (Subscription, error)
}

type Repository interface {
	VoteStore

	CreateVoter(ctx context.Context, voter *Voter) error
	GetVoterByID(ctx context.Context, id uuid.UUID) (*Voter, error)
	GetVoterByEmail(ctx context.Context, email string) (*Voter, error)
	SumVoterPoints(ctx context.Context, voterID uuid.UUID) (int, error)
}
