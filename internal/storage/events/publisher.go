package events

import (
	"context"

	"github.com/behzadon/songvote/internal/domain"
)

const (
	Exchange        = "songvote"
	VoteEventsQueue = "vote_events"

	TypeVoteCast    = "vote.cast"
	TypeVoteUpdated = "vote.updated"
)

type Publisher interface {
	PublishVoteCast(ctx context.Context, vote *domain.VoteEvent) error
	PublishVoteUpdated(ctx context.Context, vote *domain.VoteEvent) error
	Close() error
}

type envelope struct {
	Type      string            `json:"type"`
	Timestamp string            `json:"timestamp"`
	Data      *domain.VoteEvent `json:"data"`
}
