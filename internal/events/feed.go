package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func VoterChannel(voterID uuid.UUID) string {
	return "songvote:voter:" + voterID.String()
}

func SongChannel(songID uuid.UUID) string {
	return "songvote:song:" + songID.String()
}

// RedisFeed fans vote changes out over Redis pub/sub, one channel per voter and per song.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	return &RedisFeed{
		client: client,
		logger: logger,
	}
}

func (f *RedisFeed) PublishVoteChanged(ctx context.Context, vote domain.VoteEvent) error {
	event := struct {
		Type string           `json:"type"`
		Data domain.VoteEvent `json:"data"`
	}{
		Type: "vote.changed",
		Data: vote,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal vote changed event: %w", err)
	}

	pipe := f.client.Pipeline()
	pipe.Publish(ctx, VoterChannel(vote.VoterID), data)
	pipe.Publish(ctx, SongChannel(vote.SongID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish vote changed event: %w", err)
	}

	f.logger.Debug("published vote changed event",
		zap.String("voter_id", vote.VoterID.String()),
		zap.String("song_id", vote.SongID.String()),
		zap.Int("points", vote.Points),
	)
	return nil
}

func (f *RedisFeed) SubscribeVoter(ctx context.Context, voterID uuid.UUID, onChange func()) (domain.Subscription, error) {
	return f.subscribe(ctx, VoterChannel(voterID), onChange)
}

func (f *RedisFeed) SubscribeSong(ctx context.Context, songID uuid.UUID, onChange func()) (domain.Subscription, error) {
	return f.subscribe(ctx, SongChannel(songID), onChange)
}

func (f *RedisFeed) subscribe(ctx context.Context, channel string, onChange func()) (domain.Subscription, error) {
	sub := f.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		if cerr := sub.Close(); cerr != nil {
			f.logger.Error("Failed to close subscription", zap.Error(cerr))
		}
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	go func() {
		for range sub.Channel() {
			onChange()
		}
	}()
	return sub, nil
}
