package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/metrics"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	songsKey = "songvote:songs"
	songsTTL = 5 * time.Minute
)

type RedisCache struct {
	client   *redis.Client
	tallyTTL time.Duration
}

func NewRedisCache(client *redis.Client, tallyTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, tallyTTL: tallyTTL}
}

func tallyKey(songID uuid.UUID) string {
	return fmt.Sprintf("songvote:tally:%s", songID.String())
}

// GetTally returns nil, nil on a miss.
func (c *RedisCache) GetTally(ctx context.Context, songID uuid.UUID) (*domain.Tally, error) {
	data, err := c.client.Get(ctx, tallyKey(songID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheOperation("get_tally", false)
			return nil, nil
		}
		return nil, fmt.Errorf("get tally from cache: %w", err)
	}

	var tally domain.Tally
	if err := json.Unmarshal(data, &tally); err != nil {
		return nil, fmt.Errorf("unmarshal tally: %w", err)
	}

	metrics.RecordCacheOperation("get_tally", true)
	return &tally, nil
}

func (c *RedisCache) SetTally(ctx context.Context, tally *domain.Tally) error {
	data, err := json.Marshal(tally)
	if err != nil {
		return fmt.Errorf("marshal tally: %w", err)
	}
	if err := c.client.Set(ctx, tallyKey(tally.SongID), data, c.tallyTTL).Err(); err != nil {
		return fmt.Errorf("set tally in cache: %w", err)
	}
	return nil
}

func (c *RedisCache) DeleteTally(ctx context.Context, songID uuid.UUID) error {
	return c.client.Del(ctx, tallyKey(songID)).Err()
}

// GetSongs returns nil, nil on a miss.
func (c *RedisCache) GetSongs(ctx context.Context) ([]domain.Song, error) {
	data, err := c.client.Get(ctx, songsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheOperation("get_songs", false)
			return nil, nil
		}
		return nil, fmt.Errorf("get songs from cache: %w", err)
	}

	var songs []domain.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("unmarshal songs: %w", err)
	}

	metrics.RecordCacheOperation("get_songs", true)
	return songs, nil
}

func (c *RedisCache) SetSongs(ctx context.Context, songs []domain.Song) error {
	data, err := json.Marshal(songs)
	if err != nil {
		return fmt.Errorf("marshal songs: %w", err)
	}
	if err := c.client.Set(ctx, songsKey, data, songsTTL).Err(); err != nil {
		return fmt.Errorf("set songs in cache: %w", err)
	}
	return nil
}
