// Package tally serves read-only running totals for a single song.
package tally

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	FetchSong(ctx context.Context, id uuid.UUID) (*domain.Song, error)
	FetchSongVotes(ctx context.Context, songID uuid.UUID) ([]domain.VoteRecord, error)
}

type Cache interface {
	GetTally(ctx context.Context, songID uuid.UUID) (*domain.Tally, error)
	SetTally(ctx context.Context, tally *domain.Tally) error
}

type Service struct {
	store  Store
	cache  Cache
	logger *zap.Logger
}

func NewService(store Store, cache Cache, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Resolve maps a widget key to its song.
func (s *Service) Resolve(ctx context.Context, key string) (*domain.Song, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrNotConfigured
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKey, key)
	}

	song, err := s.store.FetchSong(ctx, id)
	if err != nil {
		return nil, err
	}
	return song, nil
}

func (s *Service) Total(ctx context.Context, song *domain.Song) (*domain.Tally, error) {
	if s.cache != nil {
		cached, err := s.cache.GetTally(ctx, song.ID)
		if err != nil {
			s.logger.Warn("Failed to read tally from cache",
				zap.Error(err),
				zap.String("song_id", song.ID.String()),
			)
		} else if cached != nil {
			return cached, nil
		}
	}
	return s.compute(ctx, song)
}

// Refresh recomputes the total from the store and overwrites the cached value.
func (s *Service) Refresh(ctx context.Context, songID uuid.UUID) (*domain.Tally, error) {
	song, err := s.store.FetchSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	return s.compute(ctx, song)
}

func (s *Service) compute(ctx context.Context, song *domain.Song) (*domain.Tally, error) {
	votes, err := s.store.FetchSongVotes(ctx, song.ID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, v := range votes {
		total += v.Points
	}
	tally := &domain.Tally{
		SongID:      song.ID,
		DisplayName: song.DisplayName,
		Total:       total,
		UpdatedAt:   time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.SetTally(ctx, tally); err != nil {
			s.logger.Warn("Failed to cache tally",
				zap.Error(err),
				zap.String("song_id", song.ID.String()),
			)
		}
	}
	return tally, nil
}
