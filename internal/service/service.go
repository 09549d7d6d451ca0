package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/behzadon/songvote/internal/auth"
	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/storage/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Cache interface {
	DeleteTally(ctx context.Context, songID uuid.UUID) error
	GetSongs(ctx context.Context) ([]domain.Song, error)
	SetSongs(ctx context.Context, songs []domain.Song) error
}

type ChangePublisher interface {
	PublishVoteChanged(ctx context.Context, vote domain.VoteEvent) error
}

type MediaResolver interface {
	MediaURL(ctx context.Context, song domain.Song) (string, error)
}

// Service is the vote store handed to sessions. Writes go to the repository first;
// cache invalidation and event publishing follow and never fail the write.
type Service interface {
	domain.VoteStore

	ListSongs(ctx context.Context) ([]domain.Song, error)
	SumVoterPoints(ctx context.Context, voterID uuid.UUID) (int, error)

	RegisterVoter(ctx context.Context, req *domain.RegisterRequest) (*domain.Voter, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Voter, error)
	GetVoterByID(ctx context.Context, id uuid.UUID) (*domain.Voter, error)
}

type service struct {
	repo      domain.Repository
	cache     Cache
	feed      ChangePublisher
	publisher events.Publisher
	media     MediaResolver
	logger    *zap.Logger
}

func NewService(
	repo domain.Repository,
	cache Cache,
	feed ChangePublisher,
	publisher events.Publisher,
	media MediaResolver,
	logger *zap.Logger,
) Service {
	return &service{
		repo:      repo,
		cache:     cache,
		feed:      feed,
		publisher: publisher,
		media:     media,
		logger:    logger,
	}
}

func (s *service) FetchSongs(ctx context.Context) ([]domain.Song, error) {
	if s.cache != nil {
		songs, err := s.cache.GetSongs(ctx)
		if err != nil {
			s.logger.Warn("Failed to read songs from cache", zap.Error(err))
		} else if songs != nil {
			return songs, nil
		}
	}

	songs, err := s.repo.FetchSongs(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetSongs(ctx, songs); err != nil {
			s.logger.Warn("Failed to cache songs", zap.Error(err))
		}
	}
	return songs, nil
}

// ListSongs returns the catalogue with playable media URLs resolved.
func (s *service) ListSongs(ctx context.Context) ([]domain.Song, error) {
	songs, err := s.FetchSongs(ctx)
	if err != nil {
		return nil, err
	}
	if s.media == nil {
		return songs, nil
	}

	out := make([]domain.Song, len(songs))
	for i, song := range songs {
		mediaURL, err := s.media.MediaURL(ctx, song)
		if err != nil {
			s.logger.Warn("Failed to resolve media URL",
				zap.Error(err),
				zap.String("song_id", song.ID.String()),
			)
		}
		song.MediaURL = mediaURL
		out[i] = song
	}
	return out, nil
}

func (s *service) FetchSong(ctx context.Context, id uuid.UUID) (*domain.Song, error) {
	return s.repo.FetchSong(ctx, id)
}

func (s *service) FetchVotes(ctx context.Context, voterID uuid.UUID) ([]domain.VoteRecord, error) {
	return s.repo.FetchVotes(ctx, voterID)
}

func (s *service) FetchSongVotes(ctx context.Context, songID uuid.UUID) ([]domain.VoteRecord, error) {
	return s.repo.FetchSongVotes(ctx, songID)
}

func (s *service) SumVoterPoints(ctx context.Context, voterID uuid.UUID) (int, error) {
	return s.repo.SumVoterPoints(ctx, voterID)
}

func (s *service) InsertVote(ctx context.Context, vote domain.VoteRecord) error {
	if vote.Points <= 0 {
		return domain.ErrInvalidInput
	}
	if err := s.repo.InsertVote(ctx, vote); err != nil {
		return err
	}

	s.afterWrite(ctx, events.TypeVoteCast, domain.VoteEvent{
		VoterID:    vote.VoterID,
		SongID:     vote.SongID,
		Points:     vote.Points,
		Delta:      vote.Points,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

func (s *service) UpdateVote(ctx context.Context, voterID, songID uuid.UUID, points int) error {
	if points <= 0 {
		return domain.ErrInvalidInput
	}
	if err := s.repo.UpdateVote(ctx, voterID, songID, points); err != nil {
		return err
	}

	s.afterWrite(ctx, events.TypeVoteUpdated, domain.VoteEvent{
		VoterID:    voterID,
		SongID:     songID,
		Points:     points,
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

func (s *service) afterWrite(ctx context.Context, eventType string, event domain.VoteEvent) {
	if s.cache != nil {
		if err := s.cache.DeleteTally(ctx, event.SongID); err != nil {
			s.logger.Warn("Failed to invalidate tally cache",
				zap.Error(err),
				zap.String("song_id", event.SongID.String()),
			)
		}
	}

	if s.feed != nil {
		if err := s.feed.PublishVoteChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish vote change notification",
				zap.Error(err),
				zap.String("voter_id", event.VoterID.String()),
				zap.String("song_id", event.SongID.String()),
			)
		}
	}

	if s.publisher == nil {
		return
	}
	var err error
	if eventType == events.TypeVoteCast {
		err = s.publisher.PublishVoteCast(ctx, &event)
	} else {
		err = s.publisher.PublishVoteUpdated(ctx, &event)
	}
	if err != nil {
		s.logger.Error("Failed to publish vote event",
			zap.Error(err),
			zap.String("type", eventType),
			zap.String("voter_id", event.VoterID.String()),
			zap.String("song_id", event.SongID.String()),
		)
	}
}

func (s *service) RegisterVoter(ctx context.Context, req *domain.RegisterRequest) (*domain.Voter, error) {
	if req == nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, domain.ErrInvalidInput
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	voter := &domain.Voter{
		ID:        uuid.New(),
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Password:  hash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateVoter(ctx, voter); err != nil {
		return nil, err
	}
	return voter, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*domain.Voter, error) {
	voter, err := s.repo.GetVoterByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get voter by email: %w", err)
	}
	if !auth.CheckPassword(password, voter.Password) {
		return nil, domain.ErrInvalidCredentials
	}
	return voter, nil
}

func (s *service) GetVoterByID(ctx context.Context, id uuid.UUID) (*domain.Voter, error) {
	return s.repo.GetVoterByID(ctx, id)
}
