package notification

import (
	"context"
	"fmt"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/storage/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationService interface {
	SendNotification(ctx context.Context, voterID string, title, message string) error
}

type VoterTotals interface {
	SumVoterPoints(ctx context.Context, voterID uuid.UUID) (int, error)
}

type TallyRefresher interface {
	Refresh(ctx context.Context, songID uuid.UUID) (*domain.Tally, error)
}

type NotificationHandler struct {
	notificationService NotificationService
	totals              VoterTotals
	tally               TallyRefresher
	maxPerUser          int
	logger              *zap.Logger
}

func NewNotificationHandler(
	notificationService NotificationService,
	totals VoterTotals,
	tally TallyRefresher,
	maxPerUser int,
	logger *zap.Logger,
) events.EventHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		totals:              totals,
		tally:               tally,
		maxPerUser:          maxPerUser,
		logger:              logger,
	}
}

func (h *NotificationHandler) HandleVoteCast(ctx context.Context, vote *domain.VoteEvent) error {
	h.logger.Info("Vote cast",
		zap.String("voter_id", vote.VoterID.String()),
		zap.String("song_id", vote.SongID.String()),
		zap.Int("points", vote.Points),
	)
	return h.handle(ctx, vote)
}

func (h *NotificationHandler) HandleVoteUpdated(ctx context.Context, vote *domain.VoteEvent) error {
	h.logger.Info("Vote updated",
		zap.String("voter_id", vote.VoterID.String()),
		zap.String("song_id", vote.SongID.String()),
		zap.Int("points", vote.Points),
	)
	return h.handle(ctx, vote)
}

func (h *NotificationHandler) handle(ctx context.Context, vote *domain.VoteEvent) error {
	if h.tally != nil {
		if _, err := h.tally.Refresh(ctx, vote.SongID); err != nil {
			h.logger.Warn("Failed to refresh tally",
				zap.Error(err),
				zap.String("song_id", vote.SongID.String()),
			)
		}
	}

	total, err := h.totals.SumVoterPoints(ctx, vote.VoterID)
	if err != nil {
		return fmt.Errorf("sum voter points: %w", err)
	}
	if total != h.maxPerUser {
		return nil
	}

	return h.notificationService.SendNotification(ctx, vote.VoterID.String(),
		"Thank you for voting!",
		fmt.Sprintf("You have used all %d of your votes.", h.maxPerUser),
	)
}
