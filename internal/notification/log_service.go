package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogNotificationService delivers notifications to the log only.
type LogNotificationService struct {
	Logger *zap.Logger
}

func (s *LogNotificationService) SendNotification(ctx context.Context, voterID string, title, message string) error {
	s.Logger.Info("Notification sent",
		zap.String("voter_id", voterID),
		zap.String("title", title),
		zap.String("message", message),
	)
	return nil
}
