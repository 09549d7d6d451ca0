package cmd

import "go.uber.org/zap"

func syncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil {
		logger.Error("Failed to sync logger", zap.Error(err))
	}
}
