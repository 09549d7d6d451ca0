package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/behzadon/songvote/internal/logging"
	"github.com/behzadon/songvote/internal/notification"
	"github.com/behzadon/songvote/internal/storage/cache"
	"github.com/behzadon/songvote/internal/storage/events"
	"github.com/behzadon/songvote/internal/storage/postgres"
	"github.com/behzadon/songvote/internal/tally"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var voteEventsCmd = &cobra.Command{
	Use:   "vote-events",
	Short: "Start the vote event consumer",
	Long: `Start the consumer that processes durable vote events: it refreshes
song tallies and tells voters when their budget is used up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		cfg := GetConfig()

		zapLogger, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer syncLogger(zapLogger)

		logger := logging.NewLogger(zapLogger)

		db, err := connectPostgres(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close database connection", err)
			}
		}()

		redisClient, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Failed to close Redis connection", err)
			}
		}()

		repo := postgres.NewRepository(db, zapLogger)
		tallySvc := tally.NewService(repo, cache.NewRedisCache(redisClient, cfg.Tally.CacheTTL), zapLogger)

		handler := notification.NewNotificationHandler(
			&notification.LogNotificationService{Logger: zapLogger},
			repo,
			tallySvc,
			cfg.Voting.MaxVotesPerUser,
			zapLogger,
		)

		consumer, err := events.NewRabbitMQConsumer(
			cfg.RabbitMQ.Host,
			cfg.RabbitMQ.Port,
			cfg.RabbitMQ.User,
			cfg.RabbitMQ.Password,
			cfg.RabbitMQ.VHost,
			events.VoteEventsQueue,
			handler,
			zapLogger,
		)
		if err != nil {
			return fmt.Errorf("create RabbitMQ consumer: %w", err)
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				logger.Error("Failed to close RabbitMQ consumer", err)
			}
		}()

		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}

		logger.Info("Vote event consumer started", zap.String("queue", events.VoteEventsQueue))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("Shutting down vote event consumer...")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(voteEventsCmd)
}
