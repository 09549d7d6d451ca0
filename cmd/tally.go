package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/behzadon/songvote/internal/domain"
	changefeed "github.com/behzadon/songvote/internal/events"
	"github.com/behzadon/songvote/internal/logging"
	"github.com/behzadon/songvote/internal/storage/cache"
	"github.com/behzadon/songvote/internal/storage/postgres"
	"github.com/behzadon/songvote/internal/tally"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	tallySongKey string

	tallyCmd = &cobra.Command{
		Use:   "tally",
		Short: "Follow a song's running total",
	}

	tallyWatchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print a song's total every time it changes",
		Long: `Print one JSON line per total change for the song named by --song.
This is the terminal counterpart of the artist overlay.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cfg := GetConfig()

			zapLogger, err := logging.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer syncLogger(zapLogger)

			db, err := connectPostgres(cfg.Postgres)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					zapLogger.Error("Failed to close database connection", zap.Error(err))
				}
			}()

			redisClient, err := connectRedis(ctx, cfg.Redis)
			if err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			defer func() {
				if err := redisClient.Close(); err != nil {
					zapLogger.Error("Failed to close Redis connection", zap.Error(err))
				}
			}()

			repo := postgres.NewRepository(db, zapLogger)
			svc := tally.NewService(repo, cache.NewRedisCache(redisClient, cfg.Tally.CacheTTL), zapLogger)

			song, err := svc.Resolve(ctx, tallySongKey)
			if err != nil {
				msg := domain.MessageFor(domain.KindOf(err))
				return fmt.Errorf("%s: %w", msg.Text, err)
			}

			enc := json.NewEncoder(os.Stdout)
			watcher := tally.NewWatcher(svc, changefeed.NewRedisFeed(redisClient, zapLogger), *song, watcherConfig(cfg.Tally), zapLogger)
			return watcher.Run(ctx, func(t domain.Tally) {
				if err := enc.Encode(t); err != nil {
					zapLogger.Error("Failed to write tally", zap.Error(err))
				}
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(tallyCmd)
	tallyCmd.AddCommand(tallyWatchCmd)
	tallyWatchCmd.Flags().StringVar(&tallySongKey, "song", "", "song id to follow")
}
