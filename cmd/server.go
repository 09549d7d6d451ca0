package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/behzadon/songvote/internal/allocation"
	"github.com/behzadon/songvote/internal/api"
	"github.com/behzadon/songvote/internal/auth"
	"github.com/behzadon/songvote/internal/config"
	changefeed "github.com/behzadon/songvote/internal/events"
	"github.com/behzadon/songvote/internal/logging"
	"github.com/behzadon/songvote/internal/realtime"
	"github.com/behzadon/songvote/internal/retry"
	"github.com/behzadon/songvote/internal/service"
	"github.com/behzadon/songvote/internal/session"
	"github.com/behzadon/songvote/internal/storage/cache"
	"github.com/behzadon/songvote/internal/storage/events"
	"github.com/behzadon/songvote/internal/storage/media"
	"github.com/behzadon/songvote/internal/storage/postgres"
	"github.com/behzadon/songvote/internal/tally"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the songvote server",
	Long:  `Start the songvote HTTP server with the specified configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
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

		if cfg.Migration.AutoMigrate {
			logger.Info("Auto-migration is enabled, running migrations...")
			if err := applyMigrations(db, "up", zapLogger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			logger.Info("Migrations completed successfully")
		} else {
			logger.Info("Auto-migration is disabled, skipping migrations")
		}

		redisClient, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Failed to close Redis connection", err)
			}
		}()
		logger.Info("Successfully connected to Redis")

		publisher, err := events.NewRabbitMQPublisher(
			cfg.RabbitMQ.Host,
			cfg.RabbitMQ.Port,
			cfg.RabbitMQ.User,
			cfg.RabbitMQ.Password,
			cfg.RabbitMQ.VHost,
			zapLogger,
		)
		if err != nil {
			return fmt.Errorf("create RabbitMQ publisher: %w", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("Failed to close RabbitMQ publisher", err)
			}
		}()

		resolver, err := newMediaResolver(ctx, cfg.Media, zapLogger)
		if err != nil {
			return err
		}

		repo := postgres.NewRepository(db, zapLogger)
		redisCache := cache.NewRedisCache(redisClient, cfg.Tally.CacheTTL)
		feed := changefeed.NewRedisFeed(redisClient, zapLogger)
		svc := service.NewService(repo, redisCache, feed, publisher, resolver, zapLogger)
		tallySvc := tally.NewService(svc, redisCache, zapLogger)

		sessions := session.NewManager(svc, feed, sessionConfig(cfg.Voting), zapLogger)
		defer sessions.Shutdown()
		sessions.OnAuthStateChange(func(voterID uuid.UUID, signedIn bool) {
			logger.Debug("Auth state changed",
				zap.String("voter_id", voterID.String()),
				zap.Bool("signed_in", signedIn),
			)
		})

		jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.TokenDuration)
		handler := api.NewHandler(api.Deps{
			Service:    svc,
			Sessions:   sessions,
			Tally:      tallySvc,
			Feed:       feed,
			WatcherCfg: watcherConfig(cfg.Tally),
			Redis:      redisClient,
			JWTManager: jwtManager,
			Logger:     zapLogger,
		})

		if cfg.Server.Env == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		engine := gin.New()
		engine.Use(gin.Recovery())
		engine.Use(logger.GinLogger())
		handler.RegisterRoutes(engine)

		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: engine,
		}

		go func() {
			logger.Info("Starting server",
				zap.Int("port", cfg.Server.Port),
			)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("Failed to start server", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", err)
			return fmt.Errorf("server shutdown: %w", err)
		}

		logger.Info("Server exited properly", zap.Int("open_sessions", sessions.Count()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func sessionConfig(cfg config.VotingConfig) session.Config {
	return session.Config{
		Limits: allocation.Limits{
			MaxPerUser: cfg.MaxVotesPerUser,
			MaxPerSong: cfg.MaxVotesPerSong,
		},
		Retry: retry.Policy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryDelay,
			Factor:    2,
		},
		Realtime: realtime.Config{
			Debounce:     cfg.RealtimeDebounce,
			PollInterval: cfg.PollInterval,
		},
	}
}

func watcherConfig(cfg config.TallyConfig) tally.WatcherConfig {
	return tally.WatcherConfig{
		PollInterval: cfg.PollInterval,
		Debounce:     cfg.Debounce,
	}
}

func newMediaResolver(ctx context.Context, cfg config.MediaConfig, logger *zap.Logger) (*media.Resolver, error) {
	resolver, err := media.NewResolver(media.Config{
		Endpoint:      cfg.Endpoint,
		AccessKey:     cfg.AccessKey,
		SecretKey:     cfg.SecretKey,
		Region:        cfg.Region,
		UseSSL:        cfg.UseSSL,
		Bucket:        cfg.Bucket,
		PublicBaseURL: cfg.PublicBaseURL,
		URLExpiry:     cfg.URLExpiry,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create media resolver: %w", err)
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := resolver.EnsureBucket(ensureCtx); err != nil {
		// songs fall back to their public or stream URLs
		logger.Warn("Media bucket unavailable", zap.Error(err))
	}
	return resolver, nil
}

func connectPostgres(cfg config.PostgresConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
