package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Migration MigrationConfig `mapstructure:"migration"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Voting    VotingConfig    `mapstructure:"voting"`
	Tally     TallyConfig     `mapstructure:"tally"`
	Media     MediaConfig     `mapstructure:"media"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RabbitMQConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
}

type MigrationConfig struct {
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type JWTConfig struct {
	SecretKey     string        `mapstructure:"secret_key"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
}

type VotingConfig struct {
	MaxVotesPerUser  int           `mapstructure:"max_votes_per_user"`
	MaxVotesPerSong  int           `mapstructure:"max_votes_per_song"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	RealtimeDebounce time.Duration `mapstructure:"realtime_debounce"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
}

type TallyConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Debounce     time.Duration `mapstructure:"debounce"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type MediaConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Region        string        `mapstructure:"region"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	Bucket        string        `mapstructure:"bucket"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	URLExpiry     time.Duration `mapstructure:"url_expiry"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// LoadDotEnv loads a .env file into the process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.vhost", "/")
	v.SetDefault("migration.auto_migrate", false)
	v.SetDefault("jwt.token_duration", 24*time.Hour)

	v.SetDefault("voting.max_votes_per_user", 10)
	v.SetDefault("voting.max_votes_per_song", 5)
	v.SetDefault("voting.retry_attempts", 3)
	v.SetDefault("voting.retry_delay", time.Second)
	v.SetDefault("voting.realtime_debounce", 500*time.Millisecond)
	v.SetDefault("voting.poll_interval", 10*time.Second)

	v.SetDefault("tally.poll_interval", 10*time.Second)
	v.SetDefault("tally.debounce", 500*time.Millisecond)
	v.SetDefault("tally.cache_ttl", 10*time.Second)

	v.SetDefault("media.bucket", "songs")
	v.SetDefault("media.region", "us-east-1")
	v.SetDefault("media.url_expiry", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	if err := bindEnvs(v); err != nil {
		return nil, fmt.Errorf("bind env vars: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func bindEnvs(v *viper.Viper) error {
	bindings := map[string]string{
		"server.port":                "SONGVOTE_SERVER_PORT",
		"server.env":                 "SONGVOTE_SERVER_ENV",
		"postgres.host":              "SONGVOTE_POSTGRES_HOST",
		"postgres.port":              "SONGVOTE_POSTGRES_PORT",
		"postgres.user":              "SONGVOTE_POSTGRES_USER",
		"postgres.password":          "SONGVOTE_POSTGRES_PASSWORD",
		"postgres.dbname":            "SONGVOTE_POSTGRES_DBNAME",
		"postgres.sslmode":           "SONGVOTE_POSTGRES_SSLMODE",
		"redis.host":                 "SONGVOTE_REDIS_HOST",
		"redis.port":                 "SONGVOTE_REDIS_PORT",
		"redis.password":             "SONGVOTE_REDIS_PASSWORD",
		"redis.db":                   "SONGVOTE_REDIS_DB",
		"rabbitmq.host":              "SONGVOTE_RABBITMQ_HOST",
		"rabbitmq.port":              "SONGVOTE_RABBITMQ_PORT",
		"rabbitmq.user":              "SONGVOTE_RABBITMQ_USER",
		"rabbitmq.password":          "SONGVOTE_RABBITMQ_PASSWORD",
		"rabbitmq.vhost":             "SONGVOTE_RABBITMQ_VHOST",
		"migration.auto_migrate":     "SONGVOTE_MIGRATION_AUTO_MIGRATE",
		"jwt.secret_key":             "SONGVOTE_JWT_SECRET_KEY",
		"jwt.token_duration":         "SONGVOTE_JWT_TOKEN_DURATION",
		"voting.max_votes_per_user":  "SONGVOTE_VOTING_MAX_VOTES_PER_USER",
		"voting.max_votes_per_song":  "SONGVOTE_VOTING_MAX_VOTES_PER_SONG",
		"voting.retry_attempts":      "SONGVOTE_VOTING_RETRY_ATTEMPTS",
		"voting.retry_delay":         "SONGVOTE_VOTING_RETRY_DELAY",
		"voting.realtime_debounce":   "SONGVOTE_VOTING_REALTIME_DEBOUNCE",
		"voting.poll_interval":       "SONGVOTE_VOTING_POLL_INTERVAL",
		"tally.poll_interval":        "SONGVOTE_TALLY_POLL_INTERVAL",
		"tally.debounce":             "SONGVOTE_TALLY_DEBOUNCE",
		"tally.cache_ttl":            "SONGVOTE_TALLY_CACHE_TTL",
		"media.endpoint":             "SONGVOTE_MEDIA_ENDPOINT",
		"media.access_key":           "SONGVOTE_MEDIA_ACCESS_KEY",
		"media.secret_key":           "SONGVOTE_MEDIA_SECRET_KEY",
		"media.region":               "SONGVOTE_MEDIA_REGION",
		"media.use_ssl":              "SONGVOTE_MEDIA_USE_SSL",
		"media.bucket":               "SONGVOTE_MEDIA_BUCKET",
		"media.public_base_url":      "SONGVOTE_MEDIA_PUBLIC_BASE_URL",
		"media.url_expiry":           "SONGVOTE_MEDIA_URL_EXPIRY",
		"log.level":                  "SONGVOTE_LOG_LEVEL",
		"log.file":                   "SONGVOTE_LOG_FILE",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("server.port must be greater than 0")
	}
	if cfg.Server.Env == "" {
		return fmt.Errorf("server.env is required")
	}

	if cfg.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	if cfg.Postgres.Port <= 0 {
		return fmt.Errorf("postgres.port must be greater than 0")
	}
	if cfg.Postgres.User == "" {
		return fmt.Errorf("postgres.user is required")
	}
	if cfg.Postgres.DBName == "" {
		return fmt.Errorf("postgres.dbname is required")
	}

	if cfg.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}
	if cfg.Redis.Port <= 0 {
		return fmt.Errorf("redis.port must be greater than 0")
	}

	if cfg.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq.host is required")
	}
	if cfg.RabbitMQ.Port <= 0 {
		return fmt.Errorf("rabbitmq.port must be greater than 0")
	}
	if cfg.RabbitMQ.User == "" {
		return fmt.Errorf("rabbitmq.user is required")
	}

	if cfg.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secret_key is required")
	}
	if cfg.JWT.TokenDuration <= 0 {
		return fmt.Errorf("jwt.token_duration must be greater than 0")
	}

	if cfg.Voting.MaxVotesPerUser <= 0 {
		return fmt.Errorf("voting.max_votes_per_user must be greater than 0")
	}
	if cfg.Voting.MaxVotesPerSong <= 0 || cfg.Voting.MaxVotesPerSong > cfg.Voting.MaxVotesPerUser {
		return fmt.Errorf("voting.max_votes_per_song must be between 1 and voting.max_votes_per_user")
	}
	if cfg.Voting.RetryAttempts <= 0 {
		return fmt.Errorf("voting.retry_attempts must be greater than 0")
	}
	if cfg.Voting.RetryDelay < 0 {
		return fmt.Errorf("voting.retry_delay must not be negative")
	}

	if cfg.Tally.CacheTTL <= 0 {
		return fmt.Errorf("tally.cache_ttl must be greater than 0")
	}

	return nil
}
