// Package media resolves playable URLs for song media stored in MinIO.
package media

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const defaultExt = ".mp3"

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	Bucket        string
	PublicBaseURL string
	URLExpiry     time.Duration
}

type Resolver struct {
	client *minio.Client
	cfg    Config
	logger *zap.Logger
}

// NewResolver builds a MinIO backed resolver. Without an endpoint it only
// serves public base URLs.
func NewResolver(cfg Config, logger *zap.Logger) (*Resolver, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = "songs"
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = time.Hour
	}

	r := &Resolver{cfg: cfg, logger: logger}
	if cfg.Endpoint == "" {
		return r, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	r.client = client
	return r, nil
}

// EnsureBucket creates the media bucket when it is missing.
func (r *Resolver) EnsureBucket(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	exists, err := r.client.BucketExists(ctx, r.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", r.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := r.client.MakeBucket(ctx, r.cfg.Bucket, minio.MakeBucketOptions{Region: r.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", r.cfg.Bucket, err)
	}
	r.logger.Info("Created media bucket", zap.String("bucket", r.cfg.Bucket))
	return nil
}

func ObjectName(song domain.Song) string {
	ref := strings.TrimLeft(strings.TrimSpace(song.MediaRef), "/")
	if ref == "" {
		return ""
	}
	if path.Ext(ref) == "" {
		ref += defaultExt
	}
	return ref
}

// MediaURL falls back to the song's stream URL when it has no media reference.
func (r *Resolver) MediaURL(ctx context.Context, song domain.Song) (string, error) {
	object := ObjectName(song)
	if object == "" {
		return song.StreamURL, nil
	}

	if r.client != nil {
		u, err := r.client.PresignedGetObject(ctx, r.cfg.Bucket, object, r.cfg.URLExpiry, url.Values{})
		if err != nil {
			return "", fmt.Errorf("presign %s/%s: %w", r.cfg.Bucket, object, err)
		}
		return u.String(), nil
	}

	if r.cfg.PublicBaseURL != "" {
		return strings.TrimRight(r.cfg.PublicBaseURL, "/") + "/" + object, nil
	}
	return song.StreamURL, nil
}
