package media

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObjectName(t *testing.T) {
	tests := []struct {
		ref      string
		expected string
	}{
		{"", ""},
		{"  ", ""},
		{"night-drive", "night-drive.mp3"},
		{"night-drive.ogg", "night-drive.ogg"},
		{"/albums/night-drive", "albums/night-drive.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.expected, ObjectName(domain.Song{MediaRef: tt.ref}))
		})
	}
}

func TestResolver_PublicFallback(t *testing.T) {
	r, err := NewResolver(Config{PublicBaseURL: "https://cdn.example.com/songs/"}, zap.NewNop())
	require.NoError(t, err)

	got, err := r.MediaURL(context.Background(), domain.Song{MediaRef: "night-drive"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/songs/night-drive.mp3", got)

	got, err = r.MediaURL(context.Background(), domain.Song{StreamURL: "https://stream.example.com/1"})
	require.NoError(t, err)
	assert.Equal(t, "https://stream.example.com/1", got)
}

func TestResolver_Presigned(t *testing.T) {
	r, err := NewResolver(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Region:    "us-east-1",
		URLExpiry: 15 * time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)

	got, err := r.MediaURL(context.Background(), domain.Song{MediaRef: "night-drive"})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/songs/night-drive.mp3", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
