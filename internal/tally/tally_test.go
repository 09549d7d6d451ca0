package tally

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu    sync.Mutex
	songs map[uuid.UUID]*domain.Song
	votes map[uuid.UUID][]domain.VoteRecord
	reads int
}

func newFakeStore(songs ...*domain.Song) *fakeStore {
	s := &fakeStore{
		songs: make(map[uuid.UUID]*domain.Song),
		votes: make(map[uuid.UUID][]domain.VoteRecord),
	}
	for _, song := range songs {
		s.songs[song.ID] = song
	}
	return s
}

func (s *fakeStore) FetchSong(_ context.Context, id uuid.UUID) (*domain.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	song, ok := s.songs[id]
	if !ok {
		return nil, domain.NewStoreError("FetchSong", domain.KindNotFound, nil)
	}
	return song, nil
}

func (s *fakeStore) FetchSongVotes(_ context.Context, songID uuid.UUID) ([]domain.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	return append([]domain.VoteRecord(nil), s.votes[songID]...), nil
}

func (s *fakeStore) addVote(songID uuid.UUID, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[songID] = append(s.votes[songID], domain.VoteRecord{VoterID: uuid.New(), SongID: songID, Points: points})
}

func (s *fakeStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type memoryCache struct {
	mu      sync.Mutex
	tallies map[uuid.UUID]domain.Tally
}

func newMemoryCache() *memoryCache {
	return &memoryCache{tallies: make(map[uuid.UUID]domain.Tally)}
}

func (c *memoryCache) GetTally(_ context.Context, songID uuid.UUID) (*domain.Tally, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tallies[songID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (c *memoryCache) SetTally(_ context.Context, tally *domain.Tally) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tallies[tally.SongID] = *tally
	return nil
}

func (c *memoryCache) delete(songID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tallies, songID)
}

type fakeFeed struct {
	mu       sync.Mutex
	onChange func()
}

type nopSubscription struct{}

func (nopSubscription) Close() error { return nil }

func (f *fakeFeed) SubscribeVoter(context.Context, uuid.UUID, func()) (domain.Subscription, error) {
	return nopSubscription{}, nil
}

func (f *fakeFeed) SubscribeSong(_ context.Context, _ uuid.UUID, onChange func()) (domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onChange = onChange
	return nopSubscription{}, nil
}

func (f *fakeFeed) fire() {
	f.mu.Lock()
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeFeed) subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onChange != nil
}

func TestService_Resolve(t *testing.T) {
	song := &domain.Song{ID: uuid.New(), DisplayName: "Aurora"}
	svc := NewService(newFakeStore(song), nil, zap.NewNop())

	tests := []struct {
		name        string
		key         string
		expectedErr error
	}{
		{"empty key", "", domain.ErrNotConfigured},
		{"blank key", "   ", domain.ErrNotConfigured},
		{"not a uuid", "song-42", domain.ErrInvalidKey},
		{"unknown song", uuid.New().String(), domain.ErrNotFound},
		{"known song", song.ID.String(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Resolve(context.Background(), tt.key)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, song.ID, got.ID)
		})
	}
}

func TestService_TotalUsesCache(t *testing.T) {
	song := &domain.Song{ID: uuid.New(), DisplayName: "Aurora"}
	store := newFakeStore(song)
	store.addVote(song.ID, 3)
	store.addVote(song.ID, 2)
	svc := NewService(store, newMemoryCache(), zap.NewNop())

	first, err := svc.Total(context.Background(), song)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Total)
	assert.Equal(t, "Aurora", first.DisplayName)

	store.addVote(song.ID, 1)
	second, err := svc.Total(context.Background(), song)
	require.NoError(t, err)
	assert.Equal(t, 5, second.Total, "served from cache")
	assert.Equal(t, 1, store.readCount())

	refreshed, err := svc.Refresh(context.Background(), song.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, refreshed.Total)
}

func TestWatcher_EmitsOnChangeOnly(t *testing.T) {
	song := domain.Song{ID: uuid.New(), DisplayName: "Aurora"}
	store := newFakeStore(&song)
	store.addVote(song.ID, 2)
	cache := newMemoryCache()
	feed := &fakeFeed{}
	svc := NewService(store, cache, zap.NewNop())

	w := NewWatcher(svc, feed, song, WatcherConfig{Debounce: 10 * time.Millisecond}, zap.NewNop())

	emitted := make(chan domain.Tally, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- w.Run(ctx, func(t domain.Tally) { emitted <- t }) }()

	select {
	case got := <-emitted:
		assert.Equal(t, 2, got.Total)
	case <-time.After(time.Second):
		t.Fatal("initial tally was not emitted")
	}
	require.Eventually(t, feed.subscribed, time.Second, 5*time.Millisecond)

	// A notification without a change emits nothing.
	feed.fire()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, emitted)

	store.addVote(song.ID, 3)
	cache.delete(song.ID)
	for i := 0; i < 5; i++ {
		feed.fire()
	}

	select {
	case got := <-emitted:
		assert.Equal(t, 5, got.Total)
	case <-time.After(time.Second):
		t.Fatal("changed tally was not emitted")
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, emitted, "a burst of notifications emits once")

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_PollsWithoutFeed(t *testing.T) {
	song := domain.Song{ID: uuid.New()}
	store := newFakeStore(&song)
	svc := NewService(store, nil, zap.NewNop())
	w := NewWatcher(svc, nil, song, WatcherConfig{PollInterval: 10 * time.Millisecond}, zap.NewNop())

	emitted := make(chan domain.Tally, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx, func(t domain.Tally) { emitted <- t }) }()

	assert.Equal(t, 0, (<-emitted).Total)
	store.addVote(song.ID, 4)

	select {
	case got := <-emitted:
		assert.Equal(t, 4, got.Total)
	case <-time.After(time.Second):
		t.Fatal("poll did not pick up the change")
	}
}
