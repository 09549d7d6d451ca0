package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/behzadon/songvote/internal/allocation"
	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/realtime"
	"github.com/behzadon/songvote/internal/retry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	return Config{
		Limits:   allocation.DefaultLimits(),
		Retry:    retry.Policy{Attempts: 1, BaseDelay: time.Millisecond, Factor: 2},
		Realtime: realtime.Config{Debounce: 10 * time.Millisecond},
	}
}

func setupTestManager(t *testing.T) (*Manager, *domain.MockRepository) {
	t.Helper()
	repo := new(domain.MockRepository)
	m := NewManager(repo, nil, testConfig(), zap.NewNop())
	t.Cleanup(m.Shutdown)
	return m, repo
}

func TestManager_OpenLoadsCommitted(t *testing.T) {
	m, repo := setupTestManager(t)
	voter := domain.Voter{ID: uuid.New(), Username: "ana"}
	song := domain.Song{ID: uuid.New()}

	repo.On("FetchSongs", mock.Anything).Return([]domain.Song{song}, nil)
	repo.On("FetchVotes", mock.Anything, voter.ID).Return([]domain.VoteRecord{{SongID: song.ID, Points: 4}}, nil)

	s, err := m.Open(context.Background(), voter)
	require.NoError(t, err)
	assert.Equal(t, voter.ID, s.Voter.ID)

	vm := s.Controller.View()
	assert.Equal(t, 6, vm.RemainingBudget)
	assert.Equal(t, 4, vm.PerSong[song.ID].Committed)
	assert.Equal(t, 1, m.Count())
}

func TestManager_ReopenReturnsSameSession(t *testing.T) {
	m, repo := setupTestManager(t)
	voter := domain.Voter{ID: uuid.New()}
	repo.On("FetchSongs", mock.Anything).Return([]domain.Song{}, nil)
	repo.On("FetchVotes", mock.Anything, voter.ID).Return([]domain.VoteRecord{}, nil)

	first, err := m.Open(context.Background(), voter)
	require.NoError(t, err)
	second, err := m.Open(context.Background(), voter)
	require.NoError(t, err)
	assert.Same(t, first, second)

	third, err := m.GetOrOpen(context.Background(), voter)
	require.NoError(t, err)
	assert.Same(t, first, third)
	assert.Equal(t, 1, m.Count())
}

func TestManager_OpenFailsOnFatalLoad(t *testing.T) {
	m, repo := setupTestManager(t)
	voter := domain.Voter{ID: uuid.New()}
	repo.On("FetchSongs", mock.Anything).Return([]domain.Song{}, nil)
	repo.On("FetchVotes", mock.Anything, voter.ID).
		Return(nil, domain.NewStoreError("FetchVotes", domain.KindPermissionDenied, nil))

	_, err := m.Open(context.Background(), voter)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = m.Get(voter.ID)
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestManager_CloseDiscardsPendingWithoutWrites(t *testing.T) {
	m, repo := setupTestManager(t)
	voter := domain.Voter{ID: uuid.New()}
	song := uuid.New()
	repo.On("FetchSongs", mock.Anything).Return([]domain.Song{}, nil)
	repo.On("FetchVotes", mock.Anything, voter.ID).Return([]domain.VoteRecord{}, nil)

	var mu sync.Mutex
	var events []bool
	m.OnAuthStateChange(func(id uuid.UUID, signedIn bool) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, voter.ID, id)
		events = append(events, signedIn)
	})

	s, err := m.Open(context.Background(), voter)
	require.NoError(t, err)
	require.True(t, s.Controller.AddVote(song))
	require.True(t, s.Controller.AddVote(song))

	assert.True(t, m.Close(voter.ID))
	assert.False(t, m.Close(voter.ID))
	assert.Equal(t, 10, s.Controller.View().RemainingBudget)

	_, err = m.Get(voter.ID)
	assert.ErrorIs(t, err, domain.ErrNoSession)
	repo.AssertNotCalled(t, "InsertVote", mock.Anything, mock.Anything)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, events)
}

func TestManager_CloseIfFatal(t *testing.T) {
	m, repo := setupTestManager(t)
	voter := domain.Voter{ID: uuid.New()}
	repo.On("FetchSongs", mock.Anything).Return([]domain.Song{}, nil)
	repo.On("FetchVotes", mock.Anything, voter.ID).Return([]domain.VoteRecord{}, nil)

	_, err := m.Open(context.Background(), voter)
	require.NoError(t, err)

	transient := domain.SubmitResult{Failures: []domain.SubmitFailure{{Kind: domain.KindNetworkTransient}}}
	assert.False(t, m.CloseIfFatal(voter.ID, transient))
	assert.Equal(t, 1, m.Count())

	expired := domain.SubmitResult{Failures: []domain.SubmitFailure{{Kind: domain.KindSessionExpired}}}
	assert.True(t, m.CloseIfFatal(voter.ID, expired))
	assert.Equal(t, 0, m.Count())
}

func TestManager_Shutdown(t *testing.T) {
	repo := new(domain.MockRepository)
	m := NewManager(repo, nil, testConfig(), zap.NewNop())
	repo.On("FetchSongs", mock.Anything).Return([]domain.Song{}, nil)
	repo.On("FetchVotes", mock.Anything, mock.Anything).Return([]domain.VoteRecord{}, nil)

	for i := 0; i < 3; i++ {
		_, err := m.Open(context.Background(), domain.Voter{ID: uuid.New()})
		require.NoError(t, err)
	}
	m.Shutdown()
	assert.Equal(t, 0, m.Count())
}
