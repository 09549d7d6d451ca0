// Package session owns the per-voter context objects: one engine, controller and
// refresh bridge for every signed-in voter.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/behzadon/songvote/internal/allocation"
	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/metrics"
	"github.com/behzadon/songvote/internal/realtime"
	"github.com/behzadon/songvote/internal/retry"
	"github.com/behzadon/songvote/internal/syncer"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Session struct {
	Voter      domain.Voter
	Controller *syncer.Controller
	Bridge     *realtime.Bridge
	CreatedAt  time.Time
}

type Config struct {
	Limits   allocation.Limits
	Retry    retry.Policy
	Realtime realtime.Config
}

func DefaultConfig() Config {
	return Config{
		Limits:   allocation.DefaultLimits(),
		Retry:    retry.DefaultPolicy(),
		Realtime: realtime.DefaultConfig(),
	}
}

type AuthListener func(voterID uuid.UUID, signedIn bool)

type Manager struct {
	store  domain.VoteStore
	feed   domain.ChangeFeed
	cfg    Config
	logger *zap.Logger

	// bridges outlive the request that opened the session
	baseCtx context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	sessions  map[uuid.UUID]*Session
	listeners []AuthListener
}

func NewManager(store domain.VoteStore, feed domain.ChangeFeed, cfg Config, logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		feed:     feed,
		cfg:      cfg,
		logger:   logger,
		baseCtx:  ctx,
		cancel:   cancel,
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (m *Manager) OnAuthStateChange(listener AuthListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *Manager) notify(voterID uuid.UUID, signedIn bool) {
	m.mu.Lock()
	listeners := append([]AuthListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l(voterID, signedIn)
	}
}

// Open signs the voter in. An existing session is reloaded and returned as is.
func (m *Manager) Open(ctx context.Context, voter domain.Voter) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[voter.ID]; ok {
		m.mu.Unlock()
		if err := s.Controller.LoadCommitted(ctx); err != nil {
			m.logger.Warn("Reload on re-open failed",
				zap.Error(err),
				zap.String("voter_id", voter.ID.String()),
			)
		}
		return s, nil
	}
	m.mu.Unlock()

	controller := syncer.NewController(voter.ID, m.store, m.cfg.Limits, m.cfg.Retry, m.logger)

	songs, err := m.store.FetchSongs(ctx)
	if err != nil {
		m.logger.Warn("Failed to load songs for session", zap.Error(err))
	} else {
		controller.SetSongs(songs)
	}

	if err := controller.LoadCommitted(ctx); err != nil {
		if domain.KindOf(err).IsFatal() {
			return nil, fmt.Errorf("open session: %w", err)
		}
		// the bridge's poller retries
		m.logger.Warn("Initial load of committed votes failed",
			zap.Error(err),
			zap.String("voter_id", voter.ID.String()),
		)
	}

	s := &Session{
		Voter:      voter,
		Controller: controller,
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	if existing, ok := m.sessions[voter.ID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	s.Bridge = realtime.NewBridge(voter.ID, m.feed, controller.LoadCommitted, m.cfg.Realtime, m.logger)
	m.sessions[voter.ID] = s
	m.mu.Unlock()

	s.Bridge.Start(m.baseCtx)
	metrics.ActiveSessions.Inc()
	m.logger.Info("Session opened",
		zap.String("voter_id", voter.ID.String()),
		zap.String("username", voter.Username),
	)
	m.notify(voter.ID, true)
	return s, nil
}

func (m *Manager) Get(voterID uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[voterID]
	if !ok {
		return nil, domain.ErrNoSession
	}
	return s, nil
}

// GetOrOpen restores a session for a voter holding a valid token, e.g. after a restart.
func (m *Manager) GetOrOpen(ctx context.Context, voter domain.Voter) (*Session, error) {
	if s, err := m.Get(voter.ID); err == nil {
		return s, nil
	}
	return m.Open(ctx, voter)
}

// Close signs the voter out. Pending points are discarded without any remote write.
func (m *Manager) Close(voterID uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[voterID]
	if ok {
		delete(m.sessions, voterID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	s.Bridge.Stop()
	s.Controller.Reset()
	metrics.ActiveSessions.Dec()
	m.logger.Info("Session closed", zap.String("voter_id", voterID.String()))
	m.notify(voterID, false)
	return true
}

// CloseIfFatal tears the session down when a submit hit a fatal failure.
func (m *Manager) CloseIfFatal(voterID uuid.UUID, result domain.SubmitResult) bool {
	for _, f := range result.Failures {
		if f.Kind.IsFatal() {
			m.logger.Warn("Closing session after fatal submit failure",
				zap.String("voter_id", voterID.String()),
				zap.String("kind", string(f.Kind)),
			)
			return m.Close(voterID)
		}
	}
	return false
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
	m.cancel()
}
