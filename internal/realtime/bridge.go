// Package realtime turns change notifications, visibility regains and a fallback timer
// into debounced reloads of committed votes.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	Debounce     time.Duration
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Debounce:     500 * time.Millisecond,
		PollInterval: 10 * time.Second,
	}
}

type ReloadFunc func(ctx context.Context) error

// Bridge never touches pending points; reload only replaces committed ones.
type Bridge struct {
	voterID uuid.UUID
	feed    domain.ChangeFeed
	reload  ReloadFunc
	cfg     Config
	logger  *zap.Logger

	mu       sync.Mutex
	debounce *Debouncer
	sub      domain.Subscription
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewBridge(voterID uuid.UUID, feed domain.ChangeFeed, reload ReloadFunc, cfg Config, logger *zap.Logger) *Bridge {
	return &Bridge{
		voterID: voterID,
		feed:    feed,
		reload:  reload,
		cfg:     cfg,
		logger:  logger.With(zap.String("voter_id", voterID.String())),
	}
}

// Start subscribes to the voter's change feed and starts the fallback poller.
// A failed subscription is logged and polling carries on alone.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.debounce = NewDebouncer(b.cfg.Debounce, func() {
		if err := b.reload(ctx); err != nil && ctx.Err() == nil {
			b.logger.Warn("Realtime reload failed", zap.Error(err))
		}
	})

	if b.feed != nil {
		sub, err := b.feed.SubscribeVoter(ctx, b.voterID, func() { b.Notify("change") })
		if err != nil {
			b.logger.Warn("Change feed unavailable, relying on polling", zap.Error(err))
		} else {
			b.sub = sub
		}
	}

	if b.cfg.PollInterval > 0 {
		b.wg.Add(1)
		go b.poll(ctx)
	}
}

func (b *Bridge) poll(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Notify("timer")
		}
	}
}

// Notify schedules a reload; bursts inside the debounce window collapse into one.
func (b *Bridge) Notify(source string) {
	b.mu.Lock()
	d := b.debounce
	b.mu.Unlock()
	if d == nil {
		return
	}
	b.logger.Debug("Reload requested", zap.String("source", source))
	d.Trigger()
}

func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.cancel == nil {
		b.mu.Unlock()
		return
	}
	b.cancel()
	b.cancel = nil
	b.debounce.Stop()
	b.debounce = nil
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			b.logger.Error("Failed to close change subscription", zap.Error(err))
		}
	}
	b.wg.Wait()
}
