package tally

import (
	"context"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/realtime"
	"go.uber.org/zap"
)

type WatcherConfig struct {
	PollInterval time.Duration
	Debounce     time.Duration
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		PollInterval: 10 * time.Second,
		Debounce:     500 * time.Millisecond,
	}
}

// Watcher follows one song's total and emits it whenever it changes.
type Watcher struct {
	svc    *Service
	feed   domain.ChangeFeed
	song   domain.Song
	cfg    WatcherConfig
	logger *zap.Logger
}

func NewWatcher(svc *Service, feed domain.ChangeFeed, song domain.Song, cfg WatcherConfig, logger *zap.Logger) *Watcher {
	return &Watcher{
		svc:    svc,
		feed:   feed,
		song:   song,
		cfg:    cfg,
		logger: logger.With(zap.String("song_id", song.ID.String())),
	}
}

// Run blocks until ctx is done. The first total is always emitted, later ones
// only when they differ from the last emitted value.
func (w *Watcher) Run(ctx context.Context, emit func(domain.Tally)) error {
	refresh := make(chan struct{}, 1)
	signal := func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	}

	debounce := realtime.NewDebouncer(w.cfg.Debounce, signal)
	defer debounce.Stop()

	if w.feed != nil {
		sub, err := w.feed.SubscribeSong(ctx, w.song.ID, debounce.Trigger)
		if err != nil {
			w.logger.Warn("Song change feed unavailable, relying on polling", zap.Error(err))
		} else {
			defer func() {
				if err := sub.Close(); err != nil {
					w.logger.Error("Failed to close song subscription", zap.Error(err))
				}
			}()
		}
	}

	var ticker <-chan time.Time
	if w.cfg.PollInterval > 0 {
		t := time.NewTicker(w.cfg.PollInterval)
		defer t.Stop()
		ticker = t.C
	}

	last := -1
	check := func() {
		tally, err := w.svc.Total(ctx, &w.song)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("Failed to read tally", zap.Error(err))
			}
			return
		}
		if tally.Total == last {
			return
		}
		last = tally.Total
		emit(*tally)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker:
			check()
		case <-refresh:
			check()
		}
	}
}
