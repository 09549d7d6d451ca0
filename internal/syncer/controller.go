// Package syncer reconciles a voter's allocation engine with the vote store.
package syncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/behzadon/songvote/internal/allocation"
	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/metrics"
	"github.com/behzadon/songvote/internal/retry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Controller owns the engine for one voter. Every engine access goes through mu, and no
// engine state is held across a store call: writes reserve before and resolve after.
type Controller struct {
	mu     sync.Mutex
	engine *allocation.Engine
	songs  []uuid.UUID

	store   domain.VoteStore
	voterID uuid.UUID
	policy  retry.Policy
	logger  *zap.Logger

	loading        bool
	reloadDeferred bool
	generation     uint64
	// writeEpoch moves on every submit start and every local commit. A load whose
	// fetch spans a change of epoch may predate a write and is fetched again.
	writeEpoch uint64
}

const maxStaleLoads = 3

func NewController(voterID uuid.UUID, store domain.VoteStore, limits allocation.Limits, policy retry.Policy, logger *zap.Logger) *Controller {
	return &Controller{
		engine:  allocation.NewEngine(limits),
		store:   store,
		voterID: voterID,
		policy:  policy,
		logger:  logger.With(zap.String("voter_id", voterID.String())),
	}
}

func (c *Controller) VoterID() uuid.UUID {
	return c.voterID
}

// HasSong reports whether songID is in the catalogue. An unknown catalogue accepts any song.
func (c *Controller) HasSong(songID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.songs) == 0 {
		return true
	}
	for _, id := range c.songs {
		if id == songID {
			return true
		}
	}
	return false
}

// SetSongs records the catalogue so the view lists songs without points too.
func (c *Controller) SetSongs(songs []domain.Song) {
	ids := make([]uuid.UUID, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	c.mu.Lock()
	c.songs = ids
	c.mu.Unlock()
}

func (c *Controller) AddVote(songID uuid.UUID) bool {
	c.mu.Lock()
	ok := c.engine.AddVote(songID)
	c.mu.Unlock()
	metrics.RecordIntent("add", ok)
	return ok
}

func (c *Controller) RemoveVote(songID uuid.UUID) bool {
	c.mu.Lock()
	ok := c.engine.RemoveVote(songID)
	c.mu.Unlock()
	metrics.RecordIntent("remove", ok)
	return ok
}

func (c *Controller) View() domain.ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.View(c.songs...)
}

func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LoadCommitted replaces committed points with what the store holds for the voter.
// While a submit is running the reload is deferred until it finishes, so a write that
// landed remotely but is not yet committed locally is never counted twice. A fetch
// that overlapped a submit is discarded and repeated, so it cannot erase that submit's commits.
func (c *Controller) LoadCommitted(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		if c.loading {
			c.reloadDeferred = true
			c.mu.Unlock()
			return nil
		}
		gen := c.generation
		epoch := c.writeEpoch
		c.mu.Unlock()

		var records []domain.VoteRecord
		err := retry.Do(ctx, "FetchVotes", c.policy, func(ctx context.Context) error {
			var err error
			records, err = c.store.FetchVotes(ctx, c.voterID)
			return err
		})
		metrics.RecordReload(err)
		if err != nil {
			c.logger.Warn("Failed to load committed votes",
				zap.Error(err),
				zap.String("kind", string(domain.KindOf(err))),
			)
			return fmt.Errorf("load committed votes: %w", err)
		}

		c.mu.Lock()
		switch {
		case gen != c.generation:
			c.mu.Unlock()
			c.logger.Debug("Discarding committed votes loaded before reset")
			return nil
		case c.loading:
			c.reloadDeferred = true
			c.mu.Unlock()
			return nil
		case epoch != c.writeEpoch:
			c.mu.Unlock()
			if attempt >= maxStaleLoads {
				c.logger.Warn("Committed votes kept changing during reload, leaving it to the next refresh",
					zap.Int("attempts", attempt),
				)
				return nil
			}
			c.logger.Debug("Discarding committed votes loaded across a submit")
			continue
		default:
			c.engine.ReplaceCommitted(records)
			c.mu.Unlock()
			return nil
		}
	}
}

// SubmitPending persists every pending allocation, one song at a time in insertion order.
// A failure on one song never aborts the others, except a fatal session failure.
func (c *Controller) SubmitPending(ctx context.Context) (domain.SubmitResult, error) {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return domain.SubmitResult{}, domain.ErrSubmitInProgress
	}
	c.loading = true
	c.writeEpoch++
	gen := c.generation
	songs := c.engine.PendingSongs()
	c.mu.Unlock()

	result := domain.SubmitResult{Failures: []domain.SubmitFailure{}}
	for _, songID := range songs {
		failure, points, stop := c.submitSong(ctx, gen, songID)
		if points > 0 {
			result.SuccessCount++
			result.Points += points
		}
		if failure != nil {
			result.Failures = append(result.Failures, *failure)
		}
		if stop {
			break
		}
	}

	c.mu.Lock()
	current := gen == c.generation
	reload := false
	if current {
		c.loading = false
		reload = c.reloadDeferred
		c.reloadDeferred = false
		result.BudgetExhausted = result.SuccessCount > 0 &&
			c.engine.RemainingBudget() == 0 && len(c.engine.PendingSongs()) == 0
	}
	c.mu.Unlock()

	if reload {
		if err := c.LoadCommitted(ctx); err != nil {
			c.logger.Warn("Deferred reload after submit failed", zap.Error(err))
		}
	}

	c.logger.Info("Submitted pending votes",
		zap.Int("songs", len(songs)),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", len(result.Failures)),
	)
	return result, nil
}

func (c *Controller) submitSong(ctx context.Context, gen uint64, songID uuid.UUID) (failure *domain.SubmitFailure, committed int, stop bool) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return nil, 0, true
	}
	delta, ok := c.engine.Reserve(songID)
	if delta == 0 {
		c.mu.Unlock()
		return nil, 0, false
	}
	if !ok {
		err := c.engine.Rollback(songID, delta)
		c.mu.Unlock()
		c.logger.Error("Pending allocation exceeds limits after reload",
			zap.String("song_id", songID.String()),
			zap.Int("delta", delta),
			zap.Error(err),
		)
		return c.fail(songID, delta, domain.KindInvariantViolation), 0, false
	}
	current := c.engine.Committed(songID)
	c.mu.Unlock()

	var err error
	if current > 0 {
		err = c.store.UpdateVote(ctx, c.voterID, songID, current+delta)
	} else {
		err = c.store.InsertVote(ctx, domain.VoteRecord{
			VoterID: c.voterID,
			SongID:  songID,
			Points:  delta,
		})
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Info("Session reset during submit, discarding write result",
			zap.String("song_id", songID.String()),
			zap.Error(err),
		)
		return nil, 0, true
	}

	if err == nil {
		if cerr := c.engine.Commit(songID, delta); cerr != nil {
			c.engine.Release(songID)
			c.logger.Error("Commit rejected", zap.String("song_id", songID.String()), zap.Error(cerr))
			return c.fail(songID, delta, domain.KindInvariantViolation), 0, false
		}
		c.writeEpoch++
		metrics.RecordSubmit("success")
		return nil, delta, false
	}

	kind := domain.KindOf(err)
	c.logger.Warn("Failed to persist pending votes",
		zap.String("song_id", songID.String()),
		zap.Int("delta", delta),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)

	switch kind {
	case domain.KindDuplicateKey, domain.KindNotFound:
		c.rollback(songID, delta)
		c.reloadDeferred = true
	case domain.KindPermissionDenied, domain.KindSessionExpired:
		c.rollback(songID, delta)
		stop = true
	default:
		c.engine.Release(songID)
	}
	return c.fail(songID, delta, kind), 0, stop
}

// rollback must be called with mu held.
func (c *Controller) rollback(songID uuid.UUID, delta int) {
	if err := c.engine.Rollback(songID, delta); err != nil {
		c.engine.Release(songID)
		c.logger.Error("Rollback rejected", zap.String("song_id", songID.String()), zap.Error(err))
	}
}

func (c *Controller) fail(songID uuid.UUID, delta int, kind domain.ErrorKind) *domain.SubmitFailure {
	metrics.RecordSubmit(string(kind))
	return &domain.SubmitFailure{
		SongID:  songID,
		Kind:    kind,
		Points:  delta,
		Message: domain.MessageFor(kind),
	}
}

// Reset drops all local state. Writes still in flight are discarded when they return.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.Reset()
	c.generation++
	c.loading = false
	c.reloadDeferred = false
}
