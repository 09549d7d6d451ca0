// Package allocation holds a voter's committed and pending points and enforces the budget rules.
// The engine performs no I/O and is not safe for concurrent use; callers serialize access.
package allocation

import (
	"fmt"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/google/uuid"
)

type Limits struct {
	MaxPerUser int
	MaxPerSong int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPerUser: domain.DefaultMaxVotesPerUser,
		MaxPerSong: domain.DefaultMaxVotesPerSong,
	}
}

type Engine struct {
	limits    Limits
	committed map[uuid.UUID]int
	pending   map[uuid.UUID]int
	order     []uuid.UUID
	inflight  map[uuid.UUID]int
}

func NewEngine(limits Limits) *Engine {
	return &Engine{
		limits:    limits,
		committed: make(map[uuid.UUID]int),
		pending:   make(map[uuid.UUID]int),
		inflight:  make(map[uuid.UUID]int),
	}
}

func (e *Engine) Limits() Limits {
	return e.limits
}

func (e *Engine) Committed(s uuid.UUID) int {
	return e.committed[s]
}

func (e *Engine) Pending(s uuid.UUID) int {
	return e.pending[s]
}

func (e *Engine) RemainingBudget() int {
	remaining := e.limits.MaxPerUser - e.committedSum() - e.pendingSum()
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (e *Engine) TotalForSong(s uuid.UUID) int {
	return e.committed[s] + e.pending[s]
}

func (e *Engine) CanAdd(s uuid.UUID) bool {
	return e.RemainingBudget() > 0 && e.TotalForSong(s) < e.limits.MaxPerSong
}

// CanRemove only allows retracting pending points that are not being written right now.
func (e *Engine) CanRemove(s uuid.UUID) bool {
	return e.pending[s]-e.inflight[s] > 0
}

func (e *Engine) MaxAdditional(s uuid.UUID) int {
	n := e.limits.MaxPerSong - e.TotalForSong(s)
	if remaining := e.RemainingBudget(); remaining < n {
		n = remaining
	}
	if n < 0 {
		return 0
	}
	return n
}

func (e *Engine) AddVote(s uuid.UUID) bool {
	if !e.CanAdd(s) {
		return false
	}
	if _, ok := e.pending[s]; !ok {
		e.order = append(e.order, s)
	}
	e.pending[s]++
	return true
}

func (e *Engine) RemoveVote(s uuid.UUID) bool {
	if !e.CanRemove(s) {
		return false
	}
	e.decrementPending(s, 1)
	return true
}

func (e *Engine) Commit(s uuid.UUID, delta int) error {
	if err := e.checkDelta("commit", s, delta); err != nil {
		return err
	}
	e.decrementPending(s, delta)
	e.committed[s] += delta
	delete(e.inflight, s)
	return nil
}

// Rollback drops delta pending points without committing them, freeing that budget.
func (e *Engine) Rollback(s uuid.UUID, delta int) error {
	if err := e.checkDelta("rollback", s, delta); err != nil {
		return err
	}
	e.decrementPending(s, delta)
	delete(e.inflight, s)
	return nil
}

// Reserve marks the current pending points of s as in flight and returns them.
// ok is false when committing them would break a limit.
func (e *Engine) Reserve(s uuid.UUID) (delta int, ok bool) {
	delta = e.pending[s]
	if delta <= 0 {
		return 0, false
	}
	e.inflight[s] = delta
	if e.TotalForSong(s) > e.limits.MaxPerSong || e.limits.MaxPerUser-e.committedSum()-e.pendingSum() < 0 {
		return delta, false
	}
	return delta, true
}

// Release clears the in-flight marker, leaving the points pending for another attempt.
func (e *Engine) Release(s uuid.UUID) {
	delete(e.inflight, s)
}

// PendingSongs returns pending song ids in the order they were first added.
func (e *Engine) PendingSongs() []uuid.UUID {
	out := make([]uuid.UUID, len(e.order))
	copy(out, e.order)
	return out
}

// ReplaceCommitted swaps in remote truth wholesale. Pending points are untouched.
func (e *Engine) ReplaceCommitted(records []domain.VoteRecord) {
	committed := make(map[uuid.UUID]int, len(records))
	for _, r := range records {
		if r.Points > 0 {
			committed[r.SongID] = r.Points
		}
	}
	e.committed = committed
}

func (e *Engine) Reset() {
	e.committed = make(map[uuid.UUID]int)
	e.pending = make(map[uuid.UUID]int)
	e.inflight = make(map[uuid.UUID]int)
	e.order = nil
}

// View projects the engine state for the given songs plus any song holding points.
func (e *Engine) View(songs ...uuid.UUID) domain.ViewModel {
	vm := domain.ViewModel{
		RemainingBudget: e.RemainingBudget(),
		PerSong:         make(map[uuid.UUID]domain.SongView, len(songs)),
	}
	add := func(s uuid.UUID) {
		vm.PerSong[s] = domain.SongView{
			Committed:     e.committed[s],
			Pending:       e.pending[s],
			CanAdd:        e.CanAdd(s),
			CanRemove:     e.CanRemove(s),
			MaxAdditional: e.MaxAdditional(s),
		}
	}
	for _, s := range songs {
		add(s)
	}
	for s := range e.committed {
		add(s)
	}
	for s := range e.pending {
		add(s)
	}
	return vm
}

func (e *Engine) checkDelta(op string, s uuid.UUID, delta int) error {
	if delta <= 0 || delta > e.pending[s] {
		return fmt.Errorf("%s %d points for song %s with %d pending: %w",
			op, delta, s, e.pending[s], domain.ErrInvariantViolation)
	}
	return nil
}

func (e *Engine) decrementPending(s uuid.UUID, delta int) {
	e.pending[s] -= delta
	if e.pending[s] > 0 {
		return
	}
	delete(e.pending, s)
	for i, id := range e.order {
		if id == s {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (e *Engine) committedSum() int {
	sum := 0
	for _, points := range e.committed {
		sum += points
	}
	return sum
}

func (e *Engine) pendingSum() int {
	sum := 0
	for _, points := range e.pending {
		sum += points
	}
	return sum
}
