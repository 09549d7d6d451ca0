package domain

import (
	"time"

	"github.com/google/uuid"
)

type Song struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DisplayName string    `json:"displayName" db:"display_name"`
	SongTitle   string    `json:"songTitle" db:"song_title"`
	MediaRef    string    `json:"mediaRef" db:"media_ref"`
	ImageURL    string    `json:"imageUrl" db:"image_url"`
	StreamURL   string    `json:"streamUrl" db:"stream_url"`
	MediaURL    string    `json:"mediaUrl,omitempty" db:"-"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type VoteRecord struct {
	VoterID   uuid.UUID `json:"voterId" db:"voter_id"`
	SongID    uuid.UUID `json:"songId" db:"song_id"`
	Points    int       `json:"points" db:"points"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Voter struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password_hash"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type Tally struct {
	SongID      uuid.UUID `json:"songId"`
	DisplayName string    `json:"displayName"`
	Total       int       `json:"total"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SongView is the per-song projection rendered by clients.
type SongView struct {
	Committed     int  `json:"committed"`
	Pending       int  `json:"pending"`
	CanAdd        bool `json:"canAdd"`
	CanRemove     bool `json:"canRemove"`
	MaxAdditional int  `json:"maxAdditional"`
}

type ViewModel struct {
	RemainingBudget int                    `json:"remainingBudget"`
	PerSong         map[uuid.UUID]SongView `json:"perSong"`
}

type SubmitFailure struct {
	SongID  uuid.UUID   `json:"songId"`
	Kind    ErrorKind   `json:"kind"`
	Points  int         `json:"points"`
	Message UserMessage `json:"message"`
}

type SubmitResult struct {
	SuccessCount    int             `json:"successCount"`
	Points          int             `json:"points"`
	Failures        []SubmitFailure `json:"failures"`
	BudgetExhausted bool            `json:"budgetExhausted"`
}

// VoteEvent is the durable record of a persisted allocation change.
type VoteEvent struct {
	VoterID    uuid.UUID `json:"voterId"`
	SongID     uuid.UUID `json:"songId"`
	Points     int       `json:"points"`
	Delta      int       `json:"delta,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

const (
	DefaultMaxVotesPerUser = 10
	DefaultMaxVotesPerSong = 5
)
