package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Repository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewRepository(db *sqlx.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const songColumns = `id, display_name, song_title, media_ref, image_url, stream_url, created_at`

func (r *Repository) FetchSongs(ctx context.Context) ([]domain.Song, error) {
	songs := []domain.Song{}
	query := `SELECT ` + songColumns + ` FROM songs ORDER BY display_name, id`
	if err := r.db.SelectContext(ctx, &songs, query); err != nil {
		return nil, classify("FetchSongs", err)
	}
	return songs, nil
}

func (r *Repository) FetchSong(ctx context.Context, id uuid.UUID) (*domain.Song, error) {
	var song domain.Song
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = $1`
	if err := r.db.GetContext(ctx, &song, query, id); err != nil {
		return nil, classify("FetchSong", err)
	}
	return &song, nil
}

func (r *Repository) FetchVotes(ctx context.Context, voterID uuid.UUID) ([]domain.VoteRecord, error) {
	votes := []domain.VoteRecord{}
	query := `
		SELECT voter_id, song_id, points, created_at, updated_at
		FROM votes
		WHERE voter_id = $1`
	if err := r.db.SelectContext(ctx, &votes, query, voterID); err != nil {
		return nil, classify("FetchVotes", err)
	}
	return votes, nil
}

func (r *Repository) FetchSongVotes(ctx context.Context, songID uuid.UUID) ([]domain.VoteRecord, error) {
	votes := []domain.VoteRecord{}
	query := `
		SELECT voter_id, song_id, points, created_at, updated_at
		FROM votes
		WHERE song_id = $1`
	if err := r.db.SelectContext(ctx, &votes, query, songID); err != nil {
		return nil, classify("FetchSongVotes", err)
	}
	return votes, nil
}

func (r *Repository) InsertVote(ctx context.Context, vote domain.VoteRecord) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO votes (voter_id, song_id, points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, vote.VoterID, vote.SongID, vote.Points, now, now); err != nil {
		return classify("InsertVote", err)
	}
	return nil
}

func (r *Repository) UpdateVote(ctx context.Context, voterID, songID uuid.UUID, points int) error {
	query := `
		UPDATE votes
		SET points = $1, updated_at = $2
		WHERE voter_id = $3 AND song_id = $4`
	res, err := r.db.ExecContext(ctx, query, points, time.Now().UTC(), voterID, songID)
	if err != nil {
		return classify("UpdateVote", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("UpdateVote", err)
	}
	if n == 0 {
		return domain.NewStoreError("UpdateVote", domain.KindNotFound,
			fmt.Errorf("no vote for voter %s and song %s", voterID, songID))
	}
	return nil
}

func (r *Repository) SumVoterPoints(ctx context.Context, voterID uuid.UUID) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(points), 0) FROM votes WHERE voter_id = $1`
	if err := r.db.GetContext(ctx, &total, query, voterID); err != nil {
		return 0, classify("SumVoterPoints", err)
	}
	return total, nil
}

func (r *Repository) CreateVoter(ctx context.Context, voter *domain.Voter) error {
	query := `
		INSERT INTO voters (id, username, email, password_hash, created_at, updated_at)
		VALUES (:id, :username, :email, :password_hash, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, voter)
	if err != nil {
		err = classify("CreateVoter", err)
		if errors.Is(err, domain.ErrDuplicateKey) {
			return domain.ErrEmailAlreadyExists
		}
		return fmt.Errorf("create voter: %w", err)
	}
	return nil
}

const voterColumns = `id, username, email, password_hash, created_at, updated_at`

func (r *Repository) GetVoterByID(ctx context.Context, id uuid.UUID) (*domain.Voter, error) {
	var voter domain.Voter
	query := `SELECT ` + voterColumns + ` FROM voters WHERE id = $1`
	if err := r.db.GetContext(ctx, &voter, query, id); err != nil {
		return nil, classify("GetVoterByID", err)
	}
	return &voter, nil
}

func (r *Repository) GetVoterByEmail(ctx context.Context, email string) (*domain.Voter, error) {
	var voter domain.Voter
	query := `SELECT ` + voterColumns + ` FROM voters WHERE email = $1`
	if err := r.db.GetContext(ctx, &voter, query, email); err != nil {
		return nil, classify("GetVoterByEmail", err)
	}
	return &voter, nil
}
