package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/semekhin/fileward/internal/errs"
	"github.com/semekhin/fileward/internal/model"
)

// TokenRepo implements RefreshTokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs a refresh credential repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// Create inserts a new refresh credential row.
func (r *TokenRepo) Create(ctx context.Context, t *model.RefreshToken) error {
	const q = `
INSERT INTO refresh_tokens (id, token, username, expires_at)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.Token, t.Username, t.ExpiresAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByToken performs an exact-match lookup by token value.
func (r *TokenRepo) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	const q = `
SELECT id, token, username, expires_at
FROM refresh_tokens WHERE token=$1`
	var t model.RefreshToken
	err := r.db.Pool.QueryRow(ctx, q, token).Scan(&t.ID, &t.Token, &t.Username, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// DeleteByID removes a single credential row.
func (r *TokenRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM refresh_tokens WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id)
	return err
}

// DeleteByUsername removes every credential for a subject.
func (r *TokenRepo) DeleteByUsername(ctx context.Context, username string) error {
	const q = `DELETE FROM refresh_tokens WHERE username=$1`
	_, err := r.db.Pool.Exec(ctx, q, username)
	return err
}
