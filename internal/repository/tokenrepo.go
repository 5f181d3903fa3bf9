package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/semekhin/fileward/internal/model"
)

// RefreshTokenRepository persists refresh credentials.
type RefreshTokenRepository interface {
	// Create inserts a new refresh credential row.
	Create(ctx context.Context, t *model.RefreshToken) error
	// GetByToken performs an exact-match lookup by token value.
	GetByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	// DeleteByID removes a single credential (eager expiry purge).
	DeleteByID(ctx context.Context, id uuid.UUID) error
	// DeleteByUsername removes every credential for a subject (logout, account deletion).
	DeleteByUsername(ctx context.Context, username string) error
}
