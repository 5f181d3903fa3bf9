package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/semekhin/fileward/internal/model"
)

// FileRepository provides owner-scoped access to file metadata records.
type FileRepository interface {
	// Upsert inserts a record, or updates content type, size and timestamp of
	// the live record with the same (owner, filename). The record keeps its
	// original ID across re-uploads; the resulting row is written back into rec.
	Upsert(ctx context.Context, rec *model.FileRecord) error

	// GetByID loads a single record.
	GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error)

	// ListByOwner returns all records for an owner in the store's natural order.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.FileRecord, error)

	// DeleteByID removes a record; ErrNotFound when no row matches.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// DeleteAllByOwner bulk-deletes every record for an owner.
	DeleteAllByOwner(ctx context.Context, ownerID uuid.UUID) error
}
