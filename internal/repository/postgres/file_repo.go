package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/semekhin/fileward/internal/errs"
	"github.com/semekhin/fileward/internal/model"
)

// FileRepo implements FileRepository using PostgreSQL.
type FileRepo struct{ db *DB }

// NewFileRepo constructs a file metadata repository.
func NewFileRepo(db *DB) *FileRepo { return &FileRepo{db: db} }

// Upsert inserts a record or refreshes the live one with the same
// (owner, filename). ON CONFLICT keeps the existing row's id, so a re-upload
// updates content type, size and timestamp under a stable record identity.
func (r *FileRepo) Upsert(ctx context.Context, rec *model.FileRecord) error {
	const q = `
INSERT INTO files (id, owner_id, filename, content_type, size, uploaded_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (owner_id, filename) DO UPDATE
SET content_type=EXCLUDED.content_type, size=EXCLUDED.size, uploaded_at=now()
RETURNING id, uploaded_at`
	row := r.db.Pool.QueryRow(ctx, q, rec.ID, rec.OwnerID, rec.Filename, rec.ContentType, rec.Size)
	return row.Scan(&rec.ID, &rec.UploadedAt)
}

// GetByID loads a single record.
func (r *FileRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.FileRecord, error) {
	const q = `
SELECT id, owner_id, filename, content_type, size, uploaded_at
FROM files WHERE id=$1`
	var rec model.FileRecord
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&rec.ID, &rec.OwnerID, &rec.Filename, &rec.ContentType, &rec.Size, &rec.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListByOwner returns all records for an owner in insertion order.
func (r *FileRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.FileRecord, error) {
	const q = `
SELECT id, owner_id, filename, content_type, size, uploaded_at
FROM files WHERE owner_id=$1
ORDER BY uploaded_at ASC, filename ASC`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FileRecord
	for rows.Next() {
		var rec model.FileRecord
		if err = rows.Scan(&rec.ID, &rec.OwnerID, &rec.Filename, &rec.ContentType, &rec.Size, &rec.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteByID removes a record by id.
func (r *FileRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM files WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteAllByOwner bulk-deletes every record for an owner. Zero rows is not
// an error: the cascade must be callable for owners without files.
func (r *FileRepo) DeleteAllByOwner(ctx context.Context, ownerID uuid.UUID) error {
	const q = `DELETE FROM files WHERE owner_id=$1`
	_, err := r.db.Pool.Exec(ctx, q, ownerID)
	return err
}
