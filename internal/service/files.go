package service

import (
	"context"
	"io"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/semekhin/fileward/internal/model"
	"github.com/semekhin/fileward/internal/repository"
	"github.com/semekhin/fileward/internal/storage"
)

// FileService defines owner-scoped file operations. Metadata is the single
// source of truth for what exists; the filesystem is a derived cache of bytes.
type FileService interface {
	// Upload stores the stream under the owner's sandbox and persists a record
	// with the measured size. Re-uploading a filename replaces content and
	// updates the existing record.
	Upload(ctx context.Context, ownerID uuid.UUID, rawName string, content io.Reader, contentType string) (*model.FileRecord, error)
	// List returns all of the owner's records.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.FileRecord, error)
	// Resolve loads a record, checks ownership, and recomputes its sandboxed path.
	Resolve(ctx context.Context, requesterID, fileID uuid.UUID) (*model.FileRecord, string, error)
	// Delete removes a record and its file after an ownership check.
	Delete(ctx context.Context, requesterID, fileID uuid.UUID) error
	// Usage sums stored sizes over all live records of the owner.
	Usage(ctx context.Context, ownerID uuid.UUID) (int64, error)
	// PurgeOwner removes the owner's directory subtree (best-effort) and all
	// matching records. Returns the paths that could not be deleted.
	PurgeOwner(ctx context.Context, ownerID uuid.UUID) ([]string, error)
}

type FileServiceImpl struct {
	files repository.FileRepository
	disk  *storage.Engine
	authz Ownership
	log   *zap.Logger
}

var _ OwnerPurger = (*FileServiceImpl)(nil)

// NewFileService constructs FileService over a metadata repository and a disk engine.
func NewFileService(files repository.FileRepository, disk *storage.Engine, log *zap.Logger) *FileServiceImpl {
	return &FileServiceImpl{files: files, disk: disk, log: log}
}

// Upload writes bytes first, then the record: if metadata persistence fails
// the written file is an orphan with nothing pointing at it, which is safe.
func (s *FileServiceImpl) Upload(
	ctx context.Context, ownerID uuid.UUID, rawName string, content io.Reader, contentType string,
) (*model.FileRecord, error) {
	res, err := s.disk.Save(ownerID, rawName, content)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	rec := &model.FileRecord{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    res.Filename,
		ContentType: contentType,
		Size:        res.Size,
	}
	// Upsert keeps the original record id on a same-filename re-upload.
	if err := s.files.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the owner's records in the store's natural order.
func (s *FileServiceImpl) List(ctx context.Context, ownerID uuid.UUID) ([]model.FileRecord, error) {
	return s.files.ListByOwner(ctx, ownerID)
}

// Resolve performs lookup, ownership check, then path recomputation, in that
// order: no path is constructed before ownership is settled.
func (s *FileServiceImpl) Resolve(ctx context.Context, requesterID, fileID uuid.UUID) (*model.FileRecord, string, error) {
	rec, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	if err := s.authz.Authorize(rec, requesterID); err != nil {
		return nil, "", err
	}
	path, err := s.disk.FilePath(rec.OwnerID, rec.Filename)
	if err != nil {
		return nil, "", err
	}
	return rec, path, nil
}

// Delete removes the on-disk file if present, then the record. A failed
// physical delete is logged but does not keep the metadata alive.
func (s *FileServiceImpl) Delete(ctx context.Context, requesterID, fileID uuid.UUID) error {
	rec, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(rec, requesterID); err != nil {
		return err
	}
	if err := s.disk.Remove(rec.OwnerID, rec.Filename); err != nil {
		s.log.Warn("physical delete failed, removing metadata anyway",
			zap.String("filename", rec.Filename), zap.Error(err))
	}
	return s.files.DeleteByID(ctx, fileID)
}

// Usage reflects the store's current state exactly; no caching.
func (s *FileServiceImpl) Usage(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	recs, err := s.files.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	var total int64
	for i := range recs {
		total += recs[i].Size
	}
	return total, nil
}

// PurgeOwner is the account-deletion cascade. Disk failures are collected and
// logged but never abort the metadata bulk delete.
func (s *FileServiceImpl) PurgeOwner(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	failed, err := s.disk.RemoveOwnerDir(ownerID)
	if err != nil {
		s.log.Warn("owner directory purge", zap.String("owner", ownerID.String()), zap.Error(err))
	}
	for _, p := range failed {
		s.log.Warn("owner purge left a file behind", zap.String("path", p))
	}
	if err := s.files.DeleteAllByOwner(ctx, ownerID); err != nil {
		return failed, err
	}
	return failed, nil
}
