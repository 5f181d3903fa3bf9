package service

import (
	"github.com/gofrs/uuid/v5"
	"github.com/semekhin/fileward/internal/errs"
	"github.com/semekhin/fileward/internal/model"
)

// Ownership decides whether a requesting identity may act on a file record.
// It is consulted before every read, download and delete of a record; a
// negative answer is ErrForbidden, deliberately distinct from ErrNotFound.
type Ownership struct{}

// Authorize compares the record's owner with the requesting identity.
// Pure predicate, no side effects.
func (Ownership) Authorize(rec *model.FileRecord, requesterID uuid.UUID) error {
	if rec == nil || requesterID == uuid.Nil || rec.OwnerID != requesterID {
		return errs.ErrForbidden
	}
	return nil
}
