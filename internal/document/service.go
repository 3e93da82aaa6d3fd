// Package document manages generated documents through the archive
// lifecycle: active or draft, archived, trashed, and permanently deleted.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"safemaint-backend/internal/model"
	"safemaint-backend/internal/parse"
	"safemaint-backend/internal/store"
)

var (
	// ErrInvalidStatus is returned when a document cannot move from its
	// current status.
	ErrInvalidStatus = errors.New("invalid document status change")
	// ErrInvalidDocument is returned when a new document is malformed.
	ErrInvalidDocument = errors.New("invalid document")
)

// Service manages documents stored in the documents table.
type Service struct {
	docs   *store.Repository[model.DocumentRecord]
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the document service.
func NewService(docs *store.Repository[model.DocumentRecord], logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{docs: docs, logger: logger.Named("document"), now: time.Now}
}

// Create stores a new document. Status defaults to ATIVO; only ATIVO and
// RASCUNHO are accepted for new documents.
func (s *Service) Create(ctx context.Context, doc model.DocumentRecord) (model.DocumentRecord, error) {
	if !doc.Type.Valid() {
		return doc, fmt.Errorf("%w: unknown type %q", ErrInvalidDocument, doc.Type)
	}
	switch doc.Status {
	case "":
		doc.Status = model.DocActive
	case model.DocActive, model.DocDraft:
	default:
		return doc, fmt.Errorf("%w: cannot create with status %s", ErrInvalidStatus, doc.Status)
	}

	now := s.now()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.TrashedAt = nil
	if doc.Header.Tag != "" {
		tag, area := parse.NormalizeTag(doc.Header.Tag)
		doc.Header.Tag = tag
		if doc.Header.Area == "" {
			doc.Header.Area = area
		}
	}

	if err := s.docs.Save(ctx, doc); err != nil {
		return doc, err
	}
	s.logger.Info("document created", zap.String("id", doc.ID), zap.String("type", string(doc.Type)))
	return doc, nil
}

// Get returns one document.
func (s *Service) Get(id string) (model.DocumentRecord, error) {
	return s.docs.Get(id)
}

// ListByStatus returns documents in the given status, or every document
// outside the trash when status is empty.
func (s *Service) ListByStatus(status model.DocumentStatus) []model.DocumentRecord {
	return s.docs.Filter(func(d model.DocumentRecord) bool {
		if status == "" {
			return d.Status != model.DocTrash
		}
		return d.Status == status
	})
}

// Archive moves an active or draft document to ARQUIVADO.
func (s *Service) Archive(ctx context.Context, id string) (model.DocumentRecord, error) {
	return s.move(ctx, id, model.DocArchived, model.DocActive, model.DocDraft)
}

// Trash moves a document to LIXEIRA and stamps when it was trashed.
func (s *Service) Trash(ctx context.Context, id string) (model.DocumentRecord, error) {
	return s.move(ctx, id, model.DocTrash, model.DocActive, model.DocDraft, model.DocArchived)
}

// Restore brings a trashed document back to ATIVO.
func (s *Service) Restore(ctx context.Context, id string) (model.DocumentRecord, error) {
	return s.move(ctx, id, model.DocActive, model.DocTrash)
}

func (s *Service) move(ctx context.Context, id string, to model.DocumentStatus, from ...model.DocumentStatus) (model.DocumentRecord, error) {
	doc, err := s.docs.Get(id)
	if err != nil {
		return doc, err
	}
	if !contains(from, doc.Status) {
		return doc, fmt.Errorf("%w: %s to %s", ErrInvalidStatus, doc.Status, to)
	}

	now := s.now()
	doc.Status = to
	doc.UpdatedAt = now
	if to == model.DocTrash {
		doc.TrashedAt = &now
	} else {
		doc.TrashedAt = nil
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		return doc, err
	}
	s.logger.Info("document moved", zap.String("id", id), zap.String("status", string(to)))
	return doc, nil
}

// Delete permanently removes one trashed document.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.docs.Get(id)
	if err != nil {
		return err
	}
	if doc.Status != model.DocTrash {
		return fmt.Errorf("%w: only trashed documents can be deleted", ErrInvalidStatus)
	}
	_, err = s.docs.Delete(ctx, id)
	return err
}

// EmptyTrash permanently removes every trashed document and returns how
// many were removed.
func (s *Service) EmptyTrash(ctx context.Context) (int, error) {
	removed := 0
	for _, doc := range s.ListByStatus(model.DocTrash) {
		if _, err := s.docs.Delete(ctx, doc.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("trash emptied", zap.Int("removed", removed))
	}
	return removed, nil
}

// File returns the document's attached file as a data URI, fetching it from
// the backend when the local copy was elided.
func (s *Service) File(ctx context.Context, id string) (string, error) {
	return s.docs.Blob(ctx, id, "file_data")
}

func contains(list []model.DocumentStatus, s model.DocumentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
