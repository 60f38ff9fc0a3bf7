package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pdit/models"
)

// Store persists document records. Every mutation is a single-row conditional
// update keyed by id; that atomicity is the pipeline's only concurrency-safety
// mechanism, so two different records never contend and concurrent writes to
// one record never interleave partial field sets.
type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]models.Document, error)
	// Update applies the given column values atomically. Unknown id returns
	// ErrNotFound, never a silent no-op.
	Update(ctx context.Context, id string, fields map[string]any) (*models.Document, error)
	// Transition moves the record from one status to another, applying fields
	// in the same atomic write. The current status guards the update.
	Transition(ctx context.Context, id string, from, to models.DocumentStatus, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// GormStore is the Postgres-backed Store.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *GormStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

func (s *GormStore) ListByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	var docs []models.Document
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *GormStore) Update(ctx context.Context, id string, fields map[string]any) (*models.Document, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no update data provided", ErrValidation)
	}
	fields = withUpdatedAt(fields)
	tx := s.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return nil, fmt.Errorf("update document: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

func (s *GormStore) Transition(ctx context.Context, id string, from, to models.DocumentStatus, fields map[string]any) error {
	if !models.ValidTransition(from, to) {
		return fmt.Errorf("invalid status transition %s -> %s", from, to)
	}
	set := withUpdatedAt(fields)
	set["status"] = to
	tx := s.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND status = ?", id, from).
		Updates(set)
	if tx.Error != nil {
		return fmt.Errorf("transition document: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		// Either the record is gone or someone else moved it first.
		cur, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("document %s is %s, expected %s", id, cur.Status, from)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx).Delete(&models.Document{}, "id = ?", id)
	if tx.Error != nil {
		return fmt.Errorf("delete document: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func withUpdatedAt(fields map[string]any) map[string]any {
	set := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		set[k] = v
	}
	set["updated_at"] = time.Now().UTC()
	return set
}
