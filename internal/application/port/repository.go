package port

import (
	"context"
	"time"

	"github.com/garyjia/store-ops/internal/domain/entity"
)

// DocumentRepository persists daily-info Documents together with their blocks.
// Documents are addressed by calendar day.
type DocumentRepository interface {
	// FindOrCreateByDay returns the document of the day, creating an empty one when none exists
	FindOrCreateByDay(ctx context.Context, day time.Time, filename string) (*entity.Document, error)

	// GetByDay returns the lowest-id document of the day with its blocks, or ErrNotFound
	GetByDay(ctx context.Context, day time.Time) (*entity.Document, error)

	GetByID(ctx context.Context, id int64) (*entity.Document, error)

	// ListRange returns documents with day in [from, to], without blocks
	ListRange(ctx context.Context, from, to time.Time) ([]*entity.Document, error)

	// ListDuplicateDays returns every document, blocks included, whose day has more than one document
	ListDuplicateDays(ctx context.Context) ([]*entity.Document, error)

	// Save writes the document row and replaces its block list
	Save(ctx context.Context, doc *entity.Document) error

	// SetBlockCompleted flips the completion mark of the block at position
	SetBlockCompleted(ctx context.Context, docID int64, position int, completed bool) error

	Delete(ctx context.Context, id int64) error
}

// ManifestRepository persists DocumentManifests, unique per (manifest number, week)
type ManifestRepository interface {
	FindOrCreate(ctx context.Context, number string, week entity.WeekKey) (*entity.DocumentManifest, error)

	// GetByID loads a manifest with its items ordered by sequence
	GetByID(ctx context.Context, id int64) (*entity.DocumentManifest, error)

	// ListByWeek loads the week's manifests with items, ordered by manifest number
	ListByWeek(ctx context.Context, week entity.WeekKey) ([]*entity.DocumentManifest, error)

	// UpdateStatus stores ItemCount and Done
	UpdateStatus(ctx context.Context, m *entity.DocumentManifest) error
}

// LineItemRepository persists LineItems, unique per (manifest, product code)
type LineItemRepository interface {
	FindByCode(ctx context.Context, manifestID int64, code string) (*entity.LineItem, error)
	Create(ctx context.Context, item *entity.LineItem) error

	// Save stores every mutable column of the item
	Save(ctx context.Context, item *entity.LineItem) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
