package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const lineItemColumns = `id, manifest_id, product_code, product_name, expected_qty, sequence,
	collected, found_events, total, overridden, updated_at`

// LineItemRepository implements port.LineItemRepository
type LineItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLineItemRepository creates a new line item repository
func NewLineItemRepository(db *sql.DB, logger *zap.Logger) port.LineItemRepository {
	return &LineItemRepository{
		db:     db,
		logger: logger,
	}
}

// FindByCode finds the item of a manifest by product code
func (r *LineItemRepository) FindByCode(ctx context.Context, manifestID int64, code string) (*entity.LineItem, error) {
	query := `SELECT ` + lineItemColumns + ` FROM line_items WHERE manifest_id = ? AND product_code = ?`

	item, err := scanLineItem(r.getExecutor(ctx).QueryRowContext(ctx, query, manifestID, code))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %s in manifest %d: %w", code, manifestID, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get line item",
			zap.Int64("manifest_id", manifestID),
			zap.String("product_code", code),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get line item: %w", err)
	}
	return item, nil
}

// Create inserts a new line item
func (r *LineItemRepository) Create(ctx context.Context, item *entity.LineItem) error {
	events, err := encodeEvents(item.FoundEvents)
	if err != nil {
		return err
	}
	item.UpdatedAt = time.Now()

	query := `
		INSERT INTO line_items (
			manifest_id, product_code, product_name, expected_qty, sequence,
			collected, found_events, total, overridden, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		item.ManifestID,
		item.ProductCode,
		item.ProductName,
		item.ExpectedQty,
		item.Sequence,
		item.Collected,
		events,
		item.Total,
		item.Overridden,
		item.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create line item",
			zap.String("product_code", item.ProductCode),
			zap.Error(err))
		return fmt.Errorf("failed to create line item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	return nil
}

// Save stores the item's mutable columns
func (r *LineItemRepository) Save(ctx context.Context, item *entity.LineItem) error {
	events, err := encodeEvents(item.FoundEvents)
	if err != nil {
		return err
	}

	query := `
		UPDATE line_items
		SET product_name = ?, expected_qty = ?, sequence = ?, collected = ?,
			found_events = ?, total = ?, overridden = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.getExecutor(ctx).ExecContext(ctx, query,
		item.ProductName,
		item.ExpectedQty,
		item.Sequence,
		item.Collected,
		events,
		item.Total,
		item.Overridden,
		time.Now(),
		item.ID,
	)
	if err != nil {
		r.logger.Error("Failed to save line item", zap.Int64("id", item.ID), zap.Error(err))
		return fmt.Errorf("failed to save line item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("line item %d: %w", item.ID, port.ErrNotFound)
	}
	return nil
}

func (r *LineItemRepository) listByManifest(ctx context.Context, manifestID int64) ([]*entity.LineItem, error) {
	query := `SELECT ` + lineItemColumns + ` FROM line_items WHERE manifest_id = ? ORDER BY sequence ASC, id ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, manifestID)
	if err != nil {
		r.logger.Error("Failed to list line items", zap.Int64("manifest_id", manifestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	items := []*entity.LineItem{}
	for rows.Next() {
		item, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// getExecutor returns the transaction carried by ctx or the database
func (r *LineItemRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

func scanLineItem(row rowScanner) (*entity.LineItem, error) {
	var (
		item   entity.LineItem
		events string
	)
	if err := row.Scan(
		&item.ID,
		&item.ManifestID,
		&item.ProductCode,
		&item.ProductName,
		&item.ExpectedQty,
		&item.Sequence,
		&item.Collected,
		&events,
		&item.Total,
		&item.Overridden,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(events), &item.FoundEvents); err != nil {
		return nil, fmt.Errorf("failed to decode found events: %w", err)
	}
	if item.FoundEvents == nil {
		item.FoundEvents = []int{}
	}
	return &item, nil
}

func encodeEvents(events []int) (string, error) {
	if len(events) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("failed to encode found events: %w", err)
	}
	return string(b), nil
}

// Verify interface compliance
var _ port.LineItemRepository = (*LineItemRepository)(nil)
