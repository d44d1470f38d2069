package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const manifestColumns = `id, manifest_number, week_year, week_number, item_count, done, created_at, updated_at`

// ManifestRepository implements port.ManifestRepository
type ManifestRepository struct {
	db     *sql.DB
	items  *LineItemRepository
	logger *zap.Logger
}

// NewManifestRepository creates a new return manifest repository
func NewManifestRepository(db *sql.DB, logger *zap.Logger) port.ManifestRepository {
	return &ManifestRepository{
		db:     db,
		items:  &LineItemRepository{db: db, logger: logger},
		logger: logger,
	}
}

// FindOrCreate returns the manifest of the week, inserting it when missing
func (r *ManifestRepository) FindOrCreate(ctx context.Context, number string, week entity.WeekKey) (*entity.DocumentManifest, error) {
	now := time.Now()
	_, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO return_manifests (manifest_number, week_year, week_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (manifest_number, week_year, week_number) DO NOTHING
	`, number, week.Year, week.Week, now, now)
	if err != nil {
		r.logger.Error("Failed to create manifest",
			zap.String("manifest", number),
			zap.String("week", week.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create manifest: %w", err)
	}

	query := `SELECT ` + manifestColumns + ` FROM return_manifests
		WHERE manifest_number = ? AND week_year = ? AND week_number = ?`
	m, err := scanManifest(r.getExecutor(ctx).QueryRowContext(ctx, query, number, week.Year, week.Week))
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	if m.Items, err = r.items.listByManifest(ctx, m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByID loads a manifest and its items
func (r *ManifestRepository) GetByID(ctx context.Context, id int64) (*entity.DocumentManifest, error) {
	query := `SELECT ` + manifestColumns + ` FROM return_manifests WHERE id = ?`

	m, err := scanManifest(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("manifest %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get manifest by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	if m.Items, err = r.items.listByManifest(ctx, m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// ListByWeek loads every manifest of the week with items
func (r *ManifestRepository) ListByWeek(ctx context.Context, week entity.WeekKey) ([]*entity.DocumentManifest, error) {
	query := `SELECT ` + manifestColumns + ` FROM return_manifests
		WHERE week_year = ? AND week_number = ?
		ORDER BY manifest_number ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, week.Year, week.Week)
	if err != nil {
		r.logger.Error("Failed to list manifests", zap.String("week", week.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	var manifests []*entity.DocumentManifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan manifest: %w", err)
		}
		manifests = append(manifests, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, m := range manifests {
		if m.Items, err = r.items.listByManifest(ctx, m.ID); err != nil {
			return nil, err
		}
	}
	return manifests, nil
}

// UpdateStatus stores the derived item count and done flag
func (r *ManifestRepository) UpdateStatus(ctx context.Context, m *entity.DocumentManifest) error {
	m.UpdatedAt = time.Now()
	res, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE return_manifests SET item_count = ?, done = ?, updated_at = ? WHERE id = ?`,
		m.ItemCount, m.Done, m.UpdatedAt, m.ID)
	if err != nil {
		r.logger.Error("Failed to update manifest", zap.Int64("id", m.ID), zap.Error(err))
		return fmt.Errorf("failed to update manifest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("manifest %d: %w", m.ID, port.ErrNotFound)
	}
	return nil
}

// getExecutor returns the transaction carried by ctx or the database
func (r *ManifestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

func scanManifest(row rowScanner) (*entity.DocumentManifest, error) {
	var m entity.DocumentManifest
	if err := row.Scan(
		&m.ID,
		&m.ManifestNumber,
		&m.Week.Year,
		&m.Week.Week,
		&m.ItemCount,
		&m.Done,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// Verify interface compliance
var _ port.ManifestRepository = (*ManifestRepository)(nil)
