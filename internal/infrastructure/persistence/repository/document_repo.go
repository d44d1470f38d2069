package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const dayLayout = "2006-01-02"

const documentColumns = `id, day, filename, processed, page_count, topic, audience, deadline, body, created_at, updated_at`

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new bulletin document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// FindOrCreateByDay returns the day's document, inserting an empty one when missing
func (r *DocumentRepository) FindOrCreateByDay(ctx context.Context, day time.Time, filename string) (*entity.Document, error) {
	doc, err := r.GetByDay(ctx, day)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, port.ErrNotFound) {
		return nil, err
	}

	doc = entity.NewDocument(day, filename)
	if err := r.insert(ctx, doc); err != nil {
		return nil, err
	}
	r.logger.Debug("Created bulletin document",
		zap.Int64("id", doc.ID),
		zap.String("day", entity.DayKey(doc.Day)))
	return doc, nil
}

// GetByDay retrieves the lowest-id document of a day with its blocks
func (r *DocumentRepository) GetByDay(ctx context.Context, day time.Time) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM bulletin_documents WHERE day = ? ORDER BY id ASC LIMIT 1`

	doc, err := scanDocument(r.getExecutor(ctx).QueryRowContext(ctx, query, entity.DayKey(day)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document for %s: %w", entity.DayKey(day), port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get document by day", zap.String("day", entity.DayKey(day)), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if doc.Blocks, err = r.loadBlocks(ctx, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByID retrieves a document with its blocks
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM bulletin_documents WHERE id = ?`

	doc, err := scanDocument(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get document by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if doc.Blocks, err = r.loadBlocks(ctx, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListRange lists documents of the days in [from, to] without their blocks
func (r *DocumentRepository) ListRange(ctx context.Context, from, to time.Time) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM bulletin_documents
		WHERE day BETWEEN ? AND ?
		ORDER BY day ASC, id ASC`

	return r.queryDocuments(ctx, false, query, entity.DayKey(from), entity.DayKey(to))
}

// ListDuplicateDays lists, with blocks, every document sharing its day with another one
func (r *DocumentRepository) ListDuplicateDays(ctx context.Context) ([]*entity.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM bulletin_documents
		WHERE day IN (SELECT day FROM bulletin_documents GROUP BY day HAVING COUNT(*) > 1)
		ORDER BY day ASC, id ASC`

	return r.queryDocuments(ctx, true, query)
}

// Save updates the document row and rewrites its blocks. Callers wrap it in a transaction.
func (r *DocumentRepository) Save(ctx context.Context, doc *entity.Document) error {
	if doc.ID == 0 {
		if err := r.insert(ctx, doc); err != nil {
			return err
		}
	} else {
		doc.UpdatedAt = time.Now()
		query := `
			UPDATE bulletin_documents
			SET filename = ?, processed = ?, page_count = ?, topic = ?, audience = ?,
				deadline = ?, body = ?, updated_at = ?
			WHERE id = ?
		`
		res, err := r.getExecutor(ctx).ExecContext(ctx, query,
			doc.Filename,
			doc.Processed,
			doc.PageCount,
			doc.Topic,
			doc.Audience,
			nullString(doc.Deadline),
			doc.Body,
			doc.UpdatedAt,
			doc.ID,
		)
		if err != nil {
			r.logger.Error("Failed to update document", zap.Int64("id", doc.ID), zap.Error(err))
			return fmt.Errorf("failed to update document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("document %d: %w", doc.ID, port.ErrNotFound)
		}
	}

	if _, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM bulletin_blocks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("failed to clear blocks: %w", err)
	}

	for i := range doc.Blocks {
		b := &doc.Blocks[i]
		b.Position = i
		if err := r.insertBlock(ctx, doc.ID, b); err != nil {
			return err
		}
	}
	return nil
}

// SetBlockCompleted marks one block done or open
func (r *DocumentRepository) SetBlockCompleted(ctx context.Context, docID int64, position int, completed bool) error {
	res, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE bulletin_blocks SET completed = ? WHERE document_id = ? AND position = ?`,
		completed, docID, position)
	if err != nil {
		r.logger.Error("Failed to update block", zap.Int64("document_id", docID), zap.Error(err))
		return fmt.Errorf("failed to update block: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("block %d of document %d: %w", position, docID, port.ErrNotFound)
	}
	return nil
}

// Delete removes a document; its blocks go with it
func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM bulletin_documents WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete document", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %d: %w", id, port.ErrNotFound)
	}
	return nil
}

func (r *DocumentRepository) insert(ctx context.Context, doc *entity.Document) error {
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	query := `
		INSERT INTO bulletin_documents (
			day, filename, processed, page_count, topic, audience, deadline, body, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		entity.DayKey(doc.Day),
		doc.Filename,
		doc.Processed,
		doc.PageCount,
		doc.Topic,
		doc.Audience,
		nullString(doc.Deadline),
		doc.Body,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	doc.ID = id
	return nil
}

func (r *DocumentRepository) insertBlock(ctx context.Context, docID int64, b *entity.BulletinBlock) error {
	checkboxes, err := marshalList(b.Checkboxes)
	if err != nil {
		return err
	}
	images, err := marshalList(b.Images)
	if err != nil {
		return err
	}
	products, err := marshalList(b.Products)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bulletin_blocks (
			document_id, position, page_number, topic, audience, deadline, body,
			emoji, checkboxes, images, products, completed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		docID,
		b.Position,
		b.PageNumber,
		b.Topic,
		b.Audience,
		nullString(b.Deadline),
		b.Body,
		nullString(b.Emoji),
		checkboxes,
		images,
		products,
		b.Completed,
	)
	if err != nil {
		r.logger.Error("Failed to create block", zap.Int64("document_id", docID), zap.Error(err))
		return fmt.Errorf("failed to create block: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		b.ID = id
	}
	return nil
}

func (r *DocumentRepository) loadBlocks(ctx context.Context, docID int64) ([]entity.BulletinBlock, error) {
	query := `
		SELECT id, position, page_number, topic, audience, deadline, body,
			emoji, checkboxes, images, products, completed
		FROM bulletin_blocks
		WHERE document_id = ?
		ORDER BY position ASC
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, docID)
	if err != nil {
		r.logger.Error("Failed to load blocks", zap.Int64("document_id", docID), zap.Error(err))
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}
	defer rows.Close()

	blocks := []entity.BulletinBlock{}
	for rows.Next() {
		var (
			b                         entity.BulletinBlock
			deadline, emoji           sql.NullString
			checkboxes, images, prods string
		)
		if err := rows.Scan(
			&b.ID,
			&b.Position,
			&b.PageNumber,
			&b.Topic,
			&b.Audience,
			&deadline,
			&b.Body,
			&emoji,
			&checkboxes,
			&images,
			&prods,
			&b.Completed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		b.Deadline = fromNullString(deadline)
		b.Emoji = fromNullString(emoji)
		if err := unmarshalList(checkboxes, &b.Checkboxes); err != nil {
			return nil, err
		}
		if err := unmarshalList(images, &b.Images); err != nil {
			return nil, err
		}
		if err := unmarshalList(prods, &b.Products); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func (r *DocumentRepository) queryDocuments(ctx context.Context, withBlocks bool, query string, args ...interface{}) ([]*entity.Document, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if withBlocks {
		for _, doc := range docs {
			if doc.Blocks, err = r.loadBlocks(ctx, doc.ID); err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

// getExecutor returns the transaction carried by ctx or the database
func (r *DocumentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc      entity.Document
		day      string
		deadline sql.NullString
	)
	if err := row.Scan(
		&doc.ID,
		&day,
		&doc.Filename,
		&doc.Processed,
		&doc.PageCount,
		&doc.Topic,
		&doc.Audience,
		&deadline,
		&doc.Body,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return nil, fmt.Errorf("invalid day %q: %w", day, err)
	}
	doc.Day = t
	doc.Deadline = fromNullString(deadline)
	return &doc, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func marshalList(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func unmarshalList(raw string, v interface{}) error {
	if raw == "" || raw == "[]" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode list: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
