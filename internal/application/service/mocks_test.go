package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/extraction"
	"github.com/garyjia/store-ops/internal/infrastructure/persistence/repository"
	"github.com/garyjia/store-ops/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/store-ops/pkg/database"
)

// MockVision mocks port.VisionExtractor
type MockVision struct {
	mock.Mock
}

func (m *MockVision) ExtractBulletin(ctx context.Context, image []byte, mimeType string) (*port.BulletinVisionResult, error) {
	args := m.Called(ctx, image, mimeType)
	res, _ := args.Get(0).(*port.BulletinVisionResult)
	return res, args.Error(1)
}

func (m *MockVision) ExtractManifest(ctx context.Context, image []byte, mimeType string) (*port.ManifestVisionResult, error) {
	args := m.Called(ctx, image, mimeType)
	res, _ := args.Get(0).(*port.ManifestVisionResult)
	return res, args.Error(1)
}

// MockRasterizer mocks port.DocumentRasterizer
type MockRasterizer struct {
	mock.Mock
}

func (m *MockRasterizer) Rasterize(ctx context.Context, pdf []byte, maxPages int) ([][]byte, error) {
	args := m.Called(ctx, pdf, maxPages)
	pages, _ := args.Get(0).([][]byte)
	return pages, args.Error(1)
}

// MockSheets mocks port.SpreadsheetReader
type MockSheets struct {
	mock.Mock
}

func (m *MockSheets) ReadLines(ctx context.Context, data []byte) ([]string, error) {
	args := m.Called(ctx, data)
	lines, _ := args.Get(0).([]string)
	return lines, args.Error(1)
}

// prefixSniffer classifies test uploads by a marker prefix
type prefixSniffer struct{}

func (prefixSniffer) Sniff(data []byte) (*port.Upload, error) {
	switch {
	case len(data) == 0:
		return nil, extraction.ErrInvalidImage
	case bytes.HasPrefix(data, []byte("IMG")):
		return &port.Upload{Kind: port.KindImage, MimeType: "image/jpeg", Data: data}, nil
	case bytes.HasPrefix(data, []byte("%PDF")):
		return &port.Upload{Kind: port.KindPDF, MimeType: "application/pdf", Data: data}, nil
	case bytes.HasPrefix(data, []byte("XLSX")):
		return &port.Upload{Kind: port.KindSpreadsheet, MimeType: "application/xlsx", Data: data}, nil
	case bytes.HasPrefix(data, []byte{0xff}):
		return nil, extraction.ErrInvalidImage
	}
	return &port.Upload{Kind: port.KindText, MimeType: "text/plain", Data: data}, nil
}

// recordingReport captures what ExportWeek hands to the writer
type recordingReport struct {
	week      entity.WeekKey
	manifests []*entity.DocumentManifest
}

func (r *recordingReport) WriteWeek(w io.Writer, week entity.WeekKey, manifests []*entity.DocumentManifest) error {
	r.week = week
	r.manifests = manifests
	_, err := w.Write([]byte("report"))
	return err
}

type testStore struct {
	docs      port.DocumentRepository
	manifests port.ManifestRepository
	items     port.LineItemRepository
	tx        port.TransactionManager
	db        *sql.DB
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "service.db"), MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).Migrate())

	return &testStore{
		docs:      repository.NewDocumentRepository(db.DB, logger),
		manifests: repository.NewManifestRepository(db.DB, logger),
		items:     repository.NewLineItemRepository(db.DB, logger),
		tx:        sqlite.NewDB(db.DB, logger),
		db:        db.DB,
	}
}

func strPtr(s string) *string { return &s }
