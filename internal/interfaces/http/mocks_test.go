package http

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/application/service"
	"github.com/garyjia/store-ops/internal/domain/entity"
)

type MockBulletins struct {
	mock.Mock
}

func (m *MockBulletins) ProcessUpload(ctx context.Context, day time.Time, filename string, data []byte) (*service.BulletinResult, error) {
	args := m.Called(ctx, day, filename, data)
	res, _ := args.Get(0).(*service.BulletinResult)
	return res, args.Error(1)
}

func (m *MockBulletins) ProcessText(ctx context.Context, day time.Time, text string) (*service.BulletinResult, error) {
	args := m.Called(ctx, day, text)
	res, _ := args.Get(0).(*service.BulletinResult)
	return res, args.Error(1)
}

func (m *MockBulletins) Get(ctx context.Context, day time.Time) (*entity.Document, error) {
	args := m.Called(ctx, day)
	doc, _ := args.Get(0).(*entity.Document)
	return doc, args.Error(1)
}

func (m *MockBulletins) List(ctx context.Context, from, to time.Time) ([]*entity.Document, error) {
	args := m.Called(ctx, from, to)
	docs, _ := args.Get(0).([]*entity.Document)
	return docs, args.Error(1)
}

func (m *MockBulletins) ToggleBlock(ctx context.Context, day time.Time, position int) (*entity.BulletinBlock, error) {
	args := m.Called(ctx, day, position)
	b, _ := args.Get(0).(*entity.BulletinBlock)
	return b, args.Error(1)
}

func (m *MockBulletins) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBulletins) RepairDuplicateDays(ctx context.Context) (*service.DayRepairReport, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*service.DayRepairReport)
	return r, args.Error(1)
}

type MockReturns struct {
	mock.Mock
}

func (m *MockReturns) StartSession(week entity.WeekKey) (*service.SessionSnapshot, error) {
	args := m.Called(week)
	s, _ := args.Get(0).(*service.SessionSnapshot)
	return s, args.Error(1)
}

func (m *MockReturns) Session(id string) (*service.SessionSnapshot, error) {
	args := m.Called(id)
	s, _ := args.Get(0).(*service.SessionSnapshot)
	return s, args.Error(1)
}

func (m *MockReturns) AddUpload(ctx context.Context, id, filename string, data []byte) (*service.PageReport, error) {
	args := m.Called(ctx, id, filename, data)
	r, _ := args.Get(0).(*service.PageReport)
	return r, args.Error(1)
}

func (m *MockReturns) AddText(ctx context.Context, id, text string) (*service.PageReport, error) {
	args := m.Called(ctx, id, text)
	r, _ := args.Get(0).(*service.PageReport)
	return r, args.Error(1)
}

func (m *MockReturns) Cancel(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockReturns) Discard(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockReturns) Commit(ctx context.Context, id string) (*service.CommitReport, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*service.CommitReport)
	return r, args.Error(1)
}

func (m *MockReturns) ListWeek(ctx context.Context, week entity.WeekKey) ([]*entity.DocumentManifest, error) {
	args := m.Called(ctx, week)
	ms, _ := args.Get(0).([]*entity.DocumentManifest)
	return ms, args.Error(1)
}

func (m *MockReturns) GetManifest(ctx context.Context, id int64) (*entity.DocumentManifest, error) {
	args := m.Called(ctx, id)
	mf, _ := args.Get(0).(*entity.DocumentManifest)
	return mf, args.Error(1)
}

func (m *MockReturns) RecordFound(ctx context.Context, manifestID int64, code string, qty int) (*service.LedgerResult, error) {
	args := m.Called(ctx, manifestID, code, qty)
	r, _ := args.Get(0).(*service.LedgerResult)
	return r, args.Error(1)
}

func (m *MockReturns) SetTotal(ctx context.Context, manifestID int64, code string, total int) (*service.LedgerResult, error) {
	args := m.Called(ctx, manifestID, code, total)
	r, _ := args.Get(0).(*service.LedgerResult)
	return r, args.Error(1)
}

func (m *MockReturns) DeleteEvent(ctx context.Context, manifestID int64, code string, index int) (*service.LedgerResult, error) {
	args := m.Called(ctx, manifestID, code, index)
	r, _ := args.Get(0).(*service.LedgerResult)
	return r, args.Error(1)
}

func (m *MockReturns) ToggleCollected(ctx context.Context, manifestID int64, code string) (*service.LedgerResult, error) {
	args := m.Called(ctx, manifestID, code)
	r, _ := args.Get(0).(*service.LedgerResult)
	return r, args.Error(1)
}

func (m *MockReturns) ExportWeek(ctx context.Context, week entity.WeekKey, w io.Writer) error {
	args := m.Called(ctx, week, w)
	if args.Error(0) == nil {
		_, _ = w.Write([]byte("PK-xlsx"))
	}
	return args.Error(0)
}

type MockExtraction struct {
	mock.Mock
}

func (m *MockExtraction) ExtractBulletin(ctx context.Context, data []byte) (*port.BulletinVisionResult, error) {
	args := m.Called(ctx, data)
	r, _ := args.Get(0).(*port.BulletinVisionResult)
	return r, args.Error(1)
}

func (m *MockExtraction) ExtractManifest(ctx context.Context, data []byte) (*service.ManifestExtraction, error) {
	args := m.Called(ctx, data)
	r, _ := args.Get(0).(*service.ManifestExtraction)
	return r, args.Error(1)
}
