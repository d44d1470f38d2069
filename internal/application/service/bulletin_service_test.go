package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/domain/entity"
	"github.com/garyjia/store-ops/internal/extraction"
)

var testDay = time.Date(2025, 11, 13, 9, 30, 0, 0, time.UTC)

func newBulletinService(t *testing.T, merge bool) (*BulletinService, *testStore, *MockVision, *MockRasterizer) {
	store := newTestStore(t)
	vision := new(MockVision)
	rasterizer := new(MockRasterizer)
	svc := NewBulletinService(store.docs, store.tx, vision, prefixSniffer{}, rasterizer, nil,
		extraction.NewClassifier(nil),
		BulletinConfig{MergeDuplicateDays: merge, MaxPDFPages: 10},
		zap.NewNop())
	return svc, store, vision, rasterizer
}

func TestBulletinService_ProcessUpload_AppendsPages(t *testing.T) {
	svc, _, vision, _ := newBulletinService(t, true)
	ctx := context.Background()

	vision.On("ExtractBulletin", mock.Anything, []byte("IMG-1"), "image/jpeg").Return(&port.BulletinVisionResult{
		Blocks: []extraction.VisionBlock{
			{Topic: "Baby ESL - Italos hűtő", Body: "A balos hűtőt ellenőrizni.", Deadline: strPtr("2025.11.13 csutortok"), Emoji: strPtr("🍼")},
			{Topic: "", Body: "fejléc nélküli szöveg"},
		},
		Usage: extraction.Usage{InputTokens: 100, OutputTokens: 20},
	}, nil).Once()
	vision.On("ExtractBulletin", mock.Anything, []byte("IMG-2"), "image/jpeg").Return(&port.BulletinVisionResult{
		Blocks: []extraction.VisionBlock{
			{Topic: "Kassza", Audience: "Pénztárosok", Body: "Zárás előtt számolni."},
		},
	}, nil).Once()

	first, err := svc.ProcessUpload(ctx, testDay, "napi1.jpg", []byte("IMG-1"))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, first.Pages)
	assert.Equal(t, 1, first.Blocks)
	assert.Equal(t, 100, first.Usage.InputTokens)

	second, err := svc.ProcessUpload(ctx, testDay.Add(2*time.Hour), "napi2.jpg", []byte("IMG-2"))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, second.Pages)

	doc, err := svc.Get(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount)
	assert.True(t, doc.Processed)
	assert.Equal(t, "napi1.jpg", doc.Filename)
	assert.Equal(t, "Baby ESL - Italos hűtő", doc.Topic, "preview comes from the first page")

	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "Mindenki", doc.Blocks[0].Audience)
	require.NotNil(t, doc.Blocks[0].Deadline)
	assert.Equal(t, "2025.11.13 csütörtök", *doc.Blocks[0].Deadline)
	assert.Equal(t, 1, doc.Blocks[0].PageNumber)
	assert.Equal(t, 2, doc.Blocks[1].PageNumber)
	assert.Equal(t, 1, doc.Blocks[1].Position)

	vision.AssertExpectations(t)
}

func TestBulletinService_ProcessUpload_PDFKeepsEarlierPagesOnFailure(t *testing.T) {
	svc, _, vision, rasterizer := newBulletinService(t, true)
	ctx := context.Background()

	rasterizer.On("Rasterize", mock.Anything, []byte("%PDF-1.4"), 10).Return([][]byte{[]byte("p1"), []byte("p2")}, nil)
	vision.On("ExtractBulletin", mock.Anything, []byte("p1"), "image/jpeg").Return(&port.BulletinVisionResult{
		Blocks: []extraction.VisionBlock{{Topic: "Raktár rend", Body: "Raklapok a helyükre."}},
	}, nil)
	vision.On("ExtractBulletin", mock.Anything, []byte("p2"), "image/jpeg").
		Return(nil, &extraction.UpstreamError{StatusCode: 529, Err: errors.New("overloaded")})

	result, err := svc.ProcessUpload(ctx, testDay, "napi.pdf", []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.ErrorIs(t, err, extraction.ErrUpstreamService)
	require.NotNil(t, result)
	assert.Equal(t, []int{1}, result.Pages)

	doc, err := svc.Get(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "Raktár rend", doc.Blocks[0].Topic)
}

func TestBulletinService_FailedPageWriteKeepsStoredPages(t *testing.T) {
	svc, store, _, _ := newBulletinService(t, true)
	ctx := context.Background()

	_, err := svc.ProcessText(ctx, testDay, "Téma: Első\nszöveg\nTéma: Második\nszöveg")
	require.NoError(t, err)

	_, err = store.db.Exec(`CREATE TRIGGER fail_block BEFORE INSERT ON bulletin_blocks
		WHEN NEW.topic = 'Második'
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`)
	require.NoError(t, err)

	_, err = svc.ProcessText(ctx, testDay, "Téma: Harmadik\nszöveg")
	assert.ErrorIs(t, err, ErrPersistence)

	doc, err := svc.Get(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "Első", doc.Blocks[0].Topic)
	assert.Equal(t, "Második", doc.Blocks[1].Topic)
	assert.Equal(t, 1, doc.PageCount)
}

func TestBulletinService_ToggleDuringUploadSurvives(t *testing.T) {
	svc, _, vision, _ := newBulletinService(t, true)
	ctx := context.Background()

	_, err := svc.ProcessText(ctx, testDay, "Téma: Első\nszöveg")
	require.NoError(t, err)

	vision.On("ExtractBulletin", mock.Anything, []byte("IMG-2"), "image/jpeg").
		Run(func(args mock.Arguments) {
			_, err := svc.ToggleBlock(ctx, testDay, 0)
			require.NoError(t, err)
		}).
		Return(&port.BulletinVisionResult{
			Blocks: []extraction.VisionBlock{{Topic: "Kassza", Body: "Zárás előtt számolni."}},
		}, nil).Once()

	result, err := svc.ProcessUpload(ctx, testDay, "napi2.jpg", []byte("IMG-2"))
	require.NoError(t, err)
	require.Len(t, result.Document.Blocks, 2)
	assert.True(t, result.Document.Blocks[0].Completed)

	doc, err := svc.Get(ctx, testDay)
	require.NoError(t, err)
	require.Len(t, doc.Blocks, 2)
	assert.True(t, doc.Blocks[0].Completed)
	assert.False(t, doc.Blocks[1].Completed)
	assert.Equal(t, "napi2.jpg", doc.Filename)
	vision.AssertExpectations(t)
}

func TestBulletinService_ProcessUpload_Errors(t *testing.T) {
	t.Run("invalid image", func(t *testing.T) {
		svc, _, _, _ := newBulletinService(t, true)
		_, err := svc.ProcessUpload(context.Background(), testDay, "x.bin", []byte{0xff, 0x00})
		assert.ErrorIs(t, err, extraction.ErrInvalidImage)
	})

	t.Run("nothing recognized", func(t *testing.T) {
		svc, _, vision, _ := newBulletinService(t, true)
		vision.On("ExtractBulletin", mock.Anything, mock.Anything, mock.Anything).
			Return(&port.BulletinVisionResult{}, nil)

		_, err := svc.ProcessUpload(context.Background(), testDay, "blank.jpg", []byte("IMG-blank"))
		assert.ErrorIs(t, err, extraction.ErrNoTextRecognized)

		doc, err := svc.Get(context.Background(), testDay)
		require.NoError(t, err)
		assert.Empty(t, doc.Blocks)
		assert.False(t, doc.Processed)
	})

	t.Run("parse failure", func(t *testing.T) {
		svc, _, vision, _ := newBulletinService(t, true)
		vision.On("ExtractBulletin", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, extraction.ErrParseFailure)

		_, err := svc.ProcessUpload(context.Background(), testDay, "x.jpg", []byte("IMG-x"))
		assert.ErrorIs(t, err, extraction.ErrParseFailure)
	})
}

func TestBulletinService_OneCallPerDay(t *testing.T) {
	svc, _, vision, _ := newBulletinService(t, true)

	started := make(chan struct{})
	release := make(chan struct{})
	vision.On("ExtractBulletin", mock.Anything, []byte("IMG-slow"), "image/jpeg").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&port.BulletinVisionResult{Blocks: []extraction.VisionBlock{{Topic: "Lassú"}}}, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := svc.ProcessUpload(context.Background(), testDay, "slow.jpg", []byte("IMG-slow"))
		errCh <- err
	}()
	<-started

	_, err := svc.ProcessText(context.Background(), testDay, "Téma: Más")
	assert.ErrorIs(t, err, ErrSessionBusy)

	// another day is independent
	_, err = svc.ProcessText(context.Background(), testDay.AddDate(0, 0, 1), "Téma: Holnap")
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-errCh)
}

func TestBulletinService_ProcessText(t *testing.T) {
	svc, _, _, _ := newBulletinService(t, true)
	ctx := context.Background()

	result, err := svc.ProcessText(ctx, testDay, "Téma: Baby ESL\nÉrintett: Mindenki\nHatáridő: csütörtök\nvalami tartalom")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Blocks)

	b := result.Document.Blocks[0]
	assert.Equal(t, "Baby ESL", b.Topic)
	assert.Equal(t, "Mindenki", b.Audience)
	require.NotNil(t, b.Deadline)
	assert.Equal(t, "csütörtök", *b.Deadline)
	assert.Equal(t, "valami tartalom", b.Body)

	t.Run("no labels is not an error", func(t *testing.T) {
		res, err := svc.ProcessText(ctx, testDay, "csak egy sor\nmeg még egy")
		require.NoError(t, err)
		assert.Zero(t, res.Blocks)
		assert.Empty(t, res.Pages)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := svc.ProcessText(ctx, testDay, "  \n\t ")
		assert.ErrorIs(t, err, extraction.ErrNoTextRecognized)
	})
}

func TestBulletinService_ToggleListDelete(t *testing.T) {
	svc, _, _, _ := newBulletinService(t, true)
	ctx := context.Background()

	_, err := svc.ProcessText(ctx, testDay, "Téma: Első\nszöveg\nTéma: Második\nszöveg")
	require.NoError(t, err)

	block, err := svc.ToggleBlock(ctx, testDay, 1)
	require.NoError(t, err)
	assert.True(t, block.Completed)
	assert.Equal(t, "Második", block.Topic)

	doc, err := svc.Get(ctx, testDay)
	require.NoError(t, err)
	assert.False(t, doc.Blocks[0].Completed)
	assert.True(t, doc.Blocks[1].Completed)

	_, err = svc.ToggleBlock(ctx, testDay, 5)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := svc.List(ctx, testDay.AddDate(0, 0, 3), testDay.AddDate(0, 0, -3))
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	_, err = svc.Get(ctx, testDay)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, doc.ID), ErrNotFound)
}

func TestBulletinService_EnsureWorkdays(t *testing.T) {
	svc, _, _, _ := newBulletinService(t, true)
	saturday := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)

	docs, err := svc.EnsureWorkdays(context.Background(), saturday, 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "2025-11-15", entity.DayKey(docs[0].Day))
	assert.Equal(t, "2025-11-17", entity.DayKey(docs[1].Day), "Sunday is skipped")
	assert.Equal(t, "2025-11-18", entity.DayKey(docs[2].Day))

	again, err := svc.EnsureWorkdays(context.Background(), saturday, 3)
	require.NoError(t, err)
	assert.Equal(t, docs[0].ID, again[0].ID)
}

func seedDuplicateDay(t *testing.T, store *testStore) (*entity.Document, *entity.Document) {
	ctx := context.Background()

	keep := entity.NewDocument(testDay, "a.jpg")
	keep.PageCount = 1
	keep.Processed = true
	keep.Blocks = []entity.BulletinBlock{{Topic: "Első", Audience: "Mindenki", PageNumber: 1}}
	require.NoError(t, store.docs.Save(ctx, keep))

	dup := entity.NewDocument(testDay, "b.jpg")
	dup.PageCount = 2
	dup.Processed = true
	dup.Blocks = []entity.BulletinBlock{
		{Topic: "Második", Audience: "Mindenki", PageNumber: 1},
		{Topic: "Harmadik", Audience: "Mindenki", PageNumber: 2},
	}
	require.NoError(t, store.docs.Save(ctx, dup))
	return keep, dup
}

func TestBulletinService_RepairDuplicateDays(t *testing.T) {
	t.Run("merging keeps every block", func(t *testing.T) {
		svc, store, _, _ := newBulletinService(t, true)
		keep, dup := seedDuplicateDay(t, store)

		report, err := svc.RepairDuplicateDays(context.Background())
		require.NoError(t, err)
		assert.True(t, report.Merged)
		assert.Equal(t, 1, report.Deleted)
		require.Len(t, report.Repairs, 1)
		assert.Equal(t, keep.ID, report.Repairs[0].KeepID)
		assert.Equal(t, []int64{dup.ID}, report.Repairs[0].RemovedIDs)

		doc, err := svc.Get(context.Background(), testDay)
		require.NoError(t, err)
		assert.Equal(t, keep.ID, doc.ID)
		require.Len(t, doc.Blocks, 3)
		assert.Equal(t, 3, doc.PageCount)
		assert.Equal(t, []string{"Első", "Második", "Harmadik"},
			[]string{doc.Blocks[0].Topic, doc.Blocks[1].Topic, doc.Blocks[2].Topic})
	})

	t.Run("lossy mode drops duplicates", func(t *testing.T) {
		svc, store, _, _ := newBulletinService(t, false)
		keep, _ := seedDuplicateDay(t, store)

		report, err := svc.RepairDuplicateDays(context.Background())
		require.NoError(t, err)
		assert.False(t, report.Merged)
		assert.Equal(t, 2, report.Repairs[0].DroppedBlocks)

		doc, err := svc.Get(context.Background(), testDay)
		require.NoError(t, err)
		assert.Equal(t, keep.ID, doc.ID)
		assert.Len(t, doc.Blocks, 1)
		assert.Equal(t, 1, doc.PageCount)
	})

	t.Run("nothing to repair", func(t *testing.T) {
		svc, _, _, _ := newBulletinService(t, true)
		report, err := svc.RepairDuplicateDays(context.Background())
		require.NoError(t, err)
		assert.Empty(t, report.Repairs)
		assert.Zero(t, report.Deleted)
	})
}
