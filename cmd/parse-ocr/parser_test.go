package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/extraction"
)

// stubVision answers every call with the same canned reading
type stubVision struct {
	blocks []extraction.VisionBlock
	items  []extraction.VisionLineItem
	calls  int
}

func (s *stubVision) ExtractBulletin(ctx context.Context, image []byte, mimeType string) (*port.BulletinVisionResult, error) {
	s.calls++
	return &port.BulletinVisionResult{Blocks: s.blocks, Usage: extraction.Usage{InputTokens: 100, OutputTokens: 10}}, nil
}

func (s *stubVision) ExtractManifest(ctx context.Context, image []byte, mimeType string) (*port.ManifestVisionResult, error) {
	s.calls++
	return &port.ManifestVisionResult{Items: s.items, Usage: extraction.Usage{InputTokens: 200, OutputTokens: 20}}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestParser_BulletinText(t *testing.T) {
	p := newParser(nil, "", nil, zap.NewNop())
	day := time.Date(2025, 11, 13, 9, 0, 0, 0, time.UTC)

	doc, usage, err := p.Bulletin(context.Background(), day, []input{
		{Name: "p1.txt", Data: []byte("Téma: Kassza ellenőrzés\nKérjük a pénztárakat zárás előtt ellenőrizni.")},
		{Name: "p2.txt", Data: []byte("csak zaj, címke nélkül")},
		{Name: "p3.txt", Data: []byte("Téma: Raktár rend\nÉrintett: Raktárosok\nTartalom: Raklapok vissza.")},
	})
	require.NoError(t, err)

	assert.Equal(t, "p1.txt", doc.Filename)
	assert.Equal(t, time.Date(2025, 11, 13, 0, 0, 0, 0, time.UTC), doc.Day)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, 1, doc.Blocks[0].PageNumber)
	assert.Equal(t, 2, doc.Blocks[1].PageNumber)
	assert.Equal(t, "Kassza ellenőrzés", doc.Topic)
	assert.Equal(t, 2, doc.PageCount)
	assert.Zero(t, usage.InputTokens)
}

func TestParser_ImageNeedsVision(t *testing.T) {
	p := newParser(nil, "", nil, zap.NewNop())

	_, _, err := p.Bulletin(context.Background(), time.Now(), []input{{Name: "scan.png", Data: pngBytes(t)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--vision")

	_, err = p.Returns(context.Background(), []input{{Name: "garbage.bin", Data: []byte{0x00, 0x01, 0x02}}}, false)
	assert.ErrorIs(t, err, extraction.ErrInvalidImage)
}

func TestParser_BulletinVision(t *testing.T) {
	vision := &stubVision{blocks: []extraction.VisionBlock{
		{Topic: "Dekoráció", Audience: "", Body: "Ablakok feldíszítése"},
	}}
	p := newParser(nil, "Boltvezetés", vision, zap.NewNop())

	doc, usage, err := p.Bulletin(context.Background(), time.Now(), []input{
		{Name: "a.png", Data: pngBytes(t)},
		{Name: "b.png", Data: pngBytes(t)},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, vision.calls)
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "Boltvezetés", doc.Blocks[0].Audience)
	assert.Equal(t, 200, usage.InputTokens)
}

func TestParser_ReturnsMergesPages(t *testing.T) {
	vision := &stubVision{items: []extraction.VisionLineItem{
		{ProductCode: "473465", ProductName: "Livarno Led függöny", ManifestNumber: "43531", ExpectedQty: extraction.FlexInt{Value: 2, Set: true}},
		{ProductCode: "47346", ProductName: "Csonka cikkszám", ManifestNumber: "43540", ExpectedQty: extraction.FlexInt{Value: 1, Set: true}},
	}}
	p := newParser(nil, "", vision, zap.NewNop())

	out, err := p.Returns(context.Background(), []input{
		{Name: "page1.txt", Data: []byte("473440 Livarno tölcsérszűrőbetét WT-38/1-25 43531 1\n473466 | Ernesto serpenyő | WT-4/12-25 | 33664 | 3")},
		{Name: "page2.png", Data: pngBytes(t)},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, 4, out.Items)
	require.Len(t, out.Manifests, 3)
	assert.Equal(t, "33664", out.Manifests[0].ManifestNumber)
	assert.Equal(t, "43531", out.Manifests[1].ManifestNumber)
	require.Len(t, out.Manifests[1].Items, 2)
	assert.Equal(t, "473440", out.Manifests[1].Items[0].ProductCode)
	assert.Equal(t, "473465", out.Manifests[1].Items[1].ProductCode)

	require.Len(t, out.Warnings, 1)
	assert.Equal(t, "cikkszam", out.Warnings[0].Field)
	assert.Equal(t, 200, out.Usage.InputTokens)
}

func TestRun_PrintsJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.txt")
	require.NoError(t, os.WriteFile(path, []byte("473465 Livarno Led függöny fényfüzér 33693 12\n"), 0o644))

	var out bytes.Buffer
	err := run(context.Background(), args{Returns: &returnsCmd{Files: []string{path}}}, &out)
	require.NoError(t, err)

	var got returnsOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.Items)
	require.Len(t, got.Manifests, 1)
	assert.Equal(t, "33693", got.Manifests[0].ManifestNumber)
	assert.Equal(t, 12, got.Manifests[0].Items[0].ExpectedQty)
}

func TestRun_InvalidDay(t *testing.T) {
	err := run(context.Background(), args{Bulletin: &bulletinCmd{Day: "13/11/2025", Files: []string{"x.txt"}}}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--day")
}
