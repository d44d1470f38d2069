package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/extraction"
)

func TestExtractionService_ExtractManifest(t *testing.T) {
	vision := new(MockVision)
	rasterizer := new(MockRasterizer)
	svc := NewExtractionService(vision, prefixSniffer{}, rasterizer, 5, zap.NewNop())

	rasterizer.On("Rasterize", mock.Anything, []byte("%PDF-two"), 5).
		Return([][]byte{[]byte("p1"), []byte("p2")}, nil)
	vision.On("ExtractManifest", mock.Anything, []byte("p1"), "image/jpeg").Return(&port.ManifestVisionResult{
		Items: []extraction.VisionLineItem{visionItem("473440", "Szűrő", "43531", 1)},
		Usage: extraction.Usage{InputTokens: 10, OutputTokens: 2},
	}, nil)
	vision.On("ExtractManifest", mock.Anything, []byte("p2"), "image/jpeg").Return(&port.ManifestVisionResult{
		Items: []extraction.VisionLineItem{
			{ProductCode: "ABC", ProductName: "Hibás", ManifestNumber: "43531"},
		},
		Usage: extraction.Usage{InputTokens: 5, OutputTokens: 1},
	}, nil)

	out, err := svc.ExtractManifest(context.Background(), []byte("%PDF-two"))
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, extraction.Usage{InputTokens: 15, OutputTokens: 3}, out.Usage)

	require.NotEmpty(t, out.Warnings)
	for _, w := range out.Warnings {
		assert.Equal(t, 1, w.Index, "only the second row is malformed")
	}
}

func TestExtractionService_ExtractBulletin(t *testing.T) {
	vision := new(MockVision)
	svc := NewExtractionService(vision, prefixSniffer{}, nil, 5, zap.NewNop())

	vision.On("ExtractBulletin", mock.Anything, []byte("IMG-napi"), "image/jpeg").Return(&port.BulletinVisionResult{
		Blocks: []extraction.VisionBlock{{Topic: "Baby ESL", Body: "tartalom"}},
	}, nil)

	out, err := svc.ExtractBulletin(context.Background(), []byte("IMG-napi"))
	require.NoError(t, err)
	require.Len(t, out.Blocks, 1)
	assert.Equal(t, "Baby ESL", out.Blocks[0].Topic)
}

func TestExtractionService_RejectsNonImages(t *testing.T) {
	svc := NewExtractionService(new(MockVision), prefixSniffer{}, nil, 5, zap.NewNop())

	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("473440 Livarno 43531 1")},
		{"spreadsheet", []byte("XLSX-data")},
		{"garbage", []byte{0xff, 0x00}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ExtractManifest(context.Background(), tt.data)
			assert.ErrorIs(t, err, extraction.ErrInvalidImage)
		})
	}
}
