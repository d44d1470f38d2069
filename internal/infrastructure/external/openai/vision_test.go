package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/garyjia/store-ops/internal/extraction"
	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testBaseURL = "http://vision.test/v1"

func newTestClient() *VisionClient {
	return NewVisionClient(Config{
		APIKey:      "test-key",
		BaseURL:     testBaseURL,
		Model:       "vision-model",
		MaxTokens:   4096,
		MaxAttempts: 3,
	}, nil, PromptData{
		DefaultAudience: "Mindenki",
		NoiseTokens:     extraction.DefaultNoiseTokens,
	}, zap.NewNop())
}

func completion(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "vision-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"prompt_tokens": 1200, "completion_tokens": 300, "total_tokens": 1500},
	}
}

func TestVisionClient_ExtractManifest(t *testing.T) {
	defer gock.Off()

	reply := "```json\n" + `[
  {"cikkszam": "473440", "cikk_megnevezes": "Livarno tölcsérszűrőbetét kutyafül", "bizonylat_szam": "43531", "elvi_keszlet": 1},
  {"cikkszam": 473465, "cikk_megnevezes": "Livarno Led függöny", "bizonylat_szam": "43531", "elvi_keszlet": "2"}
]` + "\n```"

	var sent map[string]interface{}
	gock.New("http://vision.test").
		Post("/v1/chat/completions").
		AddMatcher(func(req *http.Request, _ *gock.Request) (bool, error) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return false, err
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			return true, json.Unmarshal(body, &sent)
		}).
		Reply(http.StatusOK).
		JSON(completion(reply))

	result, err := newTestClient().ExtractManifest(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.True(t, gock.IsDone())

	require.Len(t, result.Items, 2)
	assert.Equal(t, extraction.FlexString("473440"), result.Items[0].ProductCode)
	assert.Equal(t, extraction.FlexString("473465"), result.Items[1].ProductCode)
	assert.Equal(t, 2, result.Items[1].ExpectedQty.Value)
	assert.Equal(t, extraction.Usage{InputTokens: 1200, OutputTokens: 300}, result.Usage)

	require.NotNil(t, sent)
	assert.Equal(t, "vision-model", sent["model"])
	raw, _ := json.Marshal(sent["messages"])
	assert.Contains(t, string(raw), "data:image/jpeg;base64,anBlZy1ieXRlcw==")
	assert.Contains(t, string(raw), `\"parkside\"`)
}

func TestVisionClient_ExtractBulletin(t *testing.T) {
	defer gock.Off()

	reply := `Itt az eredmény: [{"tema": "Baby ESL - Italos hűtő", "erintett": "Mindenki", "tartalom": "A balos hűtőben [1] polcon...", "hatarido": "2025.11.13 csütörtök", "emoji": "🍼", "checkboxes": ["Feladat"]}] köszönöm`

	gock.New("http://vision.test").
		Post("/v1/chat/completions").
		Reply(http.StatusOK).
		JSON(completion(reply))

	result, err := newTestClient().ExtractBulletin(context.Background(), []byte{0xff, 0xd8, 0xff}, "image/jpeg")
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
	assert.Equal(t, "Baby ESL - Italos hűtő", result.Blocks[0].Topic)
	assert.Equal(t, "A balos hűtőben [1] polcon...", result.Blocks[0].Body)
	require.NotNil(t, result.Blocks[0].Deadline)
	assert.Equal(t, []string{"Feladat"}, result.Blocks[0].Checkboxes)
}

func TestVisionClient_RetriesServerErrors(t *testing.T) {
	defer gock.Off()

	gock.New("http://vision.test").
		Post("/v1/chat/completions").
		Times(1).
		Reply(529).
		JSON(map[string]interface{}{"error": map[string]string{"message": "overloaded", "type": "overloaded_error"}})
	gock.New("http://vision.test").
		Post("/v1/chat/completions").
		Times(1).
		Reply(http.StatusInternalServerError).
		JSON(map[string]interface{}{"error": map[string]string{"message": "boom", "type": "server_error"}})
	gock.New("http://vision.test").
		Post("/v1/chat/completions").
		Reply(http.StatusOK).
		JSON(completion(`[]`))

	result, err := newTestClient().ExtractManifest(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Empty(t, result.Items)
	assert.True(t, gock.IsDone())
}

func TestVisionClient_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       interface{}
		times      int
		wantErr    error
		wantStatus int
	}{
		{
			name:       "client error is not retried",
			status:     http.StatusBadRequest,
			body:       map[string]interface{}{"error": map[string]string{"message": "bad image", "type": "invalid_request_error"}},
			times:      1,
			wantErr:    extraction.ErrUpstreamService,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "overloaded exhausts attempts",
			status:     529,
			body:       map[string]interface{}{"error": map[string]string{"message": "overloaded", "type": "overloaded_error"}},
			times:      3,
			wantErr:    extraction.ErrUpstreamService,
			wantStatus: 529,
		},
		{
			name:       "gateway errors are not retried",
			status:     http.StatusServiceUnavailable,
			body:       map[string]interface{}{"error": map[string]string{"message": "down", "type": "server_error"}},
			times:      1,
			wantErr:    extraction.ErrUpstreamService,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:    "unparsable reply",
			status:  http.StatusOK,
			body:    completion("Sajnos nem látok táblázatot."),
			times:   1,
			wantErr: extraction.ErrParseFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			gock.New("http://vision.test").
				Post("/v1/chat/completions").
				Times(tt.times).
				Reply(tt.status).
				JSON(tt.body)

			_, err := newTestClient().ExtractManifest(context.Background(), []byte("img"), "image/png")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, gock.IsDone(), "unexpected number of attempts")

			if tt.wantStatus != 0 {
				var upstream *extraction.UpstreamError
				require.ErrorAs(t, err, &upstream)
				assert.Equal(t, tt.wantStatus, upstream.StatusCode)
			}
		})
	}
}

func TestVisionClient_EmptyImage(t *testing.T) {
	_, err := newTestClient().ExtractBulletin(context.Background(), nil, "image/jpeg")
	assert.ErrorIs(t, err, extraction.ErrInvalidImage)
}

func TestPrompts(t *testing.T) {
	prompts := DefaultPrompts()
	require.NotEmpty(t, prompts.Bulletin.UserTemplate)
	require.NotEmpty(t, prompts.Manifest.UserTemplate)

	text, err := renderTemplate(prompts.Bulletin.UserTemplate, PromptData{DefaultAudience: "Mindenki"})
	require.NoError(t, err)
	assert.Contains(t, text, `"Mindenki"`)
	assert.NotContains(t, text, "{{")

	t.Run("override replaces only the tasks it names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		require.NoError(t, os.WriteFile(path, []byte("manifest:\n  max_tokens: 2048\n  user_template: \"Olvasd be a sorokat.\"\n"), 0o644))

		loaded, err := LoadPrompts(path)
		require.NoError(t, err)
		assert.Equal(t, "Olvasd be a sorokat.", loaded.Manifest.UserTemplate)
		assert.Equal(t, 2048, loaded.Manifest.MaxTokens)
		assert.True(t, strings.Contains(loaded.Bulletin.UserTemplate, "Napi Infó"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPrompts(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
