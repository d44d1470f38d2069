package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/store-ops/internal/application/port"
	"github.com/garyjia/store-ops/internal/extraction"
	"github.com/garyjia/store-ops/pkg/retry"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config configures the vision client. A zero BaseBackoff retries immediately.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	RequestTimeout time.Duration
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
}

// VisionClient implements port.VisionExtractor on an OpenAI-compatible chat completions API
type VisionClient struct {
	client  *openai.Client
	model   string
	tokens  int
	timeout time.Duration
	retry   *retry.Strategy
	prompts *PromptConfig
	data    PromptData
	logger  *zap.Logger
}

var _ port.VisionExtractor = (*VisionClient)(nil)

// NewVisionClient creates a new vision client. A nil prompts uses the bundled prompts.
func NewVisionClient(cfg Config, prompts *PromptConfig, data PromptData, logger *zap.Logger) *VisionClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	strategy := retry.NewStrategy()
	if cfg.MaxAttempts > 0 {
		strategy.MaxAttempts = cfg.MaxAttempts
	}
	strategy.BaseBackoff = cfg.BaseBackoff
	if cfg.MaxBackoff > 0 {
		strategy.MaxBackoff = cfg.MaxBackoff
	}

	return &VisionClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		tokens:  cfg.MaxTokens,
		timeout: cfg.RequestTimeout,
		retry:   strategy,
		prompts: prompts,
		data:    data,
		logger:  logger,
	}
}

// ExtractBulletin reads the blocks of one bulletin page
func (c *VisionClient) ExtractBulletin(ctx context.Context, image []byte, mimeType string) (*port.BulletinVisionResult, error) {
	reply, usage, err := c.complete(ctx, "bulletin", c.prompts.Bulletin, image, mimeType)
	if err != nil {
		return nil, err
	}

	var blocks []extraction.VisionBlock
	if err := extraction.ParseModelReply(reply, &blocks); err != nil {
		c.logger.Error("Failed to parse bulletin reply",
			zap.Error(err),
			zap.String("preview", preview(reply)))
		return nil, err
	}

	c.logger.Info("Bulletin page extracted",
		zap.Int("blocks", len(blocks)),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens))
	return &port.BulletinVisionResult{Blocks: blocks, Usage: usage}, nil
}

// ExtractManifest reads the line items of one manifest page
func (c *VisionClient) ExtractManifest(ctx context.Context, image []byte, mimeType string) (*port.ManifestVisionResult, error) {
	reply, usage, err := c.complete(ctx, "manifest", c.prompts.Manifest, image, mimeType)
	if err != nil {
		return nil, err
	}

	var items []extraction.VisionLineItem
	if err := extraction.ParseModelReply(reply, &items); err != nil {
		c.logger.Error("Failed to parse manifest reply",
			zap.Error(err),
			zap.String("preview", preview(reply)))
		return nil, err
	}

	c.logger.Info("Manifest page extracted",
		zap.Int("items", len(items)),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens))
	return &port.ManifestVisionResult{Items: items, Usage: usage}, nil
}

// complete sends the image with the task prompt, retrying server errors and timeouts
func (c *VisionClient) complete(ctx context.Context, task string, prompt TaskPrompt, image []byte, mimeType string) (string, extraction.Usage, error) {
	if len(image) == 0 {
		return "", extraction.Usage{}, extraction.ErrInvalidImage
	}

	text, err := renderTemplate(prompt.UserTemplate, c.data)
	if err != nil {
		return "", extraction.Usage{}, fmt.Errorf("failed to render %s prompt: %w", task, err)
	}

	maxTokens := prompt.MaxTokens
	if c.tokens > 0 {
		maxTokens = c.tokens
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: prompt.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image)),
							Detail: openai.ImageURLDetailHigh,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: text,
					},
				},
			},
		},
	}

	var resp openai.ChatCompletionResponse
	err = c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		attemptCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		var callErr error
		resp, callErr = c.client.CreateChatCompletion(attemptCtx, req)
		if callErr != nil {
			c.logger.Warn("Vision API call failed",
				zap.String("task", task),
				zap.Int("attempt", attempt),
				zap.Int("status", statusCode(callErr)),
				zap.Error(callErr))
		}
		return callErr
	}, func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		code := statusCode(err)
		return retry.IsRetryableStatusCode(code) || (code == 0 && retry.IsTimeout(err))
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", extraction.Usage{}, ctxErr
		}
		return "", extraction.Usage{}, &extraction.UpstreamError{StatusCode: statusCode(err), Err: err}
	}

	usage := extraction.Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return "", usage, fmt.Errorf("%w: no choices in response", extraction.ErrParseFailure)
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// statusCode extracts the HTTP status from a go-openai error, 0 if there was no response
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func preview(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	return s[:max]
}
