// Package anthropic extracts receipt fields with the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/extract"
)

type Config struct {
	APIKey      string
	BaseURL     string // optional, for gateways and tests
	Model       string // default claude-3-5-haiku-latest
	Temperature float32
	MaxTokens   int64
	MaxRetries  int
}

type Client struct {
	cfg    Config
	client anthropic.Client
	log    *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{cfg: cfg, client: anthropic.NewClient(opts...), log: logger}
}

// Extract implements extract.FieldExtractor.
func (c *Client) Extract(ctx context.Context, req extract.Request) (entity.ExtractedFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("extract.anthropic.start", "req_id", rid, "model", c.cfg.Model, "media_type", req.MediaType, "image_bytes", len(req.Image))

	if len(req.Image) == 0 {
		return entity.ExtractedFields{}, nil, fmt.Errorf("empty image")
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: anthropic.Float(float64(c.cfg.Temperature)),
		System: []anthropic.TextBlockParam{
			{Text: extract.BuildSystemPrompt()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(req.MediaType, base64.StdEncoding.EncodeToString(req.Image)),
				anthropic.NewTextBlock(extract.BuildUserPrompt(req)),
			),
		},
	})
	if err != nil {
		c.log.Error("extract.anthropic.api_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.ExtractedFields{}, nil, fmt.Errorf("anthropic api error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type != "text" {
			continue
		}
		fields, content, err := extract.ParseFields([]byte(block.Text), c.log)
		if err != nil {
			return entity.ExtractedFields{}, content, err
		}
		c.log.Info("extract.anthropic.ok",
			"req_id", rid,
			"tokens_in", message.Usage.InputTokens,
			"tokens_out", message.Usage.OutputTokens,
			"has_identifier", fields.HasIdentifier(),
			"has_amount", fields.HasAmount(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return fields, content, nil
	}
	return entity.ExtractedFields{}, nil, fmt.Errorf("no text content in anthropic response")
}
