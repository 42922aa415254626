package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/extract"
)

// Extract implements extract.FieldExtractor with a vision chat/completions call.
func (c *Client) Extract(ctx context.Context, req extract.Request) (entity.ExtractedFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("extract.openai.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"media_type", req.MediaType,
		"image_bytes", len(req.Image),
	)
	if len(req.Image) == 0 {
		return entity.ExtractedFields{}, nil, fmt.Errorf("empty image")
	}

	dataURL := "data:" + req.MediaType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": extract.BuildSystemPrompt()},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": extract.BuildUserPrompt(req)},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			}},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("extract.openai.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractedFields{}, nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("extract.openai.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
		)
		return entity.ExtractedFields{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("extract.openai.no_choices", "req_id", rid, "raw", string(raw))
		return entity.ExtractedFields{}, raw, fmt.Errorf("no choices in openai response")
	}

	fields, content, err := extract.ParseFields([]byte(cc.Choices[0].Message.Content), c.log)
	if err != nil {
		return entity.ExtractedFields{}, content, err
	}

	c.log.Info("extract.openai.ok",
		"req_id", rid,
		"provider", entity.StrOrEmpty(fields.Provider),
		"has_identifier", fields.HasIdentifier(),
		"has_amount", fields.HasAmount(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return fields, content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}
