// Package httpembed is the production embed.Embedder adapter. It speaks a
// plain REST embeddings endpoint (the same request/response shape as
// OpenAI's /v1/embeddings) over net/http, with the teacher's retry/backoff
// idiom rather than a vendor SDK.
package httpembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mediavault/transcript-pipeline/internal/platform/embed"
	"github.com/mediavault/transcript-pipeline/internal/platform/envutil"
	"github.com/mediavault/transcript-pipeline/internal/platform/httpx"
	"github.com/mediavault/transcript-pipeline/internal/platform/logger"
)

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	maxRetries int
}

func New(log *logger.Logger) (embed.Embedder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := envutil.String("EMBEDDING_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing EMBEDDING_API_KEY")
	}
	baseURL := strings.TrimRight(envutil.String("EMBEDDING_BASE_URL", "https://api.openai.com"), "/")
	model := envutil.String("EMBEDDING_MODEL", "text-embedding-3-small")
	dimension := envutil.Int("EMBEDDING_DIMENSION", 1536)
	timeout := envutil.Duration("EMBEDDING_TIMEOUT", 60*time.Second)

	return &client{
		log:        log.With("service", "httpembed.Client"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: 4,
	}, nil
}

func (c *client) Name() string    { return "httpembed:" + c.model }
func (c *client) Dimension() int { return c.dimension }

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	clean := make([]string, len(texts))
	for i, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			t = " "
		}
		clean[i] = t
	}

	req := embeddingsRequest{Model: c.model, Input: clean}
	var resp embeddingsResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = vec
		}
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("httpembed: missing embedding at index %d", i)
		}
	}
	return out, nil
}

func (c *client) do(ctx context.Context, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("httpembed decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("embedding request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

func (c *client) doOnce(ctx context.Context, body any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("httpembed encode error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}
	if resp.StatusCode >= 300 {
		return resp, raw, &statusError{code: resp.StatusCode, body: string(raw)}
	}
	return resp, raw, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("httpembed: status %d: %s", e.code, e.body)
}

func (e *statusError) HTTPStatusCode() int { return e.code }
