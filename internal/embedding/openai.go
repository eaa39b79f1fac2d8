package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
)

const openAIEmbeddingsURL = "https://api.openai.com/v1/embeddings"

// OpenAIClient calls the OpenAI embeddings endpoint. Rate-limit and server
// errors are retried with backoff; anything else fails the batch.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithBaseURL points the client at an alternate endpoint (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *OpenAIClient) { c.baseURL = u }
}

// WithModel overrides the embedding model.
func WithModel(m string) Option {
	return func(c *OpenAIClient) { c.model = m }
}

// NewOpenAIClient builds a client for the given API key.
func NewOpenAIClient(apiKey string, logger *zap.Logger, opts ...Option) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	c := &OpenAIClient{
		apiKey:  apiKey,
		model:   DefaultModel,
		baseURL: openAIEmbeddingsURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxRetries: 3,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch implements Embedder.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingsRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	var resp embeddingsResponse
	for attempt := 0; ; attempt++ {
		err = c.post(ctx, body, &resp)
		if err == nil {
			break
		}
		if attempt >= c.maxRetries || !isRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		backoff := time.Duration(1<<attempt) * 500 * time.Millisecond
		c.logger.Warn("embeddings request retry",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("embed batch canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

func (c *OpenAIClient) post(ctx context.Context, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new embeddings request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("embeddings request: %w", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		reqErr := fmt.Errorf("embeddings request failed: %s - %s", resp.Status, string(payload))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &retryableError{err: reqErr}
		}
		return reqErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode embeddings response: %w", err)
	}
	return nil
}
