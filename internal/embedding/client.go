// Package embedding provides the remote embedding provider client (spec
// §4.5): it turns batches of chunk text into vectors, handling provider-side
// batch-size limits, bounded concurrency, and retry with backoff the way the
// teacher's APIEmbeddingService handled its own OpenAI-compatible calls.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"vectordb/internal/apperr"
	"vectordb/internal/errlog"

	"golang.org/x/sync/errgroup"
)

// Role distinguishes how a text will be used, since some providers embed
// queries and documents into slightly different subspaces (spec §4.5).
type Role string

const (
	RoleDocument Role = "document"
	RoleQuery    Role = "query"
)

// Client is the stateless contract the library lifecycle depends on.
// It is injected rather than constructed internally so tests can stub it
// (spec §4.5).
type Client interface {
	EmbedBatch(ctx context.Context, texts []string, role Role) ([][]float32, error)
}

// Config controls batching, concurrency, and retry behavior.
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	BatchSize   int           // default 96
	Concurrency int           // default 4
	Timeout     time.Duration // per-HTTP-call timeout, default 30s
}

const (
	defaultBatchSize   = 96
	defaultConcurrency = 4
	defaultTimeout     = 30 * time.Second
	maxRetries         = 4
	baseBackoff        = 250 * time.Millisecond
	backoffFactor      = 2
)

// HTTPClient is a Cohere-compatible embedding client over HTTP.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPClient builds an HTTPClient, filling in defaults for any zero-value
// Config fields.
func NewHTTPClient(cfg Config) *HTTPClient {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// EmbedBatch chunks texts into provider-sized batches, dispatches up to
// cfg.Concurrency of them at once, and stitches the results back into input
// order (spec §4.5).
func (c *HTTPClient) EmbedBatch(ctx context.Context, texts []string, role Role) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	out := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			vecs, err := c.callWithRetry(gCtx, b.texts, role)
			if err != nil {
				return err
			}
			for i, v := range vecs {
				out[b.start+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := -1
	for _, v := range out {
		if dim == -1 {
			dim = len(v)
			continue
		}
		if len(v) != dim {
			return nil, apperr.New(apperr.EmbeddingProtocol, "embedding provider returned non-uniform dimensions (%d and %d)", dim, len(v))
		}
	}
	return out, nil
}

// callWithRetry issues one provider call, retrying transient failures with
// exponential backoff (spec §4.5): base 250ms, factor 2, up to 4 retries.
// Auth failures fail immediately without retrying.
func (c *HTTPClient) callWithRetry(ctx context.Context, texts []string, role Role) ([][]float32, error) {
	backoff := baseBackoff
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= backoffFactor
		}

		vecs, retryable, err := c.call(ctx, texts, role)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		errlog.Logf("embedding call failed (attempt %d/%d): %v", attempt+1, maxRetries+1, err)
	}
	return nil, apperr.Wrap(apperr.EmbeddingUnavailable, lastErr, "embedding provider unavailable after %d retries: %v", maxRetries, lastErr)
}

type embedRequest struct {
	Model     string   `json:"model"`
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Message    string      `json:"message"`
}

// call issues a single HTTP request. The bool return reports whether a
// non-nil error is safe to retry.
func (c *HTTPClient) call(ctx context.Context, texts []string, role Role) ([][]float32, bool, error) {
	inputType := "search_document"
	if role == RoleQuery {
		inputType = "search_query"
	}
	reqBody, err := json.Marshal(embedRequest{Model: c.cfg.Model, Texts: texts, InputType: inputType})
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Internal, err, "marshal embedding request")
	}

	url := strings.TrimRight(c.cfg.Endpoint, "/") + "/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, false, apperr.Wrap(apperr.Internal, err, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, apperr.Wrap(apperr.EmbeddingUnavailable, err, "embedding request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20))
	if err != nil {
		return nil, true, apperr.Wrap(apperr.EmbeddingUnavailable, err, "reading embedding response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, apperr.New(apperr.EmbeddingAuth, "embedding provider rejected credentials (HTTP %d)", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, apperr.New(apperr.EmbeddingUnavailable, "embedding provider error (HTTP %d): %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, false, apperr.New(apperr.EmbeddingProtocol, "embedding provider error (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var parsed embedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, apperr.Wrap(apperr.EmbeddingProtocol, err, "decoding embedding response: %v", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, false, apperr.New(apperr.EmbeddingProtocol, "embedding provider returned %d vectors for %d inputs", len(parsed.Embeddings), len(texts))
	}
	return parsed.Embeddings, false, nil
}
