// Package ollama embeds text through an Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"github.com/cognicore/lexcase/pkg/lexcase/index"
	"github.com/cognicore/lexcase/pkg/lexcase/internalerr"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "nomic-embed-text"

// Client is the part of *api.Client the embedder needs.
type Client interface {
	Embeddings(ctx context.Context, req *api.EmbeddingRequest) (*api.EmbeddingResponse, error)
}

// Embedder implements index.Embedder.
type Embedder struct {
	Client     Client
	Model      string
	Dims       int
	MaxRetries int
	Timeout    time.Duration
}

var _ index.Embedder = (*Embedder)(nil)

// New connects to host, or to OLLAMA_HOST when host is empty.
func New(host, model string, dims int) (*Embedder, error) {
	base := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("parse ollama host %q: %v: %w", host, err, internalerr.ErrInvalidConfig)
		}
		base = u
	}
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{
		Client:     api.NewClient(base, http.DefaultClient),
		Model:      model,
		Dims:       dims,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}, nil
}

// Dimensions returns the configured vector width.
func (e *Embedder) Dimensions() int { return e.Dims }

// Embed requests an embedding, retrying with a linear backoff.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var err error
	for attempt := 0; attempt <= e.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		var vec []float32
		vec, err = e.embed(ctx, text)
		if err == nil {
			return vec, nil
		}
	}
	return nil, fmt.Errorf("embed after %d retries: %v: %w", e.MaxRetries, err, internalerr.ErrIndexUnavailable)
}

func (e *Embedder) embed(ctx context.Context, text string) ([]float32, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	resp, err := e.Client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:   e.Model,
		Prompt:  text,
		Options: map[string]any{},
	})
	if err != nil {
		return nil, err
	}
	if e.Dims > 0 && len(resp.Embedding) != e.Dims {
		return nil, fmt.Errorf("model %s returned %d dims, want %d", e.Model, len(resp.Embedding), e.Dims)
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
