package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/util"
)

const (
	defaultHost  = "http://localhost:11434"
	defaultModel = "nomic-embed-text"

	requestTimeout = 30 * time.Second
	baseDelay      = time.Second
)

type embeddingsCaller interface {
	Embeddings(ctx context.Context, req *api.EmbeddingRequest) (*api.EmbeddingResponse, error)
}

// Embedder produces dense vectors through a local Ollama server.
type Embedder struct {
	client     embeddingsCaller
	model      string
	maxRetries int
	wait       func(context.Context, time.Duration) error
	logger     *zap.Logger
}

// NewEmbedder creates an Embedder talking to the Ollama HTTP API at host.
func NewEmbedder(host, model string, maxRetries int, logger *zap.Logger) (*Embedder, error) {
	if host = strings.TrimSpace(host); host == "" {
		host = defaultHost
	}

	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	if maxRetries < 1 {
		maxRetries = 1
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: requestTimeout}

	return &Embedder{
		client:     api.NewClient(parsed, httpClient),
		model:      model,
		maxRetries: maxRetries,
		wait:       util.WaitFor,
		logger:     logger,
	}, nil
}

// Embed returns the embedding vector for the text, retrying transient server
// failures with exponential backoff.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.client == nil {
		return nil, errors.New("ollama embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	req := &api.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	}

	retries := e.maxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		resp, err := e.client.Embeddings(ctx, req)
		if err == nil {
			if len(resp.Embedding) == 0 {
				return nil, errors.New("ollama returned empty embedding")
			}
			return toFloat32(resp.Embedding), nil
		}

		lastErr = err
		if attempt == retries {
			break
		}

		delay := baseDelay << (attempt - 1)
		e.logger.Warn("retrying ollama embedding",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := e.wait(ctx, delay); err != nil {
			return nil, fmt.Errorf("embedding interrupted: %w", err)
		}
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", retries, lastErr)
}

// Model returns the provider-qualified embedding model identity recorded in
// index artifacts.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return "ollama/" + e.model
}

func toFloat32(values []float64) []float32 {
	result := make([]float32, len(values))
	for i, v := range values {
		result[i] = float32(v)
	}
	return result
}
