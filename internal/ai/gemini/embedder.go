package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultEmbedModel = "gemini-embedding-001"

type embedCaller interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces dense vectors through the Gemini embedding API.
type Embedder struct {
	models     embedCaller
	model      string
	maxRetries int
	logger     *zap.Logger
}

// NewEmbedder creates an Embedder configured for the Gemini API backend.
func NewEmbedder(ctx context.Context, apiKey, model string, maxRetries int, logger *zap.Logger) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbedModel
	}

	if maxRetries < 1 {
		maxRetries = 1
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		models:     client.Models,
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Embed returns the embedding vector for the text. Retry behavior matches the
// generator: server errors back off, long quota delays fail fast.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	retries := e.maxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		resp, err := e.models.EmbedContent(ctx, e.model, genai.Text(text), nil)
		if err == nil {
			if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
				return nil, errors.New("gemini api returned empty embedding")
			}
			return resp.Embeddings[0].Values, nil
		}

		lastErr = err
		delay, retryable := retryDelay(err, attempt)
		if !retryable {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if attempt == retries {
			break
		}

		e.logger.Warn("retrying gemini embedding",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		sleep(delay)
	}

	return nil, fmt.Errorf("embed content after %d attempts: %w", retries, lastErr)
}

// Model returns the provider-qualified embedding model identity recorded in
// index artifacts.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return "gemini/" + e.model
}
