package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultModelName = "text-embedding-ada-002"

type embeddingsCreator interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Embedder produces dense vectors through the OpenAI embeddings API.
type Embedder struct {
	client    embeddingsCreator
	model     openai.EmbeddingModel
	modelName string
	logger    *zap.Logger
}

// NewEmbedder creates an Embedder for the given API key. The model set is
// closed by the client library; unknown names are rejected up front.
func NewEmbedder(apiKey, model string, logger *zap.Logger) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	name := strings.TrimSpace(model)
	if name == "" {
		name = defaultModelName
	}

	var embeddingModel openai.EmbeddingModel
	switch name {
	case defaultModelName, "ada-002":
		embeddingModel = openai.AdaEmbeddingV2
		name = defaultModelName
	default:
		return nil, fmt.Errorf("unsupported openai embedding model: %s", model)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:    openai.NewClient(apiKey),
		model:     embeddingModel,
		modelName: name,
		logger:    logger,
	}, nil
}

// Embed returns the embedding vector for the text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.client == nil {
		return nil, errors.New("openai embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("openai returned empty embedding")
	}

	return resp.Data[0].Embedding, nil
}

// Model returns the provider-qualified embedding model identity recorded in
// index artifacts.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return "openai/" + e.modelName
}
