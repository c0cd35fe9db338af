package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/ai/gemini"
	"github.com/spigell/interview-coach/internal/ai/ollama"
	"github.com/spigell/interview-coach/internal/ai/openai"
	"github.com/spigell/interview-coach/internal/logger"
	"github.com/spigell/interview-coach/internal/secrets"
)

// newEmbedder builds the embedding provider selected by ai.provider. The
// artifact records the provider/model identity, so run and index must agree
// on this configuration.
func newEmbedder(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Embedder, error) {
	if cfg == nil {
		return nil, errors.New("ai configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", ai.ProviderGemini:
		if cfg.Gemini == nil {
			return nil, errors.New("gemini configuration is required under ai.gemini")
		}

		apiKey, err := geminiAPIKey(cfg.Gemini)
		if err != nil {
			return nil, err
		}

		embedLogger := logger.WithCommonFields(log, ai.ProviderGemini, cfg.Gemini.EmbeddingModel)
		return gemini.NewEmbedder(ctx, apiKey, cfg.Gemini.EmbeddingModel, cfg.Gemini.MaxRetries, embedLogger)
	case ai.ProviderOllama:
		host := ""
		model := ""
		maxRetries := 0
		if cfg.Ollama != nil {
			host = cfg.Ollama.Host
			model = cfg.Ollama.Model
			maxRetries = cfg.Ollama.MaxRetries
		}

		embedLogger := logger.WithCommonFields(log, ai.ProviderOllama, model)
		return ollama.NewEmbedder(host, model, maxRetries, embedLogger)
	case ai.ProviderOpenAI:
		if cfg.OpenAI == nil {
			return nil, errors.New("openai configuration is required under ai.openai")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}

		embedLogger := logger.WithCommonFields(log, ai.ProviderOpenAI, cfg.OpenAI.Model)
		return openai.NewEmbedder(apiKey, cfg.OpenAI.Model, embedLogger)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// newGenerator builds the candidate reply generator. Replies always come from
// gemini regardless of the embedding provider: it is the only chat surface.
func newGenerator(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Generator, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required for candidate replies")
	}

	apiKey, err := geminiAPIKey(cfg.Gemini)
	if err != nil {
		return nil, err
	}

	genLogger := logger.WithCommonFields(log, ai.ProviderGemini, cfg.Gemini.Model)
	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
}

func geminiAPIKey(cfg *GeminiConfig) (string, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return "", fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	return apiKey, nil
}
