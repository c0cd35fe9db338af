package ai

import "context"

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model identifies the provider and model pair, e.g.
	// "gemini/gemini-embedding-001". Index artifacts record this identity and
	// refuse to load under a different one.
	Model() string
}

// Generator produces a completion for a system prompt and a user message.
type Generator interface {
	GenerateContent(ctx context.Context, system string, message string) (string, error)
}
