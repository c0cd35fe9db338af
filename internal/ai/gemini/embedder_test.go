package gemini

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeEmbedCaller struct {
	mu        sync.Mutex
	texts     []string
	responses []fakeEmbedResponse
}

type fakeEmbedResponse struct {
	resp *genai.EmbedContentResponse
	err  error
}

func (f *fakeEmbedCaller) enqueue(resp *genai.EmbedContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeEmbedResponse{resp: resp, err: err})
}

func (f *fakeEmbedCaller) EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, content := range contents {
		for _, part := range content.Parts {
			f.texts = append(f.texts, part.Text)
		}
	}

	if len(f.responses) == 0 {
		return nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	}
	res := f.responses[0]
	f.responses = f.responses[1:]
	return res.resp, res.err
}

func embedResponse(values []float32) *genai.EmbedContentResponse {
	return &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: values}},
	}
}

func TestEmbedderReturnsVector(t *testing.T) {
	models := &fakeEmbedCaller{}
	models.enqueue(embedResponse([]float32{0.1, 0.2, 0.3}), nil)

	e := &Embedder{models: models, model: "gemini-embedding-001", maxRetries: 1, logger: zap.NewNop()}

	vector, err := e.Embed(context.Background(), "Сколько вам лет?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vector) != 3 || vector[1] != 0.2 {
		t.Fatalf("unexpected vector: %v", vector)
	}

	if len(models.texts) != 1 || models.texts[0] != "Сколько вам лет?" {
		t.Fatalf("unexpected embedded texts: %v", models.texts)
	}
}

func TestEmbedderRetriesOnTemporaryError(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = originalSleep }()

	models := &fakeEmbedCaller{}
	models.enqueue(nil, genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"})
	models.enqueue(embedResponse([]float32{1}), nil)

	e := &Embedder{models: models, model: "gemini-embedding-001", maxRetries: 2, logger: zap.NewNop()}

	vector, err := e.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vector) != 1 {
		t.Fatalf("unexpected vector: %v", vector)
	}
}

func TestEmbedderRejectsEmptyText(t *testing.T) {
	e := &Embedder{models: &fakeEmbedCaller{}, model: "gemini-embedding-001", maxRetries: 1, logger: zap.NewNop()}

	if _, err := e.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestEmbedderEmptyResponse(t *testing.T) {
	models := &fakeEmbedCaller{}
	models.enqueue(&genai.EmbedContentResponse{}, nil)

	e := &Embedder{models: models, model: "gemini-embedding-001", maxRetries: 1, logger: zap.NewNop()}

	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error for empty embedding response")
	}
}

func TestEmbedderModelIdentity(t *testing.T) {
	e := &Embedder{model: "gemini-embedding-001"}

	if got := e.Model(); got != "gemini/gemini-embedding-001" {
		t.Fatalf("unexpected model identity: %q", got)
	}
}
