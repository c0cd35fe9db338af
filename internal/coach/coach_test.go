package coach

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/index"
	"github.com/spigell/interview-coach/internal/knowledge"
)

type fakeEmbedder struct {
	vectors map[string][]float32
	vector  []float32
	err     error
	calls   []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if vector, ok := f.vectors[text]; ok {
		return vector, nil
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Model() string { return "fake/embedder" }

type fakeSearcher struct {
	matches []index.Match
	err     error
	queries [][]float32
	lastK   int
}

func (f *fakeSearcher) Search(_ context.Context, vector []float32, k int) ([]index.Match, error) {
	f.queries = append(f.queries, vector)
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if k > len(f.matches) {
		k = len(f.matches)
	}
	return f.matches[:k], nil
}

func (f *fakeSearcher) Len() int { return len(f.matches) }

func match(id string, category knowledge.Category, score float64) index.Match {
	return index.Match{
		Document: knowledge.Document{
			ID:       id,
			Exemplar: "exemplar",
			Category: category,
			Message:  "message for " + id,
		},
		Score: score,
	}
}

func newTestCoach(embedder *fakeEmbedder, searcher index.Searcher, policy Policy) *Coach {
	return New(embedder, searcher, policy, zap.NewNop())
}

func TestClassifyEmitsClosestMatch(t *testing.T) {
	searcher := &fakeSearcher{matches: []index.Match{
		match("age", knowledge.CategoryWarning, 0.4),
		match("open", knowledge.CategoryInfo, 0.9),
	}}
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, searcher, Policy{})

	feedback, err := c.Classify(context.Background(), "Сколько вам лет?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback == nil {
		t.Fatal("expected feedback")
	}

	if feedback.DocumentID != "age" || feedback.Category != knowledge.CategoryWarning {
		t.Fatalf("unexpected feedback: %+v", feedback)
	}
	if feedback.Score != 0.4 {
		t.Fatalf("expected score 0.4, got %v", feedback.Score)
	}
	if feedback.Message != "message for age" {
		t.Fatalf("unexpected message: %q", feedback.Message)
	}

	if searcher.lastK != DefaultTopK {
		t.Fatalf("expected default k %d, got %d", DefaultTopK, searcher.lastK)
	}
}

func TestClassifyPicksLowestScoreRegardlessOfCategory(t *testing.T) {
	searcher := &fakeSearcher{matches: []index.Match{
		match("pause", knowledge.CategoryInfo, 0.3),
		match("age", knowledge.CategoryWarning, 0.9),
	}}
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, searcher, Policy{})

	feedback, err := c.Classify(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback == nil || feedback.DocumentID != "pause" {
		t.Fatalf("expected the closest document to win, got %+v", feedback)
	}
}

func TestClassifyPrefersWarningOnEqualScore(t *testing.T) {
	searcher := &fakeSearcher{matches: []index.Match{
		match("aa-tip", knowledge.CategoryTip, 0.5),
		match("bb-warning", knowledge.CategoryWarning, 0.5),
	}}
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, searcher, Policy{})

	feedback, err := c.Classify(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback == nil || feedback.DocumentID != "bb-warning" {
		t.Fatalf("expected warning to win the tie, got %+v", feedback)
	}
}

func TestClassifyTieBreaksByDocumentID(t *testing.T) {
	searcher := &fakeSearcher{matches: []index.Match{
		match("bb", knowledge.CategoryWarning, 0.5),
		match("aa", knowledge.CategoryWarning, 0.5),
	}}
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, searcher, Policy{})

	feedback, err := c.Classify(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback == nil || feedback.DocumentID != "aa" {
		t.Fatalf("expected the smaller id to win the tie, got %+v", feedback)
	}
}

func TestClassifySilenceWhenAllAboveThreshold(t *testing.T) {
	searcher := &fakeSearcher{matches: []index.Match{
		match("age", knowledge.CategoryWarning, 2.0),
		match("open", knowledge.CategoryInfo, 3.0),
	}}
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, searcher, Policy{})

	feedback, err := c.Classify(context.Background(), "Какой у вас опыт работы с Java?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback != nil {
		t.Fatalf("expected silence, got %+v", feedback)
	}
}

func TestClassifyPatternOverridesThreshold(t *testing.T) {
	far := match("age", knowledge.CategoryWarning, 4.2)
	far.Document.Patterns = []string{"сколько вам лет"}

	searcher := &fakeSearcher{matches: []index.Match{far}}
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, searcher, Policy{})

	feedback, err := c.Classify(context.Background(), "Сколько вам лет?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback == nil || feedback.DocumentID != "age" {
		t.Fatalf("expected the pattern hit to win, got %+v", feedback)
	}
	if feedback.Score != 4.2 {
		t.Fatalf("expected the retrieval score to be preserved, got %v", feedback.Score)
	}
}

func TestClassifySilenceOnEmptyRetrieval(t *testing.T) {
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, &fakeSearcher{}, Policy{})

	feedback, err := c.Classify(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback != nil {
		t.Fatalf("expected silence, got %+v", feedback)
	}
}

func TestClassifyEmbedErrorPropagates(t *testing.T) {
	embedErr := errors.New("provider down")
	c := newTestCoach(&fakeEmbedder{err: embedErr}, &fakeSearcher{}, Policy{})

	feedback, err := c.Classify(context.Background(), "question")
	if !errors.Is(err, embedErr) {
		t.Fatalf("expected embed error, got %v", err)
	}
	if feedback != nil {
		t.Fatalf("expected no feedback on error, got %+v", feedback)
	}
}

func TestClassifySearchErrorPropagates(t *testing.T) {
	searchErr := errors.New("index gone")
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, &fakeSearcher{err: searchErr}, Policy{})

	feedback, err := c.Classify(context.Background(), "question")
	if !errors.Is(err, searchErr) {
		t.Fatalf("expected search error, got %v", err)
	}
	if feedback != nil {
		t.Fatalf("expected no feedback on error, got %+v", feedback)
	}
}

func TestClassifyWithoutSearcher(t *testing.T) {
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, nil, Policy{})

	if c.Enabled() {
		t.Fatal("expected coaching to be disabled without a searcher")
	}

	_, err := c.Classify(context.Background(), "question")
	if !errors.Is(err, index.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	searcher := &fakeSearcher{matches: []index.Match{
		match("age", knowledge.CategoryWarning, 0.4),
		match("open", knowledge.CategoryInfo, 0.9),
	}}
	c := newTestCoach(&fakeEmbedder{vector: []float32{1, 0}}, searcher, Policy{})

	var first *Feedback
	for i := 0; i < 3; i++ {
		feedback, err := c.Classify(context.Background(), "Сколько вам лет?")
		if err != nil {
			t.Fatalf("unexpected error on run %d: %v", i, err)
		}
		if feedback == nil {
			t.Fatalf("expected feedback on run %d", i)
		}
		if first == nil {
			first = feedback
			continue
		}
		if *feedback != *first {
			t.Fatalf("decision changed between runs: %+v vs %+v", feedback, first)
		}
	}
}

func TestRaisingThresholdNeverFlipsTheWinner(t *testing.T) {
	matches := []index.Match{
		match("age", knowledge.CategoryWarning, 0.8),
		match("open", knowledge.CategoryInfo, 1.5),
	}

	classify := func(threshold float64) *Feedback {
		t.Helper()
		c := newTestCoach(
			&fakeEmbedder{vector: []float32{1, 0}},
			&fakeSearcher{matches: matches},
			Policy{ScoreThreshold: threshold},
		)
		feedback, err := c.Classify(context.Background(), "question")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return feedback
	}

	if feedback := classify(0.5); feedback != nil {
		t.Fatalf("expected silence below every score, got %+v", feedback)
	}

	low := classify(1.0)
	if low == nil || low.DocumentID != "age" {
		t.Fatalf("expected age to win at threshold 1.0, got %+v", low)
	}

	high := classify(2.0)
	if high == nil || high.DocumentID != "age" {
		t.Fatalf("a higher threshold must not change the winner, got %+v", high)
	}
}

func TestSwapReplacesIndex(t *testing.T) {
	c := newTestCoach(
		&fakeEmbedder{vector: []float32{1, 0}},
		&fakeSearcher{matches: []index.Match{match("age", knowledge.CategoryWarning, 0.4)}},
		Policy{},
	)

	feedback, err := c.Classify(context.Background(), "question")
	if err != nil || feedback == nil || feedback.DocumentID != "age" {
		t.Fatalf("unexpected first decision: %+v, %v", feedback, err)
	}

	c.Swap(&fakeSearcher{matches: []index.Match{match("family", knowledge.CategoryWarning, 0.2)}})

	feedback, err = c.Classify(context.Background(), "question")
	if err != nil || feedback == nil || feedback.DocumentID != "family" {
		t.Fatalf("unexpected decision after swap: %+v, %v", feedback, err)
	}

	c.Swap(nil)
	if c.Enabled() {
		t.Fatal("expected coaching to be disabled after swapping in nil")
	}
	if _, err := c.Classify(context.Background(), "question"); !errors.Is(err, index.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after swapping in nil, got %v", err)
	}
}

func TestNewAppliesPolicyDefaults(t *testing.T) {
	c := newTestCoach(&fakeEmbedder{}, &fakeSearcher{}, Policy{})

	if c.policy.ScoreThreshold != DefaultScoreThreshold {
		t.Fatalf("expected default threshold, got %v", c.policy.ScoreThreshold)
	}
	if c.policy.TopK != DefaultTopK {
		t.Fatalf("expected default top-k, got %v", c.policy.TopK)
	}
}

func TestFeedbackFormat(t *testing.T) {
	tests := []struct {
		category knowledge.Category
		want     string
	}{
		{knowledge.CategoryWarning, "⚠️ careful"},
		{knowledge.CategoryTip, "💡 careful"},
		{knowledge.CategoryInfo, "ℹ️ careful"},
	}

	for _, tc := range tests {
		feedback := &Feedback{Category: tc.category, Message: "careful"}
		if got := feedback.Format(); got != tc.want {
			t.Errorf("Format() for %s = %q, want %q", tc.category, got, tc.want)
		}
	}
}

func TestClassifyAgainstFlatIndex(t *testing.T) {
	docs := []index.Entry{
		{
			Document: knowledge.Document{
				ID:       "age-discrimination",
				Exemplar: "Сколько вам лет?",
				Category: knowledge.CategoryWarning,
				Message:  "Вопросы о возрасте могут нарушать закон.",
			},
			Vector: []float32{1, 0},
		},
		{
			Document: knowledge.Document{
				ID:       "open-questions",
				Exemplar: "Расскажите о себе.",
				Category: knowledge.CategoryTip,
				Message:  "Открытые вопросы дают больше информации.",
			},
			Vector: []float32{0, 1},
		},
	}

	flat, err := index.Build(docs)
	if err != nil {
		t.Fatalf("building index: %v", err)
	}

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"Сколько вам лет?":                {0.95, 0.05},
		"Какой у вас опыт работы с Java?": {5, 5},
	}}

	c := newTestCoach(embedder, flat, Policy{})

	feedback, err := c.Classify(context.Background(), "Сколько вам лет?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback == nil || feedback.Category != knowledge.CategoryWarning {
		t.Fatalf("expected a warning for the age question, got %+v", feedback)
	}

	feedback, err = c.Classify(context.Background(), "Какой у вас опыт работы с Java?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feedback != nil {
		t.Fatalf("expected silence for the experience question, got %+v", feedback)
	}
}
