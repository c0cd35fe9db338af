// Package coach turns a raw interviewer question into at most one piece of
// advisory feedback, by retrieving the closest knowledge documents and
// running them through a small decision pipeline.
package coach

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/index"
	"github.com/spigell/interview-coach/internal/knowledge"
	"github.com/spigell/interview-coach/internal/logger"
)

const (
	// DefaultScoreThreshold is the maximum squared L2 distance a candidate
	// may have to produce feedback. Calibrated for the flat artifact backend.
	DefaultScoreThreshold = 1.2
	// DefaultTopK is the number of candidates retrieved per question.
	DefaultTopK = 3
)

// Policy holds the tunables of the decision pipeline.
type Policy struct {
	ScoreThreshold float64
	TopK           int
}

// Feedback is the advisory shown to the interviewer. At most one is produced
// per question.
type Feedback struct {
	Category   knowledge.Category
	Message    string
	DocumentID string
	Score      float64
}

// Format renders the user-facing advisory with its category marker.
func (f *Feedback) Format() string {
	return f.Category.Marker() + " " + f.Message
}

// Coach composes an embedder and a searchable index into the decision
// pipeline. The searcher is swappable at runtime so a rebuilt index can be
// put in place without restarting the session.
type Coach struct {
	embedder ai.Embedder
	searcher atomic.Pointer[index.Searcher]
	policy   Policy
	stages   []stage
	logger   *zap.Logger
}

// New creates a Coach. A nil searcher is allowed and means coaching is
// disabled until Swap installs one.
func New(embedder ai.Embedder, searcher index.Searcher, policy Policy, log *zap.Logger) *Coach {
	if policy.ScoreThreshold <= 0 {
		policy.ScoreThreshold = DefaultScoreThreshold
	}
	if policy.TopK <= 0 {
		policy.TopK = DefaultTopK
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &Coach{
		embedder: embedder,
		policy:   policy,
		stages: []stage{
			&patternStage{},
			&thresholdStage{threshold: policy.ScoreThreshold},
			&selectionStage{},
		},
		logger: log,
	}
	c.Swap(searcher)

	return c
}

// Swap atomically replaces the index the coach queries. Queries in flight
// finish against the searcher they started with.
func (c *Coach) Swap(searcher index.Searcher) {
	if searcher == nil {
		c.searcher.Store(nil)
		return
	}
	c.searcher.Store(&searcher)
}

// Enabled reports whether a searcher is installed.
func (c *Coach) Enabled() bool {
	return c != nil && c.searcher.Load() != nil
}

// Classify decides whether the question deserves feedback. A nil Feedback
// with a nil error is regular silence. Errors mean the decision could not be
// made; callers degrade to no feedback.
//
// The decision is deterministic: the same question against the same index
// and policy always yields the same outcome.
func (c *Coach) Classify(ctx context.Context, question string) (*Feedback, error) {
	searcher := c.current()
	if searcher == nil {
		return nil, index.ErrUnavailable
	}

	vector, err := c.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	matches, err := searcher.Search(ctx, vector, c.policy.TopK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	if len(matches) == 0 {
		c.logger.Debug("no candidates retrieved")
		return nil, nil
	}

	c.logger.Debug("retrieved candidates",
		zap.Int("count", len(matches)),
		zap.String(logger.FieldDocument, matches[0].Document.ID),
		zap.Float64(logger.FieldScore, matches[0].Score),
	)

	for _, s := range c.stages {
		kept, winner, step := s.Apply(c.logger, question, matches)

		c.logger.Debug("decision step",
			zap.String("name", s.Name()),
			zap.Int("initial", step.Initial),
			zap.Int("dropped", step.Dropped),
			zap.Int("left", step.Left),
		)

		if winner != nil {
			return feedbackFor(*winner), nil
		}

		matches = kept
		if len(matches) == 0 {
			return nil, nil
		}
	}

	return nil, nil
}

func (c *Coach) current() index.Searcher {
	if c == nil {
		return nil
	}
	if p := c.searcher.Load(); p != nil {
		return *p
	}
	return nil
}

func feedbackFor(match index.Match) *Feedback {
	return &Feedback{
		Category:   match.Document.Category,
		Message:    match.Document.Message,
		DocumentID: match.Document.ID,
		Score:      match.Score,
	}
}
