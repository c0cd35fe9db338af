package coach

import (
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/index"
	"github.com/spigell/interview-coach/internal/logger"
)

// Step describes the result of executing a decision stage.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// stage is a single narrowing step of the decision pipeline. A stage either
// narrows the candidate list or short-circuits with a winner.
type stage interface {
	Name() string
	Apply(log *zap.Logger, question string, matches []index.Match) ([]index.Match, *index.Match, Step)
}

// patternStage short-circuits when the question contains a prohibited
// pattern of a retrieved document. Pattern hits bypass the score threshold:
// a literal match beats any distance.
type patternStage struct{}

func (s *patternStage) Name() string { return "prohibited_patterns" }

func (s *patternStage) Apply(log *zap.Logger, question string, matches []index.Match) ([]index.Match, *index.Match, Step) {
	step := Step{Initial: len(matches), Left: len(matches)}

	for _, match := range matches {
		pattern, ok := match.Document.MatchPattern(question)
		if !ok {
			continue
		}

		log.Info("question matched a prohibited pattern",
			zap.String(logger.FieldDocument, match.Document.ID),
			zap.String("pattern", pattern),
		)

		winner := match
		return matches, &winner, step
	}

	return matches, nil, step
}

// thresholdStage drops candidates whose distance exceeds the configured
// threshold. Scores are comparable within one index only.
type thresholdStage struct {
	threshold float64
}

func (s *thresholdStage) Name() string { return "score_threshold" }

func (s *thresholdStage) Apply(log *zap.Logger, _ string, matches []index.Match) ([]index.Match, *index.Match, Step) {
	kept := make([]index.Match, 0, len(matches))
	for _, match := range matches {
		if match.Score <= s.threshold {
			kept = append(kept, match)
		}
	}

	if len(kept) == 0 && len(matches) > 0 {
		log.Debug("all candidates above threshold",
			zap.Float64("threshold", s.threshold),
			zap.String(logger.FieldDocument, matches[0].Document.ID),
			zap.Float64(logger.FieldScore, matches[0].Score),
		)
	}

	return kept, nil, Step{Initial: len(matches), Dropped: len(matches) - len(kept), Left: len(kept)}
}

// selectionStage picks the single winner among the survivors: lowest score
// first, then category priority, then document id. The scan does not rely on
// the searcher's ordering.
type selectionStage struct{}

func (s *selectionStage) Name() string { return "category_precedence" }

func (s *selectionStage) Apply(_ *zap.Logger, _ string, matches []index.Match) ([]index.Match, *index.Match, Step) {
	if len(matches) == 0 {
		return nil, nil, Step{}
	}

	best := matches[0]
	for _, match := range matches[1:] {
		if better(match, best) {
			best = match
		}
	}

	return nil, &best, Step{Initial: len(matches), Dropped: len(matches) - 1, Left: 1}
}

func better(a, b index.Match) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if pa, pb := a.Document.Category.Priority(), b.Document.Category.Priority(); pa != pb {
		return pa > pb
	}
	return a.Document.ID < b.Document.ID
}
