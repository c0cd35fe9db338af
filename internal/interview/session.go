// Package interview runs a coached interview session: every interviewer
// question is classified first, feedback (if any) is shown, and only then is
// the simulated candidate's reply released.
package interview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/coach"
	"github.com/spigell/interview-coach/internal/logger"
)

// DefaultTurnTimeout bounds how long a single question may wait for the
// coaching decision before the reply is released without feedback.
const DefaultTurnTimeout = 5 * time.Second

// fallbackReply is shown when the generator fails: the session must produce
// a turn result even without a working provider.
const fallbackReply = "(кандидат молчит)"

// Classifier decides whether a question deserves feedback. *coach.Coach is
// the production implementation; a nil Classifier disables coaching.
type Classifier interface {
	Classify(ctx context.Context, question string) (*coach.Feedback, error)
}

// replier produces the candidate's reply to a question.
type replier interface {
	Reply(ctx context.Context, question string) (string, error)
}

// Emitter delivers feedback to the interviewer. It is invoked before the
// candidate's reply is released.
type Emitter func(feedback *coach.Feedback)

// Turn is a single interviewer question. ID identifies the turn for
// emission dedup; an empty ID gets a generated one.
type Turn struct {
	ID       string
	Question string
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	Feedback *coach.Feedback
	Reply    string
}

// Session holds one coached interview. Sessions are independent: concurrent
// sessions share only the read-only index behind the coach.
type Session struct {
	ID      string
	Persona Persona

	coach       Classifier
	responder   replier
	emitter     Emitter
	turnTimeout time.Duration
	logger      *zap.Logger

	mu      sync.Mutex
	emitted map[string]bool
}

// NewSession creates a session. A nil coach means coaching is disabled: every
// turn is released without feedback.
func NewSession(c Classifier, responder replier, emitter Emitter, persona Persona, turnTimeout time.Duration, log *zap.Logger) (*Session, error) {
	if responder == nil {
		return nil, fmt.Errorf("responder is required")
	}
	if turnTimeout <= 0 {
		turnTimeout = DefaultTurnTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Session{
		ID:          uuid.New().String(),
		Persona:     persona,
		coach:       c,
		responder:   responder,
		emitter:     emitter,
		turnTimeout: turnTimeout,
		logger:      log,
		emitted:     make(map[string]bool),
	}

	s.logger.Info("session started",
		zap.String(logger.FieldSession, s.ID),
		zap.String("persona", persona.Name),
		zap.String("psychotype", string(persona.Psychotype)),
		zap.Bool("coaching_enabled", c != nil),
	)

	return s, nil
}

// HandleQuestion runs one turn: classify the question, emit feedback at most
// once per turn id, then obtain and release the candidate's reply. Feedback
// is always emitted before the reply; a coaching failure or timeout degrades
// to a turn without feedback and never fails the turn.
func (s *Session) HandleQuestion(ctx context.Context, turn Turn) (*TurnResult, error) {
	question := strings.TrimSpace(turn.Question)
	if question == "" {
		return nil, fmt.Errorf("question must not be empty")
	}
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}

	log := s.logger.With(logger.SessionFields(s.ID, turn.ID)...)
	log.Debug("question received")

	feedback := s.classify(ctx, question, log)

	if feedback != nil {
		if s.markEmitted(turn.ID) {
			if s.emitter != nil {
				s.emitter(feedback)
			}
			log.Info("feedback emitted",
				zap.String(logger.FieldCategory, string(feedback.Category)),
				zap.String(logger.FieldDocument, feedback.DocumentID),
				zap.Float64(logger.FieldScore, feedback.Score),
			)
		} else {
			log.Debug("feedback already emitted for this turn")
		}
	}

	reply, err := s.responder.Reply(ctx, question)
	if err != nil {
		log.Error("candidate reply failed", zap.Error(err))
		reply = fallbackReply
	}

	log.Debug("reply released")

	return &TurnResult{Feedback: feedback, Reply: reply}, nil
}

// classify runs the coach under the turn timeout. Every failure mode maps to
// "no feedback": the session never stalls on the coaching path.
func (s *Session) classify(ctx context.Context, question string, log *zap.Logger) *coach.Feedback {
	if s.coach == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.turnTimeout)
	defer cancel()

	type outcome struct {
		feedback *coach.Feedback
		err      error
	}

	done := make(chan outcome, 1)
	go func() {
		feedback, err := s.coach.Classify(cctx, question)
		done <- outcome{feedback: feedback, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			log.Warn("classification failed, proceeding without feedback", zap.Error(res.err))
			return nil
		}
		return res.feedback
	case <-cctx.Done():
		log.Warn("classification did not finish in time, proceeding without feedback",
			zap.Duration("timeout", s.turnTimeout),
			zap.Error(cctx.Err()),
		)
		return nil
	}
}

func (s *Session) markEmitted(turnID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emitted[turnID] {
		return false
	}
	s.emitted[turnID] = true
	return true
}
