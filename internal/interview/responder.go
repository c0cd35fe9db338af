package interview

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/logger"
)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// Responder produces the simulated candidate's replies. The persona is fixed
// for the lifetime of the responder; only the question varies per call.
type Responder struct {
	generator ai.Generator
	persona   Persona
	system    string
	maxLogLen int
	logger    *zap.Logger
}

// NewResponder creates a Responder for the given persona.
func NewResponder(generator ai.Generator, persona Persona, maxLogLength int, log *zap.Logger) (*Responder, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Responder{
		generator: generator,
		persona:   persona,
		system:    buildSystemPrompt(persona),
		maxLogLen: maxLogLength,
		logger:    log,
	}, nil
}

// Reply asks the generator for the candidate's answer to the question.
func (r *Responder) Reply(ctx context.Context, question string) (string, error) {
	r.logger.Debug("candidate reply request",
		zap.Int("prompt_length", utf8.RuneCountInString(r.system)),
		zap.String("prompt_preview", logger.TruncateForLog(r.system, r.maxLogLen)),
		zap.String("question_preview", logger.TruncateForLog(question, r.maxLogLen)),
	)

	raw, err := r.generator.GenerateContent(ctx, r.system, question)
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(raw)
	if reply == "" {
		return "", fmt.Errorf("generator returned an empty reply")
	}

	r.logger.Debug("candidate reply response",
		zap.Int("response_length", utf8.RuneCountInString(reply)),
		zap.String("response_preview", logger.TruncateForLog(reply, r.maxLogLen)),
	)

	return reply, nil
}

func buildSystemPrompt(persona Persona) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "You are the candidate {{NAME}} in a job interview.\nResume: {{RESUME}}\nStyle: {{STYLE}}"
	}

	name := strings.TrimSpace(persona.Name)
	if name == "" {
		name = "the candidate"
	}
	resume := strings.TrimSpace(persona.Resume)
	if resume == "" {
		resume = "not provided"
	}

	prompt := strings.ReplaceAll(template, "{{NAME}}", name)
	prompt = strings.ReplaceAll(prompt, "{{RESUME}}", resume)
	prompt = strings.ReplaceAll(prompt, "{{STYLE}}", persona.Psychotype.instruction())
	return prompt
}
