package interview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type fakeGenerator struct {
	reply    string
	err      error
	systems  []string
	messages []string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	f.systems = append(f.systems, system)
	f.messages = append(f.messages, message)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func TestResponderBuildsPersonaPrompt(t *testing.T) {
	generator := &fakeGenerator{reply: "\nЯ ушла, потому что проект закрылся.\n"}
	persona := Persona{
		Name:       "Анна",
		Resume:     "Пять лет разработки на Java.",
		Psychotype: PsychotypeToxic,
	}

	responder, err := NewResponder(generator, persona, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("creating responder: %v", err)
	}

	reply, err := responder.Reply(context.Background(), "Почему вы ушли с прошлого места?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply != "Я ушла, потому что проект закрылся." {
		t.Fatalf("expected a trimmed reply, got %q", reply)
	}

	if len(generator.systems) != 1 || len(generator.messages) != 1 {
		t.Fatalf("expected a single generation call, got %d/%d", len(generator.systems), len(generator.messages))
	}

	system := generator.systems[0]
	for _, want := range []string{"Анна", "Пять лет разработки на Java.", "irritable"} {
		if !strings.Contains(system, want) {
			t.Fatalf("system prompt is missing %q:\n%s", want, system)
		}
	}
	if strings.Contains(system, "{{") {
		t.Fatalf("system prompt has unresolved placeholders:\n%s", system)
	}

	if generator.messages[0] != "Почему вы ушли с прошлого места?" {
		t.Fatalf("unexpected message: %q", generator.messages[0])
	}
}

func TestResponderRejectsEmptyGeneration(t *testing.T) {
	responder, err := NewResponder(&fakeGenerator{reply: "   "}, Persona{Psychotype: PsychotypeTarget}, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("creating responder: %v", err)
	}

	if _, err := responder.Reply(context.Background(), "Расскажите о себе."); err == nil {
		t.Fatal("expected an error for an empty generation")
	}
}

func TestResponderPropagatesGeneratorError(t *testing.T) {
	genErr := errors.New("quota exceeded")
	responder, err := NewResponder(&fakeGenerator{err: genErr}, Persona{Psychotype: PsychotypeTarget}, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("creating responder: %v", err)
	}

	if _, err := responder.Reply(context.Background(), "Расскажите о себе."); !errors.Is(err, genErr) {
		t.Fatalf("expected the generator error, got %v", err)
	}
}

func TestNewResponderRequiresGenerator(t *testing.T) {
	if _, err := NewResponder(nil, Persona{}, 0, zap.NewNop()); err == nil {
		t.Fatal("expected an error without a generator")
	}
}

func TestBuildSystemPromptDefaults(t *testing.T) {
	prompt := buildSystemPrompt(Persona{})

	for _, want := range []string{"the candidate", "not provided", "genuinely want this job"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, prompt)
		}
	}
}
