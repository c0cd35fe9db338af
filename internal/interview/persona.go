package interview

import (
	"fmt"
	"strings"
)

// Psychotype selects the behavior style of the simulated candidate.
type Psychotype string

const (
	// PsychotypeTarget is a cooperative, motivated candidate.
	PsychotypeTarget Psychotype = "target"
	// PsychotypeToxic is an irritable candidate who pushes back.
	PsychotypeToxic Psychotype = "toxic"
	// PsychotypeSilent is a candidate of few words.
	PsychotypeSilent Psychotype = "silent"
	// PsychotypeEvasive is a candidate who dodges specifics.
	PsychotypeEvasive Psychotype = "evasive"
)

// Psychotypes lists the supported candidate styles in menu order.
func Psychotypes() []Psychotype {
	return []Psychotype{PsychotypeTarget, PsychotypeToxic, PsychotypeSilent, PsychotypeEvasive}
}

// ParsePsychotype converts a raw config or menu value into a Psychotype.
func ParsePsychotype(raw string) (Psychotype, error) {
	switch Psychotype(strings.ToLower(strings.TrimSpace(raw))) {
	case PsychotypeTarget:
		return PsychotypeTarget, nil
	case PsychotypeToxic:
		return PsychotypeToxic, nil
	case PsychotypeSilent:
		return PsychotypeSilent, nil
	case PsychotypeEvasive:
		return PsychotypeEvasive, nil
	default:
		return "", fmt.Errorf("unknown psychotype %q", raw)
	}
}

func (p Psychotype) instruction() string {
	switch p {
	case PsychotypeToxic:
		return "You are irritable and defensive. You question the interviewer's competence, complain about previous employers and take offense easily."
	case PsychotypeSilent:
		return "You answer as briefly as possible, often with a single short sentence. You volunteer nothing beyond what was asked."
	case PsychotypeEvasive:
		return "You avoid specifics. You change the subject, answer questions with questions and never commit to numbers or dates."
	default:
		return "You genuinely want this job. You cooperate, answer concretely and show motivation and interest in the role."
	}
}

// Persona describes the simulated candidate.
type Persona struct {
	Name       string
	Resume     string
	Psychotype Psychotype
}
