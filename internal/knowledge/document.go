package knowledge

import (
	"fmt"
	"strings"
)

// Category classifies a guideline document. The set is closed: anything else
// in a source file is rejected at load time.
type Category string

const (
	// CategoryWarning marks guidelines about questions that must not be asked,
	// such as those restricted by labor law.
	CategoryWarning Category = "warning"
	// CategoryTip marks interviewing technique advice.
	CategoryTip Category = "tip"
	// CategoryInfo marks neutral reference notes.
	CategoryInfo Category = "info"
)

// ParseCategory normalizes a raw category value. Unknown values are an error,
// never a default.
func ParseCategory(raw string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryWarning:
		return CategoryWarning, nil
	case CategoryTip:
		return CategoryTip, nil
	case CategoryInfo:
		return CategoryInfo, nil
	default:
		return "", fmt.Errorf("unknown category %q", raw)
	}
}

// Priority orders categories for tie-breaking: warning > tip > info.
func (c Category) Priority() int {
	switch c {
	case CategoryWarning:
		return 3
	case CategoryTip:
		return 2
	case CategoryInfo:
		return 1
	default:
		return 0
	}
}

// Marker returns the emoji prefix shown before a feedback message.
func (c Category) Marker() string {
	switch c {
	case CategoryWarning:
		return "⚠️"
	case CategoryTip:
		return "💡"
	case CategoryInfo:
		return "ℹ️"
	default:
		return ""
	}
}

// Document is a single interviewing guideline. Documents are immutable after
// load.
type Document struct {
	ID string `json:"id"`
	// Exemplar is an example of an interviewer question this guideline
	// matches. It is the text that gets embedded.
	Exemplar string   `json:"exemplar"`
	Category Category `json:"category"`
	// Message is the advisory shown to the interviewer.
	Message string `json:"message"`
	// Patterns are optional lowercase substrings that trigger the guideline
	// directly, bypassing the similarity threshold.
	Patterns []string `json:"patterns,omitempty"`
	// Reference is an optional citation, e.g. a labor code article.
	Reference string `json:"reference,omitempty"`
}

// Validate checks a single document for the structural problems that make an
// entry unusable.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("document without id")
	}

	if strings.TrimSpace(d.Exemplar) == "" {
		return fmt.Errorf("document %q: empty exemplar", d.ID)
	}

	if strings.TrimSpace(d.Message) == "" {
		return fmt.Errorf("document %q: empty message", d.ID)
	}

	if _, err := ParseCategory(string(d.Category)); err != nil {
		return fmt.Errorf("document %q: %w", d.ID, err)
	}

	return nil
}

// MatchPattern reports the first pattern contained in the question, if any.
// Matching is case-insensitive on the question side; patterns are stored
// lowercase.
func (d *Document) MatchPattern(question string) (string, bool) {
	if len(d.Patterns) == 0 {
		return "", false
	}

	lowered := strings.ToLower(question)
	for _, pattern := range d.Patterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(lowered, pattern) {
			return pattern, true
		}
	}

	return "", false
}
