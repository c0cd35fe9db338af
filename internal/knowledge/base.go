package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Entry is a raw document as decoded from a source file, before typing.
type Entry interface{}

type fileEnvelope struct {
	Documents []Entry `json:"documents"`
}

// Base is the loaded knowledge base.
type Base struct {
	Documents []*Document
}

// Load reads every *.json file in dir and returns the validated knowledge
// base. Loading is all or nothing: a single malformed entry fails the load
// with the file and document identified in the error.
func Load(dir string) (*Base, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge dir: %w", err)
	}

	base := &Base{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		docs, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		base.Documents = append(base.Documents, docs...)
	}

	if base.Len() == 0 {
		return nil, fmt.Errorf("no knowledge documents found in %q", dir)
	}

	if err := base.Validate(); err != nil {
		return nil, err
	}

	return base, nil
}

func loadFile(path string) ([]*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	var envelope fileEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}

	var docs []*Document
	cfg := &mapstructure.DecoderConfig{
		Metadata:    nil,
		Result:      &docs,
		TagName:     "json",
		ErrorUnused: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(envelope.Documents); err != nil {
		return nil, fmt.Errorf("malformed entry in %q: %w", path, err)
	}

	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("malformed entry in %q: %w", path, err)
		}
	}

	return docs, nil
}

func (b *Base) Len() int {
	return len(b.Documents)
}

func (b *Base) FindByID(id string) *Document {
	for _, doc := range b.Documents {
		if doc.ID == id {
			return doc
		}
	}
	return nil
}

// Validate checks cross-document constraints. Individual documents are
// validated at load time.
func (b *Base) Validate() error {
	seen := make(map[string]struct{}, len(b.Documents))
	for _, doc := range b.Documents {
		if err := doc.Validate(); err != nil {
			return err
		}
		if _, ok := seen[doc.ID]; ok {
			return fmt.Errorf("duplicate document id %q", doc.ID)
		}
		seen[doc.ID] = struct{}{}
	}
	return nil
}

// CountByCategory reports how many documents each category has, for the
// post-load log line.
func (b *Base) CountByCategory() map[Category]int {
	counts := make(map[Category]int)
	for _, doc := range b.Documents {
		counts[doc.Category]++
	}
	return counts
}

// IDs returns all document ids in sorted order.
func (b *Base) IDs() []string {
	ids := make([]string, 0, len(b.Documents))
	for _, doc := range b.Documents {
		ids = append(ids, doc.ID)
	}
	sort.Strings(ids)
	return ids
}
