package index

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// artifactFormat is bumped on incompatible changes to the artifact layout.
const artifactFormat = 1

// Artifact is the persisted form of an index: the knowledge snapshot with
// vectors, tagged with the embedder identity it was built under.
type Artifact struct {
	Format    int       `json:"format"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	BuiltAt   time.Time `json:"built_at"`
	Entries   []Entry   `json:"entries"`
}

// Save writes the index to path as a versioned artifact.
func (f *Flat) Save(path, model string) error {
	if f == nil || len(f.entries) == 0 {
		return fmt.Errorf("nothing to save")
	}

	artifact := Artifact{
		Format:    artifactFormat,
		Model:     model,
		Dimension: f.dimension,
		BuiltAt:   time.Now().UTC(),
		Entries:   f.entries,
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("writing artifact %q: %w", path, err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact); err != nil {
		return fmt.Errorf("encoding artifact %q: %w", path, err)
	}

	return nil
}

// LoadArtifact reads and gates the artifact at path. A missing file, a
// different artifact format, or a different embedder identity than wantModel
// all yield ErrUnavailable: the operator rebuilds, the index is never
// silently reused across model versions.
func LoadArtifact(path, wantModel string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: artifact %q does not exist, run the index command first", ErrUnavailable, path)
		}
		return nil, fmt.Errorf("%w: reading artifact %q: %v", ErrUnavailable, path, err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: parsing artifact %q: %v", ErrUnavailable, path, err)
	}

	if artifact.Format != artifactFormat {
		return nil, fmt.Errorf("%w: artifact format %d, this build expects %d", ErrUnavailable, artifact.Format, artifactFormat)
	}

	if wantModel != "" && artifact.Model != wantModel {
		return nil, fmt.Errorf("%w: artifact built with model %q, configured model is %q, rebuild the index", ErrUnavailable, artifact.Model, wantModel)
	}

	if len(artifact.Entries) == 0 {
		return nil, fmt.Errorf("%w: artifact %q contains no entries", ErrUnavailable, path)
	}

	return &artifact, nil
}

// Flat builds the in-memory index from the artifact entries.
func (a *Artifact) Flat() (*Flat, error) {
	flat, err := Build(a.Entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return flat, nil
}
