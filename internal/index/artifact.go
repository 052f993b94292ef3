package index

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/realtime-search/internal/textproc"
)

// FormatVersion is the artifact layout version written to the manifest.
const FormatVersion = 2

// BuildsDir holds one directory of parts per build under the artifact prefix.
const BuildsDir = "builds"

// Part names within an artifact prefix.
const (
	ManifestPart   = "manifest.json"
	VocabularyPart = "vocabulary.json"
	MatrixPart     = "matrix.bin"
	MetadataPart   = "metadata.json"
)

// BuildParams records the pruning parameters an artifact was built with.
type BuildParams struct {
	MaxDFRatio  float64 `json:"max_df_ratio"`
	MinDFCount  int     `json:"min_df_count"`
	MaxFeatures int     `json:"max_features"`
}

// Manifest describes one build. It is written last, so a readable manifest
// implies every part it names was fully written. Files maps each part to its
// object path relative to the prefix; Parts holds the sha256 of each part.
type Manifest struct {
	FormatVersion int               `json:"format_version"`
	BuildID       string            `json:"build_id"`
	CreatedAt     time.Time         `json:"created_at"`
	Documents     int               `json:"documents"`
	Terms         int               `json:"terms"`
	NNZ           int               `json:"nnz"`
	Tokenizer     textproc.Config   `json:"tokenizer"`
	Builder       BuildParams       `json:"builder"`
	Parts         map[string]string `json:"parts"`
	Files         map[string]string `json:"files"`
}

// DocumentMeta is the stored view of one matrix row.
type DocumentMeta struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Artifact is a complete, self-consistent index.
type Artifact struct {
	Manifest   Manifest
	Vocabulary *Vocabulary
	Matrix     *Matrix
	Metadata   []DocumentMeta
}

// Validate checks the alignment invariants between the parts.
func (a *Artifact) Validate() error {
	if a == nil || a.Vocabulary == nil || a.Matrix == nil {
		return errors.New("artifact is incomplete")
	}
	if a.Matrix.Rows != len(a.Metadata) {
		return fmt.Errorf("matrix has %d rows but metadata has %d documents", a.Matrix.Rows, len(a.Metadata))
	}
	if a.Matrix.Cols != a.Vocabulary.Len() {
		return fmt.Errorf("matrix has %d columns but vocabulary has %d terms", a.Matrix.Cols, a.Vocabulary.Len())
	}
	if err := a.Matrix.Validate(); err != nil {
		return fmt.Errorf("matrix: %w", err)
	}
	return nil
}
