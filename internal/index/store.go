package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/JakeFAU/realtime-search/internal/hash/sha256"
	"github.com/JakeFAU/realtime-search/internal/schemas"
	"github.com/JakeFAU/realtime-search/internal/storage"
)

// DefaultPrefix is the object prefix used when none is configured.
const DefaultPrefix = "index"

// Save writes the artifact parts under prefix/builds/<build id>/, then the
// manifest at prefix/manifest.json. Parts of earlier builds are never
// overwritten, so a failure before the manifest write leaves the previous
// index loadable. The manifest's Parts, Files, counts and FormatVersion are
// filled in from what was written.
func Save(ctx context.Context, store storage.BlobStore, prefix string, a *Artifact) (Manifest, error) {
	if err := a.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("save index: %w", err)
	}
	dir, err := buildDir(a.Manifest.BuildID)
	if err != nil {
		return Manifest{}, fmt.Errorf("save index: %w", err)
	}
	vocab, err := json.Marshal(a.Vocabulary.Terms())
	if err != nil {
		return Manifest{}, fmt.Errorf("marshal vocabulary: %w", err)
	}
	matrix, err := EncodeMatrix(a.Matrix)
	if err != nil {
		return Manifest{}, err
	}
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return Manifest{}, fmt.Errorf("marshal metadata: %w", err)
	}

	manifest := a.Manifest
	manifest.FormatVersion = FormatVersion
	manifest.Documents = a.Matrix.Rows
	manifest.Terms = a.Vocabulary.Len()
	manifest.NNZ = a.Matrix.NNZ()
	manifest.Parts = make(map[string]string, 3)
	manifest.Files = make(map[string]string, 3)

	parts := []struct {
		name        string
		contentType string
		data        []byte
	}{
		{VocabularyPart, "application/json", vocab},
		{MatrixPart, "application/octet-stream", matrix},
		{MetadataPart, "application/json", meta},
	}
	for _, part := range parts {
		file := path.Join(dir, part.name)
		if _, err := store.PutObject(ctx, path.Join(prefix, file), part.contentType, bytes.NewReader(part.data)); err != nil {
			return Manifest{}, fmt.Errorf("write %s: %w", part.name, err)
		}
		manifest.Parts[part.name] = sha256.Sum(part.data)
		manifest.Files[part.name] = file
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("marshal manifest: %w", err)
	}
	if _, err := store.PutObject(ctx, path.Join(prefix, ManifestPart), "application/json", bytes.NewReader(data)); err != nil {
		return Manifest{}, fmt.Errorf("write %s: %w", ManifestPart, err)
	}
	return manifest, nil
}

// Load reads and verifies the artifact under prefix. Every failure is
// reported as *UnavailableError.
func Load(ctx context.Context, store storage.BlobStore, prefix string) (*Artifact, error) {
	fail := func(part string, err error) (*Artifact, error) {
		return nil, &UnavailableError{Prefix: prefix, Part: part, Err: err}
	}

	raw, err := store.GetObject(ctx, path.Join(prefix, ManifestPart))
	if err != nil {
		return fail(ManifestPart, err)
	}
	if err := schemas.Validate(schemas.Manifest, raw); err != nil {
		return fail(ManifestPart, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return fail(ManifestPart, fmt.Errorf("decode: %w", err))
	}
	if manifest.FormatVersion != FormatVersion {
		return fail(ManifestPart, fmt.Errorf("unsupported format version %d", manifest.FormatVersion))
	}

	read := func(name string) ([]byte, error) {
		file := manifest.Files[name]
		if file == "" || path.IsAbs(file) || path.Clean(file) != file || file == ".." || strings.HasPrefix(file, "../") {
			return nil, fmt.Errorf("manifest has no valid file for %s", name)
		}
		data, err := store.GetObject(ctx, path.Join(prefix, file))
		if err != nil {
			return nil, err
		}
		if err := sha256.Verify(data, manifest.Parts[name]); err != nil {
			return nil, err
		}
		return data, nil
	}

	vocabRaw, err := read(VocabularyPart)
	if err != nil {
		return fail(VocabularyPart, err)
	}
	var terms []Term
	if err := json.Unmarshal(vocabRaw, &terms); err != nil {
		return fail(VocabularyPart, fmt.Errorf("decode: %w", err))
	}
	vocab, err := NewVocabulary(terms)
	if err != nil {
		return fail(VocabularyPart, err)
	}

	matrixRaw, err := read(MatrixPart)
	if err != nil {
		return fail(MatrixPart, err)
	}
	matrix, err := DecodeMatrix(matrixRaw)
	if err != nil {
		return fail(MatrixPart, err)
	}

	metaRaw, err := read(MetadataPart)
	if err != nil {
		return fail(MetadataPart, err)
	}
	var meta []DocumentMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return fail(MetadataPart, fmt.Errorf("decode: %w", err))
	}

	artifact := &Artifact{
		Manifest:   manifest,
		Vocabulary: vocab,
		Matrix:     matrix,
		Metadata:   meta,
	}
	if err := artifact.Validate(); err != nil {
		return fail("", err)
	}
	if manifest.Documents != matrix.Rows || manifest.Terms != vocab.Len() || manifest.NNZ != matrix.NNZ() {
		return fail(ManifestPart, fmt.Errorf("counts do not match parts"))
	}
	return artifact, nil
}

func buildDir(buildID string) (string, error) {
	if buildID == "" || buildID == "." || buildID == ".." || strings.ContainsAny(buildID, "/\\") {
		return "", fmt.Errorf("invalid build id %q", buildID)
	}
	return path.Join(BuildsDir, buildID), nil
}
