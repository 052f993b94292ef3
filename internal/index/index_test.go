package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-search/internal/storage"
	"github.com/JakeFAU/realtime-search/internal/storage/memory"
	"github.com/JakeFAU/realtime-search/internal/textproc"
)

func sampleArtifact(t *testing.T) *Artifact {
	t.Helper()
	vocab, err := NewVocabulary([]Term{
		{Term: "network", Column: 0, IDF: 1.28},
		{Term: "neural", Column: 1, IDF: 1.0},
	})
	require.NoError(t, err)

	m := NewMatrix(2)
	require.NoError(t, m.AppendRow([]uint32{0, 1}, []float64{0.6, 0.8}))
	require.NoError(t, m.AppendRow(nil, nil))
	require.NoError(t, m.AppendRow([]uint32{1}, []float64{1}))

	return &Artifact{
		Manifest: Manifest{
			BuildID:   "0190c3c4-5b4e-7d8a-9f00-1234567890ab",
			CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Tokenizer: textproc.DefaultConfig(),
			Builder:   BuildParams{MaxDFRatio: 0.98, MinDFCount: 2, MaxFeatures: 20000},
		},
		Vocabulary: vocab,
		Matrix:     m,
		Metadata: []DocumentMeta{
			{URL: "https://a.test/1", Title: "One", Text: "neural network"},
			{URL: "https://a.test/2", Title: "Two", Text: "stop words only"},
			{URL: "https://a.test/3", Title: "Three", Text: "neural"},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	store := memory.NewBlobStore()
	original := sampleArtifact(t)

	manifest, err := Save(context.Background(), store, DefaultPrefix, original)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, manifest.FormatVersion)
	assert.Equal(t, 3, manifest.Documents)
	assert.Equal(t, 2, manifest.Terms)
	assert.Equal(t, 3, manifest.NNZ)
	assert.Len(t, manifest.Parts, 3)
	buildDir := "index/builds/0190c3c4-5b4e-7d8a-9f00-1234567890ab/"
	assert.Equal(t, []string{
		buildDir + "matrix.bin", buildDir + "metadata.json", buildDir + "vocabulary.json", "index/manifest.json",
	}, store.Paths())

	loaded, err := Load(context.Background(), store, DefaultPrefix)
	require.NoError(t, err)
	assert.Equal(t, original.Metadata, loaded.Metadata)
	assert.Equal(t, original.Vocabulary.Terms(), loaded.Vocabulary.Terms())
	assert.Equal(t, original.Matrix, loaded.Matrix)
	assert.Equal(t, original.Manifest.BuildID, loaded.Manifest.BuildID)
	assert.Equal(t, original.Manifest.Tokenizer, loaded.Manifest.Tokenizer)
	assert.True(t, original.Manifest.CreatedAt.Equal(loaded.Manifest.CreatedAt))
}

func TestLoadMissingArtifact(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), memory.NewBlobStore(), DefaultPrefix)

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, ManifestPart, unavailable.Part)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoadDetectsTamperedPart(t *testing.T) {
	t.Parallel()
	store := memory.NewBlobStore()
	manifest, err := Save(context.Background(), store, DefaultPrefix, sampleArtifact(t))
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), path.Join(DefaultPrefix, manifest.Files[MetadataPart]), "application/json",
		bytes.NewReader([]byte(`[{"url":"x","title":"y","text":"z"}]`)))
	require.NoError(t, err)

	_, err = Load(context.Background(), store, DefaultPrefix)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, MetadataPart, unavailable.Part)
}

func TestLoadRejectsFutureFormat(t *testing.T) {
	t.Parallel()
	store := memory.NewBlobStore()
	manifest, err := Save(context.Background(), store, DefaultPrefix, sampleArtifact(t))
	require.NoError(t, err)

	manifest.FormatVersion = FormatVersion + 1
	raw, err := json.Marshal(manifest)
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), path.Join(DefaultPrefix, ManifestPart), "application/json", bytes.NewReader(raw))
	require.NoError(t, err)

	_, err = Load(context.Background(), store, DefaultPrefix)
	require.ErrorContains(t, err, "unsupported format version")
}

// failingStore accepts writes until failAfter objects have been stored.
type failingStore struct {
	*memory.BlobStore
	failAfter int
	writes    int
}

func (s *failingStore) PutObject(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if s.writes >= s.failAfter {
		return "", errors.New("disk full")
	}
	s.writes++
	return s.BlobStore.PutObject(ctx, name, contentType, r)
}

func TestFailedSaveKeepsPreviousIndex(t *testing.T) {
	t.Parallel()
	mem := memory.NewBlobStore()
	first := sampleArtifact(t)
	_, err := Save(context.Background(), mem, DefaultPrefix, first)
	require.NoError(t, err)

	second := sampleArtifact(t)
	second.Manifest.BuildID = "0190c3c4-5b4e-7d8a-9f00-0000000000ff"
	second.Metadata[0].Title = "Replaced"
	store := &failingStore{BlobStore: mem, failAfter: 2}
	_, err = Save(context.Background(), store, DefaultPrefix, second)
	require.ErrorContains(t, err, "disk full")

	loaded, err := Load(context.Background(), mem, DefaultPrefix)
	require.NoError(t, err)
	assert.Equal(t, first.Manifest.BuildID, loaded.Manifest.BuildID)
	assert.Equal(t, "One", loaded.Metadata[0].Title)
}

func TestSaveRejectsInvalidBuildID(t *testing.T) {
	t.Parallel()
	for _, id := range []string{"", "..", "a/b"} {
		a := sampleArtifact(t)
		a.Manifest.BuildID = id
		_, err := Save(context.Background(), memory.NewBlobStore(), DefaultPrefix, a)
		require.ErrorContains(t, err, "invalid build id", id)
	}
}

func TestLoadRejectsEscapingFile(t *testing.T) {
	t.Parallel()
	store := memory.NewBlobStore()
	manifest, err := Save(context.Background(), store, DefaultPrefix, sampleArtifact(t))
	require.NoError(t, err)

	manifest.Files[VocabularyPart] = "../elsewhere/vocabulary.json"
	raw, err := json.Marshal(manifest)
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), path.Join(DefaultPrefix, ManifestPart), "application/json", bytes.NewReader(raw))
	require.NoError(t, err)

	_, err = Load(context.Background(), store, DefaultPrefix)
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, VocabularyPart, unavailable.Part)
}

func TestSaveRejectsMisalignedArtifact(t *testing.T) {
	t.Parallel()
	a := sampleArtifact(t)
	a.Metadata = a.Metadata[:2]
	_, err := Save(context.Background(), memory.NewBlobStore(), DefaultPrefix, a)
	require.ErrorContains(t, err, "metadata")
}

func TestMatrixCodecRoundTrip(t *testing.T) {
	t.Parallel()
	m := sampleArtifact(t).Matrix
	data, err := EncodeMatrix(m)
	require.NoError(t, err)
	assert.Equal(t, []byte("TFIM"), data[:4])

	decoded, err := DecodeMatrix(data)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)

	_, err = DecodeMatrix(data[:len(data)-1])
	assert.Error(t, err)
	_, err = DecodeMatrix(append(append([]byte(nil), data...), 0))
	assert.Error(t, err)

	corrupt := append([]byte(nil), data...)
	corrupt[0] = 'X'
	_, err = DecodeMatrix(corrupt)
	assert.ErrorContains(t, err, "magic")
}

func TestMatrixAppendRowValidation(t *testing.T) {
	t.Parallel()
	m := NewMatrix(3)
	assert.Error(t, m.AppendRow([]uint32{3}, []float64{1}))
	assert.Error(t, m.AppendRow([]uint32{1, 1}, []float64{1, 1}))
	assert.Error(t, m.AppendRow([]uint32{1}, nil))
	assert.Zero(t, m.Rows)

	require.NoError(t, m.AppendRow([]uint32{0, 2}, []float64{0.5, 0.5}))
	cols, vals := m.Row(0)
	assert.Equal(t, []uint32{0, 2}, cols)
	assert.Equal(t, []float64{0.5, 0.5}, vals)
}

func TestVocabularyValidation(t *testing.T) {
	t.Parallel()
	_, err := NewVocabulary([]Term{{Term: "a", Column: 1, IDF: 1}})
	assert.Error(t, err)
	_, err = NewVocabulary([]Term{{Term: "a", Column: 0, IDF: 1}, {Term: "a", Column: 1, IDF: 1}})
	assert.Error(t, err)
	_, err = NewVocabulary([]Term{{Term: "a", Column: 0, IDF: 0}})
	assert.Error(t, err)

	v, err := NewVocabulary([]Term{{Term: "a", Column: 0, IDF: 1.5}})
	require.NoError(t, err)
	got, ok := v.Lookup("a")
	require.True(t, ok)
	assert.InDelta(t, 1.5, got.IDF, 1e-12)
	_, ok = v.Lookup("b")
	assert.False(t, ok)
}
