package textproc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokensDefaultConfig(t *testing.T) {
	t.Parallel()

	tok := New(DefaultConfig())
	got := tok.Tokens("The Neural-network, a model of 2024! x y_z")
	require.Equal(t, []string{"neural", "network", "model", "2024", "y_z"}, got)
}

func TestTokensKeepsUnicodeLetters(t *testing.T) {
	t.Parallel()

	tok := New(Config{Lowercase: true, MinTokenLength: 2})
	require.Equal(t, []string{"café", "über", "東京"}, tok.Tokens("Café ÜBER 東京"))
}

func TestTokensStemming(t *testing.T) {
	t.Parallel()

	tok := New(Config{Lowercase: true, MinTokenLength: 2, Stem: true})
	require.Equal(t, []string{"run", "network"}, tok.Tokens("running networks"))
}

func TestTermFrequency(t *testing.T) {
	t.Parallel()

	tok := New(Config{Lowercase: true, MinTokenLength: 2})
	require.Equal(t, map[string]int{"go": 2, "fast": 1}, tok.TermFrequency("Go go FAST"))
}

func TestConfigRoundTripProducesSameTokens(t *testing.T) {
	t.Parallel()

	original := New(Config{Lowercase: true, MinTokenLength: 2, Stopwords: []string{"The", "and", "and"}})
	rebuilt := New(original.Config())
	text := "The cat and the hat"
	require.Equal(t, original.Tokens(text), rebuilt.Tokens(text))
	require.Equal(t, []string{"and", "the"}, original.Config().Stopwords)
}

func TestLoadStopwords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stop.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo\n\n# comment\nbar \n"), 0o600))
	words, err := LoadStopwords(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, []string{"foo", "bar"}, words)
}

func TestLoadStopwordsMissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	words, err := LoadStopwords(filepath.Join(t.TempDir(), "missing.txt"), zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, words)
}

func TestEnglishStopwordsContainsCommonWords(t *testing.T) {
	t.Parallel()

	words := EnglishStopwords()
	require.Contains(t, words, "the")
	require.Contains(t, words, "and")
	require.NotContains(t, words, "neural")
}

func TestResolveStopwords(t *testing.T) {
	t.Parallel()

	english, err := ResolveStopwords("English", zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, EnglishStopwords(), english)

	none, err := ResolveStopwords(StopwordsNone, zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, none)

	missing, err := ResolveStopwords(filepath.Join(t.TempDir(), "absent.txt"), zap.NewNop())
	require.NoError(t, err)
	require.Empty(t, missing)
}
