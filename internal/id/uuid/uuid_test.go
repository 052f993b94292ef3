package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGeneratorNewID ensures generated IDs are unique, valid and version 7.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	assert.Equal(t, goUUID.Version(7), parsed.Version())
	assert.Less(t, id1, id2, "v7 ids sort by creation time")
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Valid("0190c3c4-5b4e-7d8a-9f00-1234567890ab"))
	assert.False(t, Valid("not-a-uuid"))
	assert.False(t, Valid(""))
}
