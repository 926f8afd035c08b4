package pkg

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGameID(t *testing.T) {
	t.Run("Uses only the code alphabet", func(t *testing.T) {
		for range 20 {
			id, err := GenerateGameID(5)
			require.NoError(t, err)

			assert.Len(t, id, 5)
			for _, r := range id {
				assert.True(t, strings.ContainsRune(CodeAlphabet, r), "unexpected rune %q", r)
			}
		}
	})

	t.Run("Rejects non-positive lengths", func(t *testing.T) {
		_, err := GenerateGameID(0)
		assert.Error(t, err)
	})
}

func TestGenerateSeatToken(t *testing.T) {
	token := GenerateSeatToken()

	_, err := uuid.Parse(token)
	require.NoError(t, err)
	assert.NotEqual(t, token, GenerateSeatToken())
}

func TestNormalizeGameID(t *testing.T) {
	assert.Equal(t, "AB3CD", NormalizeGameID("  ab3cd "))
}
