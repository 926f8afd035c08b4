package pkg

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// CodeAlphabet omits characters that are easy to misread (0/O, 1/I/L).
const CodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateGameID - generates a human-typeable session code.
func GenerateGameID(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid game id length: %d", length)
	}

	var sb strings.Builder
	sb.Grow(length)

	limit := big.NewInt(int64(len(CodeAlphabet)))
	for range length {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random index: %w", err)
		}

		sb.WriteByte(CodeAlphabet[n.Int64()])
	}

	return sb.String(), nil
}

// GenerateSeatToken - generates the secret that lets a participant resume its seat.
func GenerateSeatToken() string {
	return uuid.NewString()
}

// NormalizeGameID - codes are case-insensitive.
func NormalizeGameID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
