package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
)

const (
	x = entity.PlayerX
	o = entity.PlayerO
	e = entity.EmptyCell
)

// zeroSource always yields 0, so every random pick is the first candidate.
type zeroSource struct{}

func (zeroSource) Int63() int64 { return 0 }
func (zeroSource) Seed(int64)   {}

func TestBotService_SelectMove(t *testing.T) {
	bot := NewBotService(zeroSource{})

	t.Run("Blocks the opponent's immediate win", func(t *testing.T) {
		// Given: X threatens the top row and O is to move
		board := entity.Board{
			x, x, e,
			e, o, e,
			e, e, e,
		}

		// When: the bot plays O
		cell, ok := bot.SelectMove(board, o)

		// Then: it blocks at cell 2
		require.True(t, ok)
		assert.Equal(t, 2, cell)
	})

	t.Run("Prefers its own win over blocking", func(t *testing.T) {
		// Given: both X and O have an open line
		board := entity.Board{
			x, x, e,
			o, o, e,
			x, e, e,
		}

		// When: the bot plays O
		cell, ok := bot.SelectMove(board, o)

		// Then: it completes its own row
		require.True(t, ok)
		assert.Equal(t, 5, cell)
	})

	t.Run("Takes the center when nothing is urgent", func(t *testing.T) {
		board := entity.Board{x, e, e, e, e, e, e, e, e}

		cell, ok := bot.SelectMove(board, o)

		require.True(t, ok)
		assert.Equal(t, 4, cell)
	})

	t.Run("Takes a free corner when the center is gone", func(t *testing.T) {
		// Given: the center and corner 0 are taken
		board := entity.Board{
			o, e, e,
			e, x, e,
			e, e, e,
		}

		// When: the bot plays O with a source that always picks the first candidate
		cell, ok := bot.SelectMove(board, o)

		// Then: the first free corner is chosen
		require.True(t, ok)
		assert.Equal(t, 2, cell)
	})

	t.Run("Falls back to any empty cell", func(t *testing.T) {
		board := entity.Board{
			x, o, x,
			x, o, e,
			o, x, x,
		}

		cell, ok := bot.SelectMove(board, o)

		require.True(t, ok)
		assert.Equal(t, 5, cell)
	})

	t.Run("Reports false on a full board", func(t *testing.T) {
		board := entity.Board{
			x, o, x,
			x, o, o,
			o, x, x,
		}

		_, ok := bot.SelectMove(board, o)

		assert.False(t, ok)
	})

	t.Run("Always returns an empty cell", func(t *testing.T) {
		seeded := NewBotService(rand.NewSource(42))
		board := entity.Board{
			x, e, o,
			e, x, e,
			o, e, e,
		}

		for range 50 {
			cell, ok := seeded.SelectMove(board, x)
			require.True(t, ok)
			assert.Equal(t, e, board[cell])
		}
	})
}
