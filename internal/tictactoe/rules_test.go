package tictactoe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
)

const (
	x = entity.PlayerX
	o = entity.PlayerO
	e = entity.EmptyCell
)

func TestEvaluate(t *testing.T) {
	t.Run("Empty board is undecided", func(t *testing.T) {
		outcome, line := Evaluate(entity.Board{})

		assert.Equal(t, entity.OutcomeUndecided, outcome)
		assert.Nil(t, line)
	})

	t.Run("Top row wins for X", func(t *testing.T) {
		// Given: X holds cells 0, 1 and 2
		board := entity.Board{
			x, x, x,
			o, o, e,
			e, e, e,
		}

		// When: evaluating the board
		outcome, line := Evaluate(board)

		// Then: X wins on the top row
		assert.Equal(t, entity.OutcomeFor(x), outcome)
		require.NotNil(t, line)
		assert.Equal(t, entity.Line{0, 1, 2}, *line)
	})

	t.Run("O completing the middle row wins on it", func(t *testing.T) {
		// Given: O places at 5 on [X,X,_, O,O,_, _,_,_]
		board := entity.Board{
			x, x, e,
			o, o, o,
			e, e, e,
		}

		// When: evaluating the board
		outcome, line := Evaluate(board)

		// Then: O wins on the middle row and X still has no line
		assert.Equal(t, entity.OutcomeFor(o), outcome)
		require.NotNil(t, line)
		assert.Equal(t, entity.Line{3, 4, 5}, *line)
	})

	t.Run("Full board without a line is a draw", func(t *testing.T) {
		// Given: a full board with no three in a row
		board := entity.Board{
			x, o, x,
			x, o, o,
			o, x, x,
		}

		// When: evaluating the board
		outcome, line := Evaluate(board)

		// Then: the round is a draw
		assert.True(t, outcome.IsDraw())
		assert.Nil(t, line)
	})

	t.Run("Winning on the last cell is not a draw", func(t *testing.T) {
		board := entity.Board{
			x, o, x,
			o, x, o,
			o, x, x,
		}

		outcome, line := Evaluate(board)

		assert.Equal(t, entity.OutcomeFor(x), outcome)
		require.NotNil(t, line)
		assert.Equal(t, entity.Line{0, 4, 8}, *line)
	})

	t.Run("First line in scan order is reported", func(t *testing.T) {
		// Given: X completes both the left column and the main diagonal
		board := entity.Board{
			x, o, o,
			x, x, o,
			x, o, x,
		}

		// When: evaluating the board
		_, line := Evaluate(board)

		// Then: the column comes before the diagonal
		require.NotNil(t, line)
		assert.Equal(t, entity.Line{0, 3, 6}, *line)
	})

	t.Run("Every line wins with its cells", func(t *testing.T) {
		for _, winLine := range WinLines {
			var board entity.Board
			for _, cell := range winLine {
				board[cell] = o
			}

			outcome, line := Evaluate(board)

			assert.Equal(t, entity.OutcomeFor(o), outcome)
			require.NotNil(t, line)
			assert.Equal(t, winLine, *line)
			for _, cell := range line {
				assert.Equal(t, o, board[cell])
			}
		}
	})

	t.Run("Same board always yields the same result", func(t *testing.T) {
		board := entity.Board{
			o, x, e,
			e, o, x,
			x, e, o,
		}

		firstOutcome, firstLine := Evaluate(board)
		for range 10 {
			outcome, line := Evaluate(board)
			assert.Equal(t, firstOutcome, outcome)
			assert.Equal(t, firstLine, line)
		}
	})
}

func TestValidateMove(t *testing.T) {
	board := entity.Board{x, e, e, e, e, e, e, e, e}

	t.Run("Accepts a free cell on the mover's turn", func(t *testing.T) {
		assert.NoError(t, ValidateMove(board, o, o, 4))
	})

	t.Run("Rejects indices off the board", func(t *testing.T) {
		assert.ErrorIs(t, ValidateMove(board, o, o, -1), apperror.ErrOutOfRange)
		assert.ErrorIs(t, ValidateMove(board, o, o, 9), apperror.ErrOutOfRange)
	})

	t.Run("Rejects a move out of turn", func(t *testing.T) {
		assert.ErrorIs(t, ValidateMove(board, o, x, 4), apperror.ErrNotYourTurn)
	})

	t.Run("Rejects an occupied cell", func(t *testing.T) {
		assert.ErrorIs(t, ValidateMove(board, o, o, 0), apperror.ErrCellOccupied)
	})

	t.Run("Range is checked before turn", func(t *testing.T) {
		assert.ErrorIs(t, ValidateMove(board, o, x, 12), apperror.ErrOutOfRange)
	})
}
