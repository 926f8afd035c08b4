package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
)

// WinLines are scanned in this order: rows, columns, diagonals.
var WinLines = [8]entity.Line{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Evaluate derives the outcome of a board. The first complete line wins; a full board
// without one is a draw.
func Evaluate(board entity.Board) (entity.Outcome, *entity.Line) {
	for _, line := range WinLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != entity.EmptyCell && a == b && b == c {
			winning := line
			return entity.OutcomeFor(a), &winning
		}
	}

	if board.IsFull() {
		return entity.OutcomeDraw, nil
	}

	return entity.OutcomeUndecided, nil
}

// ValidateMove checks that mark may place on cell while turn is to move.
func ValidateMove(board entity.Board, turn, mark entity.Mark, cell int) error {
	if cell < 0 || cell >= entity.BoardSize {
		return fmt.Errorf("%w: %d", apperror.ErrOutOfRange, cell)
	}

	if turn != mark {
		return apperror.ErrNotYourTurn
	}

	if board[cell] != entity.EmptyCell {
		return fmt.Errorf("%w: %d", apperror.ErrCellOccupied, cell)
	}

	return nil
}
