package service

import (
	"math/rand"
	"sync"

	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sync/internal/tictactoe"
)

var corners = [4]int{0, 2, 6, 8}

const center = 4

// BotService picks the scripted opponent's cell.
type BotService interface {
	SelectMove(board entity.Board, mark entity.Mark) (int, bool)
}

type botService struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewBotService returns a policy drawing its random choices from src.
func NewBotService(src rand.Source) BotService {
	return &botService{
		rnd: rand.New(src), //nolint: gosec // move choice, not a secret
	}
}

// SelectMove returns the cell mark plays next, or false when the board is full.
// Priority: own win, block, center, random corner, random cell.
func (that *botService) SelectMove(board entity.Board, mark entity.Mark) (int, bool) {
	empty := board.EmptyCells()
	if len(empty) == 0 {
		return 0, false
	}

	if cell, ok := completingCell(board, empty, mark); ok {
		return cell, true
	}

	if cell, ok := completingCell(board, empty, mark.Opponent()); ok {
		return cell, true
	}

	if board[center] == entity.EmptyCell {
		return center, true
	}

	freeCorners := make([]int, 0, len(corners))
	for _, cell := range corners {
		if board[cell] == entity.EmptyCell {
			freeCorners = append(freeCorners, cell)
		}
	}

	if len(freeCorners) > 0 {
		return that.pick(freeCorners), true
	}

	return that.pick(empty), true
}

func (that *botService) pick(cells []int) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return cells[that.rnd.Intn(len(cells))]
}

// completingCell returns the lowest empty cell that wins the round for mark.
func completingCell(board entity.Board, empty []int, mark entity.Mark) (int, bool) {
	for _, cell := range empty {
		board[cell] = mark
		outcome, _ := tictactoe.Evaluate(board)
		board[cell] = entity.EmptyCell

		if outcome.Winner() == mark {
			return cell, true
		}
	}

	return 0, false
}
