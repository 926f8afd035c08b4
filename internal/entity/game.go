package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
)

const (
	StatusWaiting    Status = "waiting"
	StatusOngoing    Status = "ongoing"
	StatusFinished   Status = "finished"
	StatusTerminated Status = "terminated"
)

const (
	EmptyCell Mark = ""
	PlayerX   Mark = "X"
	PlayerO   Mark = "O"
)

const (
	OutcomeUndecided Outcome = ""
	OutcomeDraw      Outcome = "draw"
)

const BoardSize = 9

// Status is the lifecycle state of a game session.
type Status string

// Mark is the owner of a cell. PlayerX moves first.
type Mark string

// Board is the 3x3 grid in row-major order.
type Board [BoardSize]Mark

// Outcome is derived from a board: undecided, a winning mark, or a draw.
type Outcome string

// Line is an ordered triple of board indices.
type Line [3]int

type Scores struct {
	X int `json:"X"`
	O int `json:"O"`
}

func ParseMark(s string) (Mark, error) {
	switch mark := Mark(strings.ToUpper(strings.TrimSpace(s))); mark {
	case PlayerX, PlayerO:
		return mark, nil
	default:
		return EmptyCell, fmt.Errorf("%w: %q", apperror.ErrInvalidRole, s)
	}
}

func (that Mark) IsPlayer() bool {
	return that == PlayerX || that == PlayerO
}

// Opponent returns the other player's mark. EmptyCell has no opponent.
func (that Mark) Opponent() Mark {
	switch that {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return EmptyCell
	}
}

func (that Mark) MarshalJSON() ([]byte, error) {
	if that == EmptyCell {
		return []byte("null"), nil
	}

	return json.Marshal(string(that))
}

func (that *Mark) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*that = EmptyCell
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal mark: %w", err)
	}

	if raw == "" {
		*that = EmptyCell
		return nil
	}

	mark, err := ParseMark(raw)
	if err != nil {
		return err
	}

	*that = mark

	return nil
}

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

// EmptyCells returns the indices of unmarked cells in ascending order.
func (that Board) EmptyCells() []int {
	cells := make([]int, 0, BoardSize)
	for i, cell := range that {
		if cell == EmptyCell {
			cells = append(cells, i)
		}
	}

	return cells
}

func OutcomeFor(winner Mark) Outcome {
	return Outcome(winner)
}

func (that Outcome) IsDecided() bool {
	return that != OutcomeUndecided
}

func (that Outcome) IsDraw() bool {
	return that == OutcomeDraw
}

// Winner returns the winning mark or EmptyCell for draws and undecided rounds.
func (that Outcome) Winner() Mark {
	switch mark := Mark(that); mark {
	case PlayerX, PlayerO:
		return mark
	default:
		return EmptyCell
	}
}

func (that Outcome) MarshalJSON() ([]byte, error) {
	if that == OutcomeUndecided {
		return []byte("null"), nil
	}

	return json.Marshal(string(that))
}

func (that *Outcome) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*that = OutcomeUndecided
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal outcome: %w", err)
	}

	switch outcome := Outcome(raw); outcome {
	case OutcomeUndecided, OutcomeDraw, Outcome(PlayerX), Outcome(PlayerO):
		*that = outcome
		return nil
	default:
		return fmt.Errorf("%w: unknown outcome %q", apperror.ErrMalformedMessage, raw)
	}
}

func (that *Scores) Credit(winner Mark) {
	switch winner {
	case PlayerX:
		that.X++
	case PlayerO:
		that.O++
	}
}

func (that Status) IsWaiting() bool {
	return that == StatusWaiting
}

func (that Status) IsOngoing() bool {
	return that == StatusOngoing
}

func (that Status) IsFinished() bool {
	return that == StatusFinished
}

func (that Status) IsTerminated() bool {
	return that == StatusTerminated
}

// ConfirmOngoing returns the error a move gets in any status but ongoing.
func (that Status) ConfirmOngoing() error {
	switch that {
	case StatusOngoing:
		return nil
	case StatusWaiting:
		return apperror.ErrGameIsNotStarted
	case StatusFinished:
		return apperror.ErrGameFinished
	case StatusTerminated:
		return apperror.ErrGameTerminated
	default:
		return fmt.Errorf("unknown game status: %s", that)
	}
}
