package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrGameTerminated   = errors.New("game is terminated")
	ErrRoundNotOver     = errors.New("round is not over")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrOutOfRange       = errors.New("cell index out of range")
	ErrInvalidRole      = errors.New("invalid role")
	ErrAlreadyFull      = errors.New("game already has two players")

	ErrGameNotFound       = errors.New("game not found")
	ErrMalformedMessage   = errors.New("malformed message")
	ErrCodeSpaceExhausted = errors.New("no free game code left")
)

var validationErrors = []error{
	ErrGameFinished,
	ErrGameIsNotStarted,
	ErrGameTerminated,
	ErrRoundNotOver,
	ErrNotYourTurn,
	ErrCellOccupied,
	ErrOutOfRange,
	ErrInvalidRole,
	ErrAlreadyFull,
}

// IsValidation reports whether err is a rejected intent that left the game untouched.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
