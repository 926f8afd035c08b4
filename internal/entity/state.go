package entity

// GameState is the full snapshot pushed to every participant after each accepted intent.
type GameState struct {
	Board         Board   `json:"board"`
	CurrentPlayer Mark    `json:"currentPlayer"`
	Winner        Outcome `json:"winner"`
	WinningLine   *Line   `json:"winningLine"`
	PlayerJoined  bool    `json:"playerJoined"`
	Scores        *Scores `json:"scores,omitempty"`
}

// NewGameState returns the snapshot of an empty board with X to move.
func NewGameState() *GameState {
	return &GameState{
		CurrentPlayer: PlayerX,
		Scores:        &Scores{},
	}
}
