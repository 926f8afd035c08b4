package entity

// Player is a participant's handle on a seat. The token lets a dropped connection resume it.
type Player struct {
	GameID string `json:"game_id"`
	Mark   Mark   `json:"mark"`
	Token  string `json:"token,omitempty"`
}
