// Package syncchan moves intents from a participant to its game and snapshots back.
package syncchan

import (
	"context"
	"errors"

	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
)

var (
	ErrNotConnected = errors.New("sync channel is not connected")
	ErrClosed       = errors.New("sync channel is closed")
)

// Channel is a participant's link to a game.
type Channel interface {
	Send(ctx context.Context, msg entity.Message) error
	Close() error
}

// Handler receives messages addressed to the participant, in the order the game emitted them.
type Handler func(entity.Message)
