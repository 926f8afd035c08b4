package syncchan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sync/internal/service"
)

// Local delivers messages synchronously to a game in the same process.
// The handler runs with the game locked, so it must not call Send itself.
type Local struct {
	session *service.GameSession
	player  entity.Player
	unsub   func()

	mu     sync.Mutex
	closed bool
}

func NewLocal(session *service.GameSession, role entity.Mark, handler Handler) (*Local, error) {
	player, unsub, err := session.Attach(role, "", service.Listener(handler))
	if err != nil {
		return nil, fmt.Errorf("failed to attach local channel: %w", err)
	}

	return &Local{
		session: session,
		player:  player,
		unsub:   unsub,
	}, nil
}

func (that *Local) Player() entity.Player {
	return that.player
}

func (that *Local) Send(_ context.Context, msg entity.Message) error {
	that.mu.Lock()
	closed := that.closed
	that.mu.Unlock()

	if closed {
		return ErrClosed
	}

	intent, err := entity.IntentFromMessage(that.player.Mark, msg)
	if err != nil {
		return err
	}

	return that.session.Apply(intent)
}

// Close leaves the game.
func (that *Local) Close() error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil
	}
	that.closed = true
	that.mu.Unlock()

	that.unsub()

	if err := that.session.Leave(that.player.Mark); err != nil && !errors.Is(err, apperror.ErrGameTerminated) {
		return fmt.Errorf("failed to leave game: %w", err)
	}

	return nil
}
