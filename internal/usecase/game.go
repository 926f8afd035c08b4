package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sync/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-sync/internal/service"
)

type gameRepo interface {
	Save(ctx context.Context, id string, state *entity.GameState) error
	GetByID(ctx context.Context, id string) (*entity.GameState, error)
	DeleteByID(ctx context.Context, id string) error
}

type sessionRegistry interface {
	Create(ctx context.Context, opts service.CreateOptions) (*service.GameSession, error)
	Get(id string) (*service.GameSession, error)
}

type Options struct {
	// ReconnectGrace is how long a dropped seat stays reserved before it counts as a leave.
	ReconnectGrace time.Duration
	MirrorBuffer   int
}

// Connection is one participant attached to a seat.
type Connection struct {
	Player entity.Player

	session *service.GameSession
	unsub   func()
	once    sync.Once
}

// Terminated reports whether the game behind the connection is over for good.
func (that *Connection) Terminated() bool {
	return that.session.Status().IsTerminated()
}

type GameUseCase struct {
	logger   *slog.Logger
	registry sessionRegistry
	gameRepo gameRepo
	mirror   *mirror
	grace    time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewGameUseCase wires sessions to transports. gameRepo may be nil, which disables the snapshot mirror.
func NewGameUseCase(logger *slog.Logger, registry sessionRegistry, gameRepo gameRepo, opts Options) *GameUseCase {
	useCase := &GameUseCase{
		logger:   logger.With("component", "usecase"),
		registry: registry,
		gameRepo: gameRepo,
		grace:    opts.ReconnectGrace,
		timers:   make(map[string]*time.Timer),
	}

	if gameRepo != nil {
		useCase.mirror = newMirror(logger, gameRepo, opts.MirrorBuffer)
	}

	return useCase
}

// CreateGame registers a new game and returns its code.
func (that *GameUseCase) CreateGame(ctx context.Context, withBot bool) (string, error) {
	session, err := that.registry.Create(ctx, service.CreateOptions{WithBot: withBot})
	if err != nil {
		return "", fmt.Errorf("failed to create game: %w", err)
	}

	if that.mirror != nil {
		id := session.ID()
		session.Subscribe(func(msg entity.Message) {
			if msg.Type == entity.MessageStateUpdate {
				that.mirror.save(id, msg.Payload)
			}
		})
	}

	return session.ID(), nil
}

// LookupGame returns the current snapshot of a game hosted here or mirrored by another replica.
func (that *GameUseCase) LookupGame(ctx context.Context, id string) (*entity.GameState, error) {
	session, err := that.registry.Get(id)
	if err == nil {
		state := session.Snapshot()
		return &state, nil
	}

	if !errors.Is(err, apperror.ErrGameNotFound) || that.gameRepo == nil {
		return nil, err
	}

	state, err := that.gameRepo.GetByID(ctx, pkg.NormalizeGameID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get game snapshot: %w", err)
	}

	return state, nil
}

// Attach joins or resumes a seat. The listener receives JOINED and the snapshot before Attach returns.
func (that *GameUseCase) Attach(_ context.Context, id string, role entity.Mark, token string, listener service.Listener) (*Connection, error) {
	session, err := that.registry.Get(id)
	if err != nil {
		return nil, err
	}

	player, unsub, err := session.Attach(role, token, listener)
	if err != nil {
		return nil, fmt.Errorf("failed to attach to game %s: %w", session.ID(), err)
	}

	that.stopTimer(timerKey(session.ID(), role))

	return &Connection{
		Player:  player,
		session: session,
		unsub:   unsub,
	}, nil
}

// HandleMessage applies a client message on behalf of the connection's seat.
func (that *GameUseCase) HandleMessage(_ context.Context, conn *Connection, msg entity.Message) error {
	intent, err := entity.IntentFromMessage(conn.Player.Mark, msg)
	if err != nil {
		return err
	}

	if err = conn.session.Apply(intent); err != nil {
		return fmt.Errorf("failed to apply %s: %w", msg.Type, err)
	}

	return nil
}

// Detach unsubscribes the connection. A clean detach is a leave; otherwise the seat is kept
// for the reconnect grace period.
func (that *GameUseCase) Detach(conn *Connection, clean bool) {
	conn.once.Do(func() {
		conn.unsub()

		role := conn.Player.Mark
		if conn.Terminated() {
			return
		}

		if clean || that.grace <= 0 {
			that.leave(conn.session, role)
			return
		}

		if conn.session.HasListener(role) {
			return
		}

		key := timerKey(conn.session.ID(), role)
		session := conn.session

		that.mu.Lock()
		if previous, ok := that.timers[key]; ok {
			previous.Stop()
		}

		that.timers[key] = time.AfterFunc(that.grace, func() {
			that.mu.Lock()
			delete(that.timers, key)
			that.mu.Unlock()

			if !session.HasListener(role) {
				that.leave(session, role)
			}
		})
		that.mu.Unlock()
	})
}

// OnGameRemoved forgets everything kept for a game that left the registry.
func (that *GameUseCase) OnGameRemoved(id string) {
	that.stopTimer(timerKey(id, entity.PlayerX))
	that.stopTimer(timerKey(id, entity.PlayerO))

	if that.mirror != nil {
		that.mirror.remove(id)
	}
}

// Close stops pending grace timers and flushes the mirror.
func (that *GameUseCase) Close() {
	that.mu.Lock()
	for key, timer := range that.timers {
		timer.Stop()
		delete(that.timers, key)
	}
	that.mu.Unlock()

	if that.mirror != nil {
		that.mirror.Close()
	}
}

func (that *GameUseCase) leave(session *service.GameSession, role entity.Mark) {
	log := that.logger.With("method", "leave")

	if err := session.Leave(role); err != nil && !errors.Is(err, apperror.ErrGameTerminated) {
		log.Error("failed to leave game", "game_id", session.ID(), "player", role, "error", err)
		return
	}

	log.Info("player left game", "game_id", session.ID(), "player", role)
}

func (that *GameUseCase) stopTimer(key string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.timers[key]; ok {
		timer.Stop()
		delete(that.timers, key)
	}
}

func timerKey(id string, role entity.Mark) string {
	return id + ":" + string(role)
}
