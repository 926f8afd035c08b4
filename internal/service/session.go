package service

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sync/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-sync/internal/tictactoe"
)

// Listener receives every message a session emits for its subscriber.
// It is called with the session locked and must not call back into the session.
type Listener func(entity.Message)

type SessionOptions struct {
	Logger *slog.Logger

	// Opponent plays O when set. Its session starts ongoing with both seats filled.
	Opponent      BotService
	OpponentDelay time.Duration

	// OnTerminate runs once, outside the session lock, after the session becomes terminated.
	OnTerminate func(id string)

	Now func() time.Time
}

type seat struct {
	joined    bool
	scripted  bool
	token     string
	listeners map[uint64]Listener
}

// GameSession is the authoritative state of one game. Intents are applied one at a time.
type GameSession struct {
	mu sync.Mutex

	id     string
	logger *slog.Logger
	now    func() time.Time

	board  entity.Board
	turn   entity.Mark
	status entity.Status
	scores entity.Scores
	votes  map[entity.Mark]bool

	seats     map[entity.Mark]*seat
	observers map[uint64]Listener
	nextID    uint64

	opponent      BotService
	opponentMark  entity.Mark
	opponentDelay time.Duration
	pending       *time.Timer
	pendingSeq    uint64

	onTerminate      func(id string)
	terminateHandled bool
	lastActivity     time.Time
}

func NewGameSession(id string, opts SessionOptions) *GameSession {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	session := &GameSession{
		id:     id,
		logger: logger.With("component", "session", "game_id", id),
		now:    now,

		turn:   entity.PlayerX,
		status: entity.StatusWaiting,
		votes:  make(map[entity.Mark]bool, 2),

		seats: map[entity.Mark]*seat{
			entity.PlayerX: {listeners: make(map[uint64]Listener)},
			entity.PlayerO: {listeners: make(map[uint64]Listener)},
		},
		observers: make(map[uint64]Listener),

		opponentDelay: opts.OpponentDelay,
		onTerminate:   opts.OnTerminate,
		lastActivity:  now(),
	}

	if opts.Opponent != nil {
		session.opponent = opts.Opponent
		session.opponentMark = entity.PlayerO
		session.seats[entity.PlayerX].joined = true
		session.seats[entity.PlayerO].joined = true
		session.seats[entity.PlayerO].scripted = true
		session.status = entity.StatusOngoing
	}

	return session
}

func (that *GameSession) ID() string {
	return that.id
}

// HasOpponent reports whether O is played by the scripted opponent.
func (that *GameSession) HasOpponent() bool {
	return that.opponent != nil
}

func (that *GameSession) Snapshot() entity.GameState {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked()
}

func (that *GameSession) Status() entity.Status {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.status
}

func (that *GameSession) LastActivity() time.Time {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.lastActivity
}

// HasListener reports whether anybody is currently attached to role's seat.
func (that *GameSession) HasListener(role entity.Mark) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	s, ok := that.seats[role]

	return ok && len(s.listeners) > 0
}

// Apply dispatches an intent to the matching operation.
func (that *GameSession) Apply(intent entity.Intent) error {
	switch intent.Kind {
	case entity.IntentJoin:
		_, err := that.Join(intent.Role)
		return err
	case entity.IntentMakeMove:
		return that.MakeMove(intent.Role, intent.Index)
	case entity.IntentRequestRematch:
		return that.RequestRematch(intent.Role)
	case entity.IntentDeclineRematch:
		return that.DeclineRematch(intent.Role)
	case entity.IntentLeave:
		return that.Leave(intent.Role)
	case entity.IntentReset:
		return that.Reset(intent.Role)
	default:
		return fmt.Errorf("%w: unknown intent %d", apperror.ErrMalformedMessage, intent.Kind)
	}
}

// Join claims role's seat and returns the token that resumes it.
func (that *GameSession) Join(role entity.Mark) (string, error) {
	var token string

	err := that.do(func() error {
		var err error
		if token, err = that.joinLocked(role); err != nil {
			return err
		}

		that.broadcastStateLocked()

		return nil
	})

	return token, err
}

func (that *GameSession) MakeMove(role entity.Mark, index int) error {
	return that.do(func() error {
		if err := that.moveLocked(role, index); err != nil {
			return err
		}

		that.broadcastStateLocked()
		that.scheduleOpponentLocked()

		return nil
	})
}

// RequestRematch records role's vote. The round restarts once both players agreed.
func (that *GameSession) RequestRematch(role entity.Mark) error {
	return that.do(func() error {
		if err := that.confirmRoundOverLocked(role); err != nil {
			return err
		}

		that.votes[role] = true
		if that.opponent != nil {
			that.votes[that.opponentMark] = true
		}

		if that.votes[entity.PlayerX] && that.votes[entity.PlayerO] {
			that.startRoundLocked()
		}

		that.broadcastStateLocked()
		that.scheduleOpponentLocked()

		return nil
	})
}

// DeclineRematch tells the other player and ends the session.
func (that *GameSession) DeclineRematch(role entity.Mark) error {
	return that.do(func() error {
		if err := that.confirmRoundOverLocked(role); err != nil {
			return err
		}

		that.sendToLocked(role.Opponent(), entity.Message{Type: entity.MessageRematchDeclined, Player: role})
		that.terminateLocked()

		return nil
	})
}

// Leave ends the session from any live state and tells the remaining player.
func (that *GameSession) Leave(role entity.Mark) error {
	return that.do(func() error {
		if !role.IsPlayer() {
			return fmt.Errorf("%w: %q", apperror.ErrInvalidRole, role)
		}

		if that.status.IsTerminated() {
			return apperror.ErrGameTerminated
		}

		that.sendToLocked(role.Opponent(), entity.Message{Type: entity.MessageOpponentLeft, Player: role})
		that.terminateLocked()

		return nil
	})
}

// Reset restarts the round immediately. Scores are kept.
func (that *GameSession) Reset(role entity.Mark) error {
	return that.do(func() error {
		if !role.IsPlayer() {
			return fmt.Errorf("%w: %q", apperror.ErrInvalidRole, role)
		}

		switch that.status {
		case entity.StatusOngoing, entity.StatusFinished:
		case entity.StatusWaiting:
			return apperror.ErrGameIsNotStarted
		default:
			return apperror.ErrGameTerminated
		}

		that.startRoundLocked()
		that.broadcastStateLocked()
		that.scheduleOpponentLocked()

		return nil
	})
}

// Attach joins or resumes role's seat and subscribes listener to it.
// A free seat is joined. A taken seat is resumed with its token, or without one when no
// token was ever issued for it. The listener gets JOINED followed by the current snapshot.
func (that *GameSession) Attach(role entity.Mark, token string, listener Listener) (entity.Player, func(), error) {
	var (
		player entity.Player
		unsub  func()
	)

	err := that.do(func() error {
		if !role.IsPlayer() {
			return fmt.Errorf("%w: %q", apperror.ErrInvalidRole, role)
		}

		if that.status.IsTerminated() {
			return apperror.ErrGameTerminated
		}

		s := that.seats[role]
		joined := false

		switch {
		case !s.joined:
			issued, err := that.joinLocked(role)
			if err != nil {
				return err
			}

			token = issued
			joined = true
		case s.scripted:
			return apperror.ErrAlreadyFull
		case s.token == "":
			s.token = pkg.GenerateSeatToken()
			token = s.token
		case s.token != token:
			if that.seats[role.Opponent()].joined {
				return apperror.ErrAlreadyFull
			}

			return fmt.Errorf("%w: seat %s is taken", apperror.ErrInvalidRole, role)
		}

		that.nextID++
		id := that.nextID
		s.listeners[id] = listener

		player = entity.Player{GameID: that.id, Mark: role, Token: token}
		unsub = func() {
			that.mu.Lock()
			defer that.mu.Unlock()

			delete(s.listeners, id)
		}

		listener(entity.Message{Type: entity.MessageJoined, Player: role, Token: token})

		if joined {
			that.broadcastStateLocked()
		} else {
			state := that.snapshotLocked()
			listener(entity.NewStateUpdate(&state))
		}

		return nil
	})
	if err != nil {
		return entity.Player{}, nil, err
	}

	return player, unsub, nil
}

// Subscribe adds a seatless listener that receives every state update,
// starting with the current snapshot.
func (that *GameSession) Subscribe(listener Listener) func() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.nextID++
	id := that.nextID
	that.observers[id] = listener

	state := that.snapshotLocked()
	listener(entity.NewStateUpdate(&state))

	return func() {
		that.mu.Lock()
		defer that.mu.Unlock()

		delete(that.observers, id)
	}
}

// Close terminates the session without invoking OnTerminate. Attached listeners get an ERROR.
func (that *GameSession) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.status.IsTerminated() {
		that.terminateHandled = true
		return
	}

	that.terminateHandled = true
	that.terminateLocked()

	closed := entity.Message{Type: entity.MessageError, Error: apperror.ErrGameTerminated.Error()}
	that.sendToLocked(entity.PlayerX, closed)
	that.sendToLocked(entity.PlayerO, closed)
}

// do runs fn under the lock and fires OnTerminate once fn has ended the session.
func (that *GameSession) do(fn func() error) error {
	that.mu.Lock()

	err := fn()
	if err == nil {
		that.lastActivity = that.now()
	}

	notify := that.status.IsTerminated() && !that.terminateHandled
	if notify {
		that.terminateHandled = true
	}

	that.mu.Unlock()

	if notify && that.onTerminate != nil {
		that.onTerminate(that.id)
	}

	return err
}

func (that *GameSession) joinLocked(role entity.Mark) (string, error) {
	if !role.IsPlayer() {
		return "", fmt.Errorf("%w: %q", apperror.ErrInvalidRole, role)
	}

	if that.status.IsTerminated() {
		return "", apperror.ErrGameTerminated
	}

	if that.seats[entity.PlayerX].joined && that.seats[entity.PlayerO].joined {
		return "", apperror.ErrAlreadyFull
	}

	s := that.seats[role]
	if s.joined {
		return "", fmt.Errorf("%w: seat %s is taken", apperror.ErrInvalidRole, role)
	}

	s.joined = true
	s.token = pkg.GenerateSeatToken()

	if that.seats[role.Opponent()].joined {
		that.status = entity.StatusOngoing
	}

	return s.token, nil
}

func (that *GameSession) moveLocked(role entity.Mark, index int) error {
	if !role.IsPlayer() {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidRole, role)
	}

	if err := that.status.ConfirmOngoing(); err != nil {
		return err
	}

	if err := tictactoe.ValidateMove(that.board, that.turn, role, index); err != nil {
		return err
	}

	that.board[index] = role
	that.turn = role.Opponent()

	if outcome, _ := tictactoe.Evaluate(that.board); outcome.IsDecided() {
		that.status = entity.StatusFinished
		that.scores.Credit(outcome.Winner())
	}

	return nil
}

func (that *GameSession) confirmRoundOverLocked(role entity.Mark) error {
	if !role.IsPlayer() {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidRole, role)
	}

	switch that.status {
	case entity.StatusFinished:
		return nil
	case entity.StatusTerminated:
		return apperror.ErrGameTerminated
	default:
		return apperror.ErrRoundNotOver
	}
}

func (that *GameSession) startRoundLocked() {
	that.cancelPendingLocked()

	that.board = entity.Board{}
	that.turn = entity.PlayerX
	that.status = entity.StatusOngoing
	clear(that.votes)
}

func (that *GameSession) terminateLocked() {
	that.cancelPendingLocked()
	that.status = entity.StatusTerminated
}

// scheduleOpponentLocked lets the scripted opponent move when it is its turn.
func (that *GameSession) scheduleOpponentLocked() {
	if that.opponent == nil || !that.status.IsOngoing() || that.turn != that.opponentMark {
		return
	}

	if that.opponentDelay <= 0 {
		that.playOpponentLocked()
		return
	}

	that.cancelPendingLocked()
	seq := that.pendingSeq

	that.pending = time.AfterFunc(that.opponentDelay, func() {
		_ = that.do(func() error {
			if seq != that.pendingSeq {
				return nil
			}

			that.pending = nil
			that.playOpponentLocked()

			return nil
		})
	})
}

func (that *GameSession) playOpponentLocked() {
	if !that.status.IsOngoing() || that.turn != that.opponentMark {
		return
	}

	cell, ok := that.opponent.SelectMove(that.board, that.opponentMark)
	if !ok {
		return
	}

	if err := that.moveLocked(that.opponentMark, cell); err != nil {
		that.logger.Error("opponent move rejected", "cell", cell, "error", err)
		return
	}

	that.broadcastStateLocked()
}

func (that *GameSession) cancelPendingLocked() {
	that.pendingSeq++

	if that.pending != nil {
		that.pending.Stop()
		that.pending = nil
	}
}

func (that *GameSession) snapshotLocked() entity.GameState {
	outcome, line := tictactoe.Evaluate(that.board)
	scores := that.scores

	return entity.GameState{
		Board:         that.board,
		CurrentPlayer: that.turn,
		Winner:        outcome,
		WinningLine:   line,
		PlayerJoined:  that.seats[entity.PlayerX].joined && that.seats[entity.PlayerO].joined,
		Scores:        &scores,
	}
}

func (that *GameSession) broadcastStateLocked() {
	state := that.snapshotLocked()
	msg := entity.NewStateUpdate(&state)

	for _, role := range [2]entity.Mark{entity.PlayerX, entity.PlayerO} {
		for _, listener := range that.seats[role].listeners {
			listener(msg)
		}
	}

	for _, listener := range that.observers {
		listener(msg)
	}
}

func (that *GameSession) sendToLocked(role entity.Mark, msg entity.Message) {
	s, ok := that.seats[role]
	if !ok {
		return
	}

	for _, listener := range s.listeners {
		listener(msg)
	}
}
