package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sync/internal/pkg"
)

const (
	defaultCodeLength      = 5
	defaultMaxCodeAttempts = 32
)

// codeStore reserves codes across replicas. Create reports false when the code is taken.
type codeStore interface {
	Create(ctx context.Context, id string, state *entity.GameState) (bool, error)
}

type RegistryOptions struct {
	Logger *slog.Logger

	CodeLength      int
	MaxCodeAttempts int
	GenerateCode    func(length int) (string, error)
	Store           codeStore

	Opponent      BotService
	OpponentDelay time.Duration

	// OnRemove runs after a session left the registry, whatever the reason.
	OnRemove func(id string)

	Now func() time.Time
}

type CreateOptions struct {
	WithBot bool
}

// Registry owns every live session by code.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession

	logger *slog.Logger
	opts   RegistryOptions
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.CodeLength <= 0 {
		opts.CodeLength = defaultCodeLength
	}

	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = defaultMaxCodeAttempts
	}

	if opts.GenerateCode == nil {
		opts.GenerateCode = pkg.GenerateGameID
	}

	if opts.Opponent == nil {
		opts.Opponent = NewBotService(rand.NewSource(time.Now().UnixNano()))
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Registry{
		sessions: make(map[string]*GameSession),
		logger:   opts.Logger.With("component", "registry"),
		opts:     opts,
	}
}

// Create registers a session under a fresh code.
func (that *Registry) Create(ctx context.Context, opts CreateOptions) (*GameSession, error) {
	log := that.logger.With("method", "Create")

	for attempt := 1; attempt <= that.opts.MaxCodeAttempts; attempt++ {
		code, err := that.opts.GenerateCode(that.opts.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate game id: %w", err)
		}

		code = pkg.NormalizeGameID(code)
		if that.exists(code) {
			log.Debug("game id collision", "game_id", code, "attempt", attempt)
			continue
		}

		session := that.newSession(code, opts)

		if that.opts.Store != nil {
			state := session.Snapshot()

			reserved, err := that.opts.Store.Create(ctx, code, &state)
			if err != nil {
				return nil, fmt.Errorf("failed to reserve game id: %w", err)
			}

			if !reserved {
				log.Debug("game id taken by another replica", "game_id", code, "attempt", attempt)
				continue
			}
		}

		that.mu.Lock()
		if _, taken := that.sessions[code]; taken {
			that.mu.Unlock()
			continue
		}
		that.sessions[code] = session
		that.mu.Unlock()

		log.Info("game created", "game_id", code, "with_bot", opts.WithBot)

		return session, nil
	}

	return nil, apperror.ErrCodeSpaceExhausted
}

// Get returns the session for a code in any letter case.
func (that *Registry) Get(id string) (*GameSession, error) {
	code := pkg.NormalizeGameID(id)

	that.mu.RLock()
	defer that.mu.RUnlock()

	session, ok := that.sessions[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameNotFound, code)
	}

	return session, nil
}

// Remove closes the session and forgets it.
func (that *Registry) Remove(id string) bool {
	session, ok := that.detach(pkg.NormalizeGameID(id))
	if !ok {
		return false
	}

	session.Close()
	that.notifyRemoved(session.ID())

	return true
}

func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.sessions)
}

// Sweep removes sessions idle for longer than ttl and returns how many went away.
func (that *Registry) Sweep(ttl time.Duration) int {
	deadline := that.opts.Now().Add(-ttl)

	that.mu.RLock()
	idle := make([]string, 0)
	for code, session := range that.sessions {
		if session.LastActivity().Before(deadline) {
			idle = append(idle, code)
		}
	}
	that.mu.RUnlock()

	removed := 0
	for _, code := range idle {
		if that.Remove(code) {
			removed++
		}
	}

	return removed
}

// Run sweeps idle sessions every interval until ctx is done.
func (that *Registry) Run(ctx context.Context, interval, ttl time.Duration) {
	log := that.logger.With("method", "Run")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := that.Sweep(ttl); removed > 0 {
				log.Info("idle games removed", "count", removed, "remaining", that.Len())
			}
		}
	}
}

// Close terminates every session.
func (that *Registry) Close() {
	that.mu.RLock()
	codes := make([]string, 0, len(that.sessions))
	for code := range that.sessions {
		codes = append(codes, code)
	}
	that.mu.RUnlock()

	for _, code := range codes {
		that.Remove(code)
	}
}

func (that *Registry) newSession(code string, opts CreateOptions) *GameSession {
	sessionOpts := SessionOptions{
		Logger: that.opts.Logger,
		Now:    that.opts.Now,
		OnTerminate: func(id string) {
			if _, ok := that.detach(id); ok {
				that.notifyRemoved(id)
			}
		},
	}

	if opts.WithBot {
		sessionOpts.Opponent = that.opts.Opponent
		sessionOpts.OpponentDelay = that.opts.OpponentDelay
	}

	return NewGameSession(code, sessionOpts)
}

func (that *Registry) exists(code string) bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	_, ok := that.sessions[code]

	return ok
}

func (that *Registry) detach(code string) (*GameSession, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[code]
	if ok {
		delete(that.sessions, code)
	}

	return session, ok
}

func (that *Registry) notifyRemoved(id string) {
	that.logger.Debug("game removed", "game_id", id)

	if that.opts.OnRemove != nil {
		that.opts.OnRemove(id)
	}
}
