package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
)

const modeComputer = "computer"

type gameUseCase interface {
	CreateGame(ctx context.Context, withBot bool) (string, error)
	LookupGame(ctx context.Context, id string) (*entity.GameState, error)
}

type createGameResponse struct {
	SessionID string `json:"sessionId"`
}

type getGameResponse struct {
	Found bool              `json:"found"`
	State *entity.GameState `json:"state,omitempty"`
	Error string            `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	logger  *slog.Logger
	useCase gameUseCase
}

func newHandlers(logger *slog.Logger, useCase gameUseCase) *handlers {
	return &handlers{
		logger:  logger,
		useCase: useCase,
	}
}

func (that *handlers) Ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// CreateGame - POST /create[?mode=computer].
func (that *handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "CreateGame")

	withBot := r.URL.Query().Get("mode") == modeComputer

	id, err := that.useCase.CreateGame(r.Context(), withBot)
	if err != nil {
		log.Error("failed to create game", "error", err)

		status := http.StatusInternalServerError
		if errors.Is(err, apperror.ErrCodeSpaceExhausted) {
			status = http.StatusServiceUnavailable
		}

		that.writeJSON(w, status, errorResponse{Error: "failed to create game"})
		return
	}

	that.writeJSON(w, http.StatusOK, createGameResponse{SessionID: id})
}

// GetGame - GET /game/{gameID}.
func (that *handlers) GetGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "GetGame")

	state, err := that.useCase.LookupGame(r.Context(), chi.URLParam(r, "gameID"))
	if errors.Is(err, apperror.ErrGameNotFound) {
		that.writeJSON(w, http.StatusNotFound, getGameResponse{Error: apperror.ErrGameNotFound.Error()})
		return
	}

	if err != nil {
		log.Error("failed to look up game", "error", err)
		that.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to look up game"})
		return
	}

	that.writeJSON(w, http.StatusOK, getGameResponse{Found: true, State: state})
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
