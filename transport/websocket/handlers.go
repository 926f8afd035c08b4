package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rocketscienceinc/tictactoe-sync/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sync/internal/usecase"
)

// handleConnection attaches the socket to a seat and relays messages both ways until either side closes.
func (that *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	log := that.logger.With("method", "handleConnection", "game_id", gameID, "request_id", middleware.GetReqID(r.Context()))

	role, err := entity.ParseMark(r.URL.Query().Get("player"))
	if err != nil {
		http.Error(w, "player must be X or O", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: that.opts.OriginPatterns,
	})
	if err != nil {
		log.Error("failed to accept websocket", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbox := make(chan entity.Message, that.opts.SendBuffer)
	listener := func(msg entity.Message) {
		select {
		case outbox <- msg:
		default:
			log.Warn("client is too slow, dropping connection", "player", role)
			cancel()
		}
	}

	seat, err := that.useCase.Attach(ctx, gameID, role, r.URL.Query().Get("token"), listener)
	if err != nil {
		log.Info("attach refused", "player", role, "error", err)
		that.refuse(ctx, conn, err)
		return
	}

	log = log.With("player", role)
	log.Info("player connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		that.writeLoop(ctx, cancel, conn, outbox)
	}()

	readErr := that.readLoop(ctx, conn, seat)
	cancel()
	<-writerDone

	clean := websocket.CloseStatus(readErr) == websocket.StatusNormalClosure
	that.useCase.Detach(seat, clean)

	log.Info("player disconnected", "clean", clean, "error", readErr)
}

func (that *Server) readLoop(ctx context.Context, conn *websocket.Conn, seat *usecase.Connection) error {
	log := that.logger.With("method", "readLoop", "game_id", seat.Player.GameID, "player", seat.Player.Mark)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var msg entity.Message
		if err = json.Unmarshal(data, &msg); err != nil {
			log.Debug("dropping malformed message", "error", err)
			continue
		}

		if err = that.useCase.HandleMessage(ctx, seat, msg); err != nil {
			if apperror.IsValidation(err) || errors.Is(err, apperror.ErrMalformedMessage) {
				log.Debug("intent rejected", "type", msg.Type, "error", err)
			} else {
				log.Error("failed to handle message", "type", msg.Type, "error", err)
			}
		}

		if seat.Terminated() {
			_ = conn.Close(websocket.StatusNormalClosure, "game over")
			return nil
		}
	}
}

// writeLoop sends queued messages in order and closes the socket after a final one.
func (that *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbox <-chan entity.Message) {
	log := that.logger.With("method", "writeLoop")

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbox:
			writeCtx, writeCancel := context.WithTimeout(ctx, that.opts.WriteTimeout)
			err := wsjson.Write(writeCtx, conn, msg)
			writeCancel()

			if err != nil {
				log.Debug("failed to write message", "type", msg.Type, "error", err)
				cancel()
				return
			}

			if msg.IsFinal() || msg.Type == entity.MessageError {
				_ = conn.Close(websocket.StatusNormalClosure, msg.Type)
				return
			}
		}
	}
}

func (that *Server) refuse(ctx context.Context, conn *websocket.Conn, err error) {
	reason := err.Error()
	status := websocket.StatusPolicyViolation

	switch {
	case errors.Is(err, apperror.ErrGameNotFound):
		reason = apperror.ErrGameNotFound.Error()
	case errors.Is(err, apperror.ErrAlreadyFull):
		reason = apperror.ErrAlreadyFull.Error()
	case errors.Is(err, apperror.ErrGameTerminated):
		reason = apperror.ErrGameTerminated.Error()
	case !apperror.IsValidation(err):
		status = websocket.StatusInternalError
		reason = "internal error"
	}

	writeCtx, cancel := context.WithTimeout(ctx, that.opts.WriteTimeout)
	defer cancel()

	_ = wsjson.Write(writeCtx, conn, entity.Message{Type: entity.MessageError, Error: reason})
	_ = conn.Close(status, reason)
}
