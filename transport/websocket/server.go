package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sync/internal/service"
	"github.com/rocketscienceinc/tictactoe-sync/internal/usecase"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 5 * time.Second
	shutdownTimeout     = 5 * time.Second
)

type gameUseCase interface {
	Attach(ctx context.Context, id string, role entity.Mark, token string, listener service.Listener) (*usecase.Connection, error)
	HandleMessage(ctx context.Context, conn *usecase.Connection, msg entity.Message) error
	Detach(conn *usecase.Connection, clean bool)
}

type Options struct {
	OriginPatterns []string
	SendBuffer     int
	WriteTimeout   time.Duration
}

type Server struct {
	logger  *slog.Logger
	useCase gameUseCase
	opts    Options
	router  *chi.Mux
}

func New(logger *slog.Logger, useCase gameUseCase, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}

	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}

	server := &Server{
		logger:  logger.With("component", "websocket"),
		useCase: useCase,
		opts:    opts,
		router:  chi.NewRouter(),
	}

	server.router.Use(middleware.RequestID)
	server.router.Use(middleware.Recoverer)
	server.router.Get("/ws/{gameID}", server.handleConnection)

	return server
}

// Router exposes the handler, mostly for tests.
func (that *Server) Router() http.Handler {
	return that.router
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
