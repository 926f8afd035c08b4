package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger      *slog.Logger
	router      *chi.Mux
	allowOrigin string
}

// New builds the HTTP API. allowOrigin is sent as Access-Control-Allow-Origin; empty disables CORS headers.
func New(logger *slog.Logger, useCase gameUseCase, allowOrigin string) *Server {
	server := &Server{
		logger:      logger.With("component", "rest"),
		router:      chi.NewRouter(),
		allowOrigin: allowOrigin,
	}

	handlers := newHandlers(server.logger, useCase)

	server.router.Use(middleware.RequestID)
	server.router.Use(middleware.Recoverer)
	server.router.Use(middleware.Timeout(10 * time.Second))
	server.router.Use(server.cors)

	server.router.Get("/ping", handlers.Ping)
	server.router.Post("/create", handlers.CreateGame)
	server.router.Get("/game/{gameID}", handlers.GetGame)

	return server
}

func (that *Server) Router() http.Handler {
	return that.router
}

// Start serves the API on port until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down http server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if that.allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", that.allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
