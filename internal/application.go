package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-sync/internal/config"
	"github.com/rocketscienceinc/tictactoe-sync/internal/repository"
	"github.com/rocketscienceinc/tictactoe-sync/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-sync/internal/service"
	"github.com/rocketscienceinc/tictactoe-sync/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-sync/transport/rest"
	"github.com/rocketscienceinc/tictactoe-sync/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application until SIGINT/SIGTERM or a server failure.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	// Stays nil without Redis, which keeps games local to this process.
	var gameRepo repository.GameRepository

	if conf.Redis.Enabled {
		redisStorage, err := connectRedis(ctx, conf)
		if err != nil {
			return err
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		gameRepo = repository.NewGameRepository(redisStorage, conf.Redis.SnapshotTTL)
		log.Info("Redis snapshot mirror enabled", "addr", conf.Redis.GetRedisAddr())
	}

	var gameUseCase *usecase.GameUseCase

	registry := service.NewRegistry(service.RegistryOptions{
		Logger:          logger,
		CodeLength:      conf.Session.CodeLength,
		MaxCodeAttempts: conf.Session.MaxCodeAttempts,
		Store:           gameRepo,
		OpponentDelay:   conf.Session.OpponentDelay,
		OnRemove: func(id string) {
			gameUseCase.OnGameRemoved(id)
		},
	})

	gameUseCase = usecase.NewGameUseCase(logger, registry, gameRepo, usecase.Options{
		ReconnectGrace: conf.Session.ReconnectGrace,
	})

	// Sessions go first so their removal still reaches the mirror before it drains.
	defer func() {
		cancel()
		registry.Close()
		gameUseCase.Close()
	}()

	go registry.Run(ctx, conf.Session.SweepInterval, conf.Session.IdleTTL)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		httpServer := rest.New(logger, gameUseCase, conf.HTTPAllowOrigin)
		if httpErr := httpServer.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, gameUseCase, websocket.Options{
			OriginPatterns: conf.Websocket.OriginPatterns,
		})
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err := <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err := <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func connectRedis(ctx context.Context, conf *config.Config) (*redis.Client, error) {
	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return nil, ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	return redisStorage, nil
}
