package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
	"github.com/rocketscienceinc/tictactoe-sync/internal/service"
	"github.com/rocketscienceinc/tictactoe-sync/internal/usecase"
)

type testEnv struct {
	srv     *httptest.Server
	useCase *usecase.GameUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var useCase *usecase.GameUseCase
	registry := service.NewRegistry(service.RegistryOptions{
		Logger:   logger,
		OnRemove: func(id string) { useCase.OnGameRemoved(id) },
	})
	useCase = usecase.NewGameUseCase(logger, registry, nil, usecase.Options{})

	srv := httptest.NewServer(New(logger, useCase, Options{}).Router())

	t.Cleanup(func() {
		srv.Close()
		useCase.Close()
		registry.Close()
	})

	return &testEnv{srv: srv, useCase: useCase}
}

func (that *testEnv) createGame(t *testing.T) string {
	t.Helper()

	id, err := that.useCase.CreateGame(context.Background(), false)
	require.NoError(t, err)

	return id
}

func (that *testEnv) dial(t *testing.T, id string, player string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(context.Background(), that.url(id, player), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	return conn
}

func (that *testEnv) url(id string, player string) string {
	return "ws" + strings.TrimPrefix(that.srv.URL, "http") + "/ws/" + id + "?player=" + player
}

func read(t *testing.T, conn *websocket.Conn) entity.Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var msg entity.Message
	require.NoError(t, wsjson.Read(ctx, conn, &msg))

	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg entity.Message) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

// readClose reads until the server closes and returns the close status.
func readClose(t *testing.T, conn *websocket.Conn) websocket.StatusCode {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return websocket.CloseStatus(err)
		}
	}
}

func TestServer_Join(t *testing.T) {
	t.Run("Sends JOINED then the snapshot to each player", func(t *testing.T) {
		// Given: a fresh game
		env := newTestEnv(t)
		id := env.createGame(t)

		// When: X connects
		connX := env.dial(t, id, "X")

		// Then: X learns its seat token and sees a waiting game
		joined := read(t, connX)
		assert.Equal(t, entity.MessageJoined, joined.Type)
		assert.Equal(t, entity.PlayerX, joined.Player)
		assert.NotEmpty(t, joined.Token)

		waiting := read(t, connX)
		require.Equal(t, entity.MessageStateUpdate, waiting.Type)
		assert.False(t, waiting.Payload.PlayerJoined)

		// When: O connects
		connO := env.dial(t, id, "o")

		// Then: both see the game started
		assert.Equal(t, entity.MessageJoined, read(t, connO).Type)
		assert.True(t, read(t, connO).Payload.PlayerJoined)
		assert.True(t, read(t, connX).Payload.PlayerJoined)
	})

	t.Run("Refuses an unknown game with an ERROR", func(t *testing.T) {
		env := newTestEnv(t)

		conn := env.dial(t, "NOPE2", "X")

		msg := read(t, conn)
		assert.Equal(t, entity.MessageError, msg.Type)
		assert.Equal(t, "game not found", msg.Error)
		assert.Equal(t, websocket.StatusPolicyViolation, readClose(t, conn))
	})

	t.Run("Refuses a third player", func(t *testing.T) {
		// Given: a game with both seats taken
		env := newTestEnv(t)
		id := env.createGame(t)
		env.dial(t, id, "X")
		env.dial(t, id, "O")

		// When: someone else asks for X without the token
		conn := env.dial(t, id, "X")

		// Then: the game is full
		msg := read(t, conn)
		assert.Equal(t, entity.MessageError, msg.Type)
		assert.Equal(t, "game already has two players", msg.Error)
	})

	t.Run("Rejects an invalid player before upgrading", func(t *testing.T) {
		env := newTestEnv(t)
		id := env.createGame(t)

		_, resp, err := websocket.Dial(context.Background(), env.url(id, "Z"), nil)

		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_Play(t *testing.T) {
	setup := func(t *testing.T) (*websocket.Conn, *websocket.Conn) {
		env := newTestEnv(t)
		id := env.createGame(t)

		connX := env.dial(t, id, "X")
		read(t, connX)
		read(t, connX)

		connO := env.dial(t, id, "O")
		read(t, connO)
		read(t, connO)
		read(t, connX)

		return connX, connO
	}

	t.Run("Broadcasts an accepted move to both players", func(t *testing.T) {
		connX, connO := setup(t)

		send(t, connX, entity.NewMakeMove(entity.PlayerX, 4))

		for _, conn := range []*websocket.Conn{connX, connO} {
			msg := read(t, conn)
			require.Equal(t, entity.MessageStateUpdate, msg.Type)
			assert.Equal(t, entity.PlayerX, msg.Payload.Board[4])
			assert.Equal(t, entity.PlayerO, msg.Payload.CurrentPlayer)
		}
	})

	t.Run("Ignores malformed and rejected messages", func(t *testing.T) {
		// Given: a started game
		connX, connO := setup(t)

		// When: X sends garbage, O sends a move claiming to be X, and X makes a real move
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, connX.Write(ctx, websocket.MessageText, []byte("{not json")))
		send(t, connO, entity.NewMakeMove(entity.PlayerX, 0))
		send(t, connX, entity.NewMakeMove(entity.PlayerX, 8))

		// Then: the only update both see is X's move
		msg := read(t, connO)
		require.Equal(t, entity.MessageStateUpdate, msg.Type)
		assert.Equal(t, entity.PlayerX, msg.Payload.Board[8])
		assert.Equal(t, entity.EmptyCell, msg.Payload.Board[0])
		assert.Equal(t, entity.PlayerX, read(t, connX).Payload.Board[8])
	})

	t.Run("Tells the opponent when a player leaves", func(t *testing.T) {
		// Given: a started game
		connX, connO := setup(t)

		// When: X leaves
		send(t, connX, entity.Message{Type: entity.MessageLeaveGame})

		// Then: O is told and both sockets are closed normally
		msg := read(t, connO)
		assert.Equal(t, entity.MessageOpponentLeft, msg.Type)
		assert.Equal(t, entity.PlayerX, msg.Player)
		assert.Equal(t, websocket.StatusNormalClosure, readClose(t, connO))
		assert.Equal(t, websocket.StatusNormalClosure, readClose(t, connX))
	})

	t.Run("Treats a normal close as leaving", func(t *testing.T) {
		connX, connO := setup(t)

		require.NoError(t, connX.Close(websocket.StatusNormalClosure, "bye"))

		assert.Equal(t, entity.MessageOpponentLeft, read(t, connO).Type)
	})
}
