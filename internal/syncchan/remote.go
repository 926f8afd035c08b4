package syncchan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/rocketscienceinc/tictactoe-sync/internal/entity"
)

const (
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 10 * time.Second
	defaultMaxAttempts  = 5
	defaultDialTimeout  = 10 * time.Second
)

type ConnState int

const (
	StateConnected ConnState = iota + 1
	StateReconnecting
	StateDisconnected
)

type RemoteOptions struct {
	// BaseURL is the websocket server root, e.g. ws://localhost:9091.
	BaseURL string
	GameID  string
	Role    entity.Mark
	Token   string

	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	DialTimeout  time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
	OnState    func(ConnState)
}

// Remote is a participant's websocket link to a game server. Unexpected disconnects are
// retried with exponential backoff; a close from either side ends it.
type Remote struct {
	opts    RemoteOptions
	handler Handler
	logger  *slog.Logger
	backoff *backoff.ExponentialBackOff

	mu    sync.Mutex
	conn  *websocket.Conn
	token string
	err   error

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// DialRemote connects to the game and starts delivering its messages to handler.
func DialRemote(ctx context.Context, opts RemoteOptions, handler Handler) (*Remote, error) {
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}

	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}

	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	remote := &Remote{
		opts:    opts,
		handler: handler,
		logger:  logger.With("component", "remote", "game_id", opts.GameID, "player", opts.Role),
		backoff: newBackOff(opts.InitialDelay, opts.MaxDelay),
		token:   opts.Token,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	remote.rootCtx, remote.rootCancel = context.WithCancel(context.Background())

	conn, err := remote.dial(ctx)
	if err != nil {
		remote.rootCancel()
		return nil, err
	}

	remote.conn = conn
	remote.notify(StateConnected)

	remote.wg.Add(1)
	go remote.run(conn)

	return remote, nil
}

// Token is the seat token last issued by the server.
func (that *Remote) Token() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.token
}

// Done is closed once the channel stopped for good.
func (that *Remote) Done() <-chan struct{} {
	return that.done
}

// Err explains why the channel stopped. It is nil after a clean close.
func (that *Remote) Err() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.err
}

func (that *Remote) Send(ctx context.Context, msg entity.Message) error {
	if that.stopping() {
		return ErrClosed
	}

	that.mu.Lock()
	conn := that.conn
	that.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	if err := wsjson.Write(ctx, conn, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Close ends the connection with a normal closure. The server counts it as leaving.
func (that *Remote) Close() error {
	that.stopOnce.Do(func() { close(that.stopCh) })

	that.mu.Lock()
	conn := that.conn
	that.conn = nil
	that.mu.Unlock()

	if conn != nil {
		// The peer may drop the socket before echoing the close frame; the leave is sent either way.
		if err := conn.Close(websocket.StatusNormalClosure, "leave"); err != nil {
			that.logger.Debug("close handshake did not complete", "error", err)
		}
	}

	that.rootCancel()
	that.wg.Wait()

	return nil
}

func (that *Remote) run(conn *websocket.Conn) {
	defer that.wg.Done()

	for {
		err := that.listen(conn)
		if that.stopping() {
			that.finish(nil)
			return
		}

		if !reconnectable(err) {
			that.finish(closeError(err))
			return
		}

		that.logger.Warn("connection lost", "error", err)
		that.setConn(nil)
		that.notify(StateReconnecting)

		if conn = that.reconnect(); conn == nil {
			if that.stopping() {
				that.finish(nil)
				return
			}

			that.finish(fmt.Errorf("failed to reconnect after %d attempts: %w", that.opts.MaxAttempts, err))
			return
		}
	}
}

func (that *Remote) listen(conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(that.rootCtx)
		if err != nil {
			return err
		}

		var msg entity.Message
		if err = json.Unmarshal(data, &msg); err != nil {
			that.logger.Debug("dropping malformed message", "error", err)
			continue
		}

		if msg.Type == entity.MessageJoined && msg.Token != "" {
			that.mu.Lock()
			that.token = msg.Token
			that.mu.Unlock()
		}

		that.handler(msg)
	}
}

// reconnect waits min(initial * 2^attempt, max) before each attempt.
func (that *Remote) reconnect() *websocket.Conn {
	that.backoff.Reset()

	for attempt := 1; attempt <= that.opts.MaxAttempts; attempt++ {
		timer := time.NewTimer(that.backoff.NextBackOff())

		select {
		case <-that.stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := that.dial(that.rootCtx)
		if err != nil {
			that.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
			continue
		}

		if !that.setConn(conn) {
			_ = conn.Close(websocket.StatusNormalClosure, "leave")
			return nil
		}

		that.logger.Info("reconnected", "attempt", attempt)
		that.notify(StateConnected)

		return conn
	}

	return nil
}

func (that *Remote) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := that.endpoint()
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, that.opts.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{
		HTTPClient: that.opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	return conn, nil
}

func (that *Remote) endpoint() (string, error) {
	base, err := url.Parse(that.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}

	base.Path = path.Join(base.Path, "ws", that.opts.GameID)

	query := base.Query()
	query.Set("player", string(that.opts.Role))
	if token := that.Token(); token != "" {
		query.Set("token", token)
	}
	base.RawQuery = query.Encode()

	return base.String(), nil
}

// setConn swaps the live connection unless the channel is closing.
func (that *Remote) setConn(conn *websocket.Conn) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if conn != nil && that.stopping() {
		return false
	}

	that.conn = conn

	return true
}

func (that *Remote) finish(err error) {
	that.mu.Lock()
	that.err = err
	that.conn = nil
	that.mu.Unlock()

	that.notify(StateDisconnected)
	close(that.done)
}

func (that *Remote) notify(state ConnState) {
	if that.opts.OnState != nil {
		that.opts.OnState(state)
	}
}

func (that *Remote) stopping() bool {
	select {
	case <-that.stopCh:
		return true
	default:
		return false
	}
}

// reconnectable reports whether err is a drop rather than a deliberate close.
func reconnectable(err error) bool {
	switch websocket.CloseStatus(err) {
	case -1, websocket.StatusGoingAway, websocket.StatusAbnormalClosure:
		return true
	default:
		return false
	}
}

func closeError(err error) error {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}

	return fmt.Errorf("connection closed by server: %w", err)
}

// newBackOff yields initial, 2*initial, 4*initial... capped at max, without jitter.
func newBackOff(initial, maxDelay time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxInterval = maxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	return bo
}
