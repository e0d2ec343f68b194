package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	crerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/volleystats/parser/internal/domain/live"
	"github.com/volleystats/parser/internal/platform/logging"
	"github.com/volleystats/parser/internal/platform/resilience"
)

// State is the connection lifecycle of the live client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

var ErrClosed = crerr.New("live feed client is closed")

const (
	connectKey           = "live-connection"
	playByPlayService    = "widget/play-by-play"
	defaultFeedURL       = "wss://api.widgets.volleystation.com"
	defaultFeedPath      = "/socket.io/"
	defaultFeedOrigin    = "https://widgets.volleystation.com"
	defaultRequestWait   = 30 * time.Second
	defaultHandshakeWait = 10 * time.Second
	reconnectBaseDelay   = 2 * time.Second
)

type Config struct {
	URL    string
	Path   string
	Token  string
	Origin string
	// RequestTimeout bounds one find exchange so a stalled server response
	// cannot hang a caller indefinitely.
	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	Logger           *logging.Logger
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = defaultFeedURL
	}
	if c.Path == "" {
		c.Path = defaultFeedPath
	}
	if c.Origin == "" {
		c.Origin = defaultFeedOrigin
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestWait
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = defaultHandshakeWait
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	return c
}

// Client holds the single physical live-feed connection for the process.
// Connect attempts are memoized: concurrent callers share one in-flight
// handshake instead of opening duplicate sockets. A dropped connection is
// redialed in the background with unbounded exponential backoff; calls in
// flight on the old connection fail rather than being replayed.
type Client struct {
	cfg      Config
	logger   *logging.Logger
	validate *validator.Validate
	dialer   *websocket.Dialer
	flight   resilience.SingleFlight[*session]
	state    atomic.Int32

	mu           sync.Mutex
	current      *session
	closed       bool
	reconnecting bool
	stop         chan struct{}
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:      cfg,
		logger:   cfg.Logger,
		validate: validator.New(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		stop: make(chan struct{}),
	}
}

// State reports the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Connect warms the connection. Failure is not fatal: the first request
// redials on demand.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.session(ctx)
	return err
}

// Close tears down the connection and fails pending calls.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.stop)
	sess := c.current
	c.mu.Unlock()

	c.flight.Forget(connectKey)
	if sess != nil {
		sess.fail(ErrClosed)
	}
	c.state.Store(int32(StateDisconnected))
	return nil
}

type findQuery struct {
	MatchID int `json:"matchId"`
	Limit   int `json:"$limit"`
}

// MatchSnapshot requests the latest play-by-play document for one match.
// Returns (nil, nil) when the feed confirms the match has no data; any
// transport or server error fails the call without internal retry.
func (c *Client) MatchSnapshot(ctx context.Context, matchID int) (*live.MatchDetail, error) {
	if matchID <= 0 {
		return nil, crerr.Newf("match id must be positive, got %d", matchID)
	}

	sess, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp, err := sess.call(callCtx, "find", playByPlayService, findQuery{MatchID: matchID, Limit: 1})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := sonic.Unmarshal(resp, &envelope); err != nil {
		return nil, crerr.Wrap(err, "decode find response")
	}
	if len(envelope.Data) == 0 {
		return nil, nil
	}

	detail, err := live.Decode(envelope.Data[0])
	if err != nil {
		return nil, err
	}
	if err := c.validate.Struct(detail); err != nil {
		return nil, crerr.Wrapf(err, "validate match detail match_id=%d", matchID)
	}
	return detail, nil
}

// session returns the live session, dialing when disconnected. The dial is
// shared across concurrent callers and pinned until the connection drops.
func (c *Client) session(ctx context.Context) (*session, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	sess, err, _ := c.flight.DoKeep(connectKey, func() (*session, error) {
		return c.dial()
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return sess, nil
}

func (c *Client) dial() (*session, error) {
	c.state.Store(int32(StateConnecting))

	endpoint, err := c.endpoint()
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return nil, err
	}

	header := http.Header{}
	header.Set("Origin", c.cfg.Origin)
	header.Set("Referer", c.cfg.Origin)

	dialCtx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, endpoint, header)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return nil, crerr.Wrap(err, "dial live feed")
	}

	hello, err := c.handshake(conn)
	if err != nil {
		_ = conn.Close()
		c.state.Store(int32(StateDisconnected))
		return nil, err
	}

	sess := newSession(conn, hello, c.logger)
	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()
	c.state.Store(int32(StateConnected))
	c.logger.Info("live feed connected", "sid", hello.SID)

	go sess.readLoop()
	go c.watch(sess)
	return sess, nil
}

// handshake completes the engine.io open and socket.io namespace connect.
func (c *Client) handshake(conn *websocket.Conn) (serverHello, error) {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	_ = conn.SetReadDeadline(deadline)

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return serverHello{}, crerr.Wrap(err, "read engine.io open")
	}
	if len(frame) == 0 || frame[0] != engineOpen {
		return serverHello{}, crerr.Newf("unexpected engine.io frame %q", frame)
	}
	hello, err := parseHello(frame[1:])
	if err != nil {
		return serverHello{}, err
	}

	if err := conn.WriteMessage(websocket.TextMessage, connectFrame); err != nil {
		return serverHello{}, crerr.Wrap(err, "send namespace connect")
	}

	// The server may interleave pings before the connect ack.
	for {
		_, frame, err = conn.ReadMessage()
		if err != nil {
			return serverHello{}, crerr.Wrap(err, "read namespace connect ack")
		}
		if len(frame) == 0 {
			continue
		}
		if frame[0] == enginePing {
			if err := conn.WriteMessage(websocket.TextMessage, pongFrame); err != nil {
				return serverHello{}, crerr.Wrap(err, "send pong")
			}
			continue
		}
		if len(frame) >= 2 && frame[0] == engineMessage {
			switch frame[1] {
			case socketConnect:
				return hello, nil
			case socketConnectError:
				return serverHello{}, crerr.Newf("namespace connect rejected: %s", frame[2:])
			}
		}
	}
}

// watch redials after the session dies, unless the client was closed.
func (c *Client) watch(sess *session) {
	<-sess.done

	c.flight.Forget(connectKey)
	c.state.Store(int32(StateDisconnected))

	c.mu.Lock()
	if c.current == sess {
		c.current = nil
	}
	if c.closed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	c.logger.Warn("live feed disconnected", "error", sess.Err())
	go c.reconnect()
}

func (c *Client) reconnect() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectBaseDelay
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if _, err := c.session(context.Background()); err == nil {
			c.logger.Info("live feed reconnected")
			return
		} else if crerr.Is(err, ErrClosed) {
			return
		} else {
			delay := bo.NextBackOff()
			c.logger.Warn("live feed reconnect failed", "error", err, "retry_in", delay)
			select {
			case <-c.stop:
				return
			case <-time.After(delay):
			}
		}
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", crerr.Wrap(err, "parse live feed url")
	}
	u.Path = c.cfg.Path
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	if c.cfg.Token != "" {
		q.Set("token", c.cfg.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
