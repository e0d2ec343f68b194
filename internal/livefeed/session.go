package livefeed

import (
	"context"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/volleystats/parser/internal/platform/logging"
)

type ackResult struct {
	response []byte
	err      error
}

// session owns one established connection: the read loop, the server
// ping/pong exchange and the pending ack table. It never reconnects; the
// client replaces a dead session wholesale.
type session struct {
	conn        *websocket.Conn
	logger      *logging.Logger
	idleTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan ackResult
	nextAck uint64

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newSession(conn *websocket.Conn, hello serverHello, logger *logging.Logger) *session {
	// The server pings every PingInterval and allows PingTimeout for the
	// pong; silence beyond both means the connection is gone.
	idle := time.Duration(hello.PingInterval+hello.PingTimeout) * time.Millisecond
	if idle <= 0 {
		idle = time.Minute
	}
	return &session{
		conn:        conn,
		logger:      logger,
		idleTimeout: idle,
		pending:     make(map[uint64]chan ackResult),
		done:        make(chan struct{}),
	}
}

// call emits one correlated event and waits for its single ack. The caller
// bounds the wait through ctx; a dropped connection fails the call.
func (s *session) call(ctx context.Context, args ...any) ([]byte, error) {
	s.mu.Lock()
	s.nextAck++
	id := s.nextAck
	ch := make(chan ackResult, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	frame, err := encodeEvent(id, args...)
	if err != nil {
		s.discard(id)
		return nil, err
	}
	if err := s.write(frame); err != nil {
		s.discard(id)
		return nil, crerr.Wrap(err, "send live feed event")
	}

	select {
	case <-ctx.Done():
		s.discard(id)
		return nil, ctx.Err()
	case <-s.done:
		return nil, crerr.Wrap(s.Err(), "connection dropped")
	case res := <-ch:
		return res.response, res.err
	}
}

func (s *session) write(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *session) readLoop() {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(crerr.Wrap(err, "read live feed"))
			return
		}
		if len(frame) == 0 {
			continue
		}

		switch frame[0] {
		case enginePing:
			if err := s.write(pongFrame); err != nil {
				s.fail(crerr.Wrap(err, "send pong"))
				return
			}
		case engineClose:
			s.fail(crerr.New("server closed the session"))
			return
		case engineMessage:
			if len(frame) < 2 {
				continue
			}
			switch frame[1] {
			case socketAck:
				s.dispatchAck(frame[2:])
			case socketDisconnect:
				s.fail(crerr.New("server disconnected the namespace"))
				return
			case socketConnectError:
				s.fail(crerr.Newf("namespace error: %s", frame[2:]))
				return
			}
		}
	}
}

func (s *session) dispatchAck(payload []byte) {
	id, raw, ok := parseAck(payload)
	if !ok {
		s.logger.Warn("malformed ack frame", "payload", string(payload))
		return
	}

	s.mu.Lock()
	ch, found := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if !found {
		// Ack for a call that already timed out.
		return
	}

	callErr, response, err := ackArgs(raw)
	switch {
	case err != nil:
		ch <- ackResult{err: err}
	case callErr != nil:
		ch <- ackResult{err: crerr.Newf("live feed call failed: %s", callErr)}
	default:
		ch <- ackResult{response: response}
	}
}

func (s *session) discard(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// fail closes the session once, failing every pending call with err.
func (s *session) fail(err error) {
	s.closeOnce.Do(func() {
		s.closeErr = err
		_ = s.conn.Close()

		s.mu.Lock()
		pending := s.pending
		s.pending = make(map[uint64]chan ackResult)
		s.mu.Unlock()
		for _, ch := range pending {
			ch <- ackResult{err: err}
		}

		close(s.done)
	})
}

// Err reports why the session ended, nil while it is alive.
func (s *session) Err() error {
	select {
	case <-s.done:
		return s.closeErr
	default:
		return nil
	}
}
