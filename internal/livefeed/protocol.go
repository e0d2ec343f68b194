package livefeed

import (
	"encoding/json"
	"strconv"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
)

// Engine.io v4 framing over a single websocket: one leading byte selects the
// packet type, socket.io packets ride inside message packets with their own
// leading type byte and optional ack id.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'

	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketAck          = '3'
	socketConnectError = '4'
)

// serverHello is the engine.io open payload. Intervals are milliseconds.
type serverHello struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

func parseHello(payload []byte) (serverHello, error) {
	var hello serverHello
	if err := sonic.Unmarshal(payload, &hello); err != nil {
		return serverHello{}, crerr.Wrap(err, "decode engine.io handshake")
	}
	return hello, nil
}

var (
	connectFrame = []byte{engineMessage, socketConnect}
	pongFrame    = []byte{enginePong}
)

// encodeEvent builds a socket.io event frame with an ack id:
// 42<ack>["<event>",...args].
func encodeEvent(ackID uint64, args ...any) ([]byte, error) {
	body, err := sonic.Marshal(args)
	if err != nil {
		return nil, crerr.Wrap(err, "encode event args")
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_ = buf.WriteByte(engineMessage)
	_ = buf.WriteByte(socketEvent)
	_, _ = buf.WriteString(strconv.FormatUint(ackID, 10))
	_, _ = buf.Write(body)

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// parseAck splits a socket.io ack payload ("<ack>[...]", after the 43
// prefix) into the ack id and the raw args array.
func parseAck(payload []byte) (uint64, []byte, bool) {
	i := 0
	for i < len(payload) && payload[i] >= '0' && payload[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(payload) || payload[i] != '[' {
		return 0, nil, false
	}
	id, err := strconv.ParseUint(string(payload[:i]), 10, 64)
	if err != nil {
		return 0, nil, false
	}
	return id, payload[i:], true
}

// ackArgs decodes the feathers-style ack arguments [error, response].
// A null first element means success.
func ackArgs(raw []byte) (callErr []byte, response []byte, err error) {
	var args []json.RawMessage
	if err := sonic.Unmarshal(raw, &args); err != nil {
		return nil, nil, crerr.Wrap(err, "decode ack args")
	}
	if len(args) > 0 && string(args[0]) != "null" {
		callErr = args[0]
	}
	if len(args) > 1 {
		response = args[1]
	}
	return callErr, response, nil
}
