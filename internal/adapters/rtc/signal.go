package rtc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

// envelope is the JSON signaling frame exchanged with the transport endpoint.
type envelope struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

type signalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newSignalConn(conn *websocket.Conn) *signalConn {
	return &signalConn{
		conn: conn,
		send: make(chan []byte, 32),
	}
}

func (c *signalConn) TrySend(env envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal signal")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *signalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *signalConn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "rtc.signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "rtc.signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "rtc.signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *signalConn) readPump(ctx context.Context, handle func(envelope)) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				c.mu.RLock()
				closed := c.closed
				c.mu.RUnlock()
				if !closed {
					log.Warn().Err(err).Str("module", "rtc.signal").Msg("readPump read error")
				}
				return
			}
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Error().Err(err).Str("module", "rtc.signal").Msg("bad json")
				continue
			}
			handle(env)
		}
	}
}
