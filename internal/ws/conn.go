package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kudobox/kudos-backend/internal/services"
)

// Options tunes per-connection gateway behavior. The zero value is usable;
// unset fields fall back to the defaults below.
type Options struct {
	// WriteWait bounds a single outbound write.
	WriteWait time.Duration
	// PongWait is the max silence tolerated before the connection is
	// considered dead. Pings are sent at ~90% of this interval.
	PongWait time.Duration
	// MaxMessageBytes caps inbound frames (join requests are tiny).
	MaxMessageBytes int64
	// SendBuffer is the per-connection outbound queue length. When it
	// overflows the hub evicts the connection rather than block publishers.
	SendBuffer int
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 4 << 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

func (o Options) pingPeriod() time.Duration { return o.PongWait * 9 / 10 }

// Client is one live gateway connection. Its lifecycle is a small state
// machine: connected (no room) → in-room after a join-room event →
// disconnected, at which point the hub membership is released.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	opts Options

	// closed is set once the hub has released this client and closed send.
	// Guarded by hub.mu; a closed client can never rejoin.
	closed bool
}

// The gateway performs no origin or credential checks: knowledge of a
// recipient code is the only capability needed to join its room.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve returns the Gin handler for GET /ws. It upgrades the connection,
// registers the client with the hub lazily (on its first join-room event),
// and runs the read/write pumps until the peer goes away.
func Serve(hub *Hub, opts Options) gin.HandlerFunc {
	opts = opts.withDefaults()
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote an HTTP error response.
			log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, opts.SendBuffer),
			opts: opts,
		}
		wsConnections.Inc()

		go client.writePump()
		client.readPump()
	}
}

// readPump consumes inbound frames until the connection dies. The only
// client-initiated event is join-room; anything else is ignored. Exiting the
// loop releases hub membership, which in turn stops the write pump.
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		_ = c.conn.Close()
		wsConnections.Dec()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		var evt Event
		if err := c.conn.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		if evt.Event != EventJoinRoom {
			continue
		}
		code, err := services.NormalizeCode(evt.Code)
		if err != nil {
			continue
		}
		c.hub.Join(c, code)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
// It exits when the hub closes the send channel (leave, eviction, shutdown)
// or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
