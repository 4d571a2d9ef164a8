// Package ws implements the realtime side of the application: a room
// registry (Hub) that maps recipient codes to live subscriber connections,
// and the WebSocket gateway that feeds it.
//
// The Hub is the single process-wide owner of room membership. It is created
// empty at startup, injected explicitly into the HTTP layer and the ingress
// service (no package-level singleton), and torn down on shutdown by closing
// every remaining connection.
//
// Delivery semantics:
//   - Publish reaches every connection subscribed to the code at publish
//     time, exactly once each. There is no queue for absent subscribers;
//     they re-fetch history on reconnect.
//   - A subscriber whose send buffer is full is evicted (its connection is
//     closed). The fault is logged and never reaches the publisher or the
//     remaining subscribers.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/kudobox/kudos-backend/internal/domain"
)

var (
	// wsConnections gauges currently open gateway connections.
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Current number of active websocket connections.",
	})

	// wsRooms gauges rooms with at least one subscriber.
	wsRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_rooms",
		Help: "Current number of rooms with at least one live subscriber.",
	})

	// publishedTotal counts compliments handed to the hub for delivery.
	publishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compliments_published_total",
		Help: "Total number of compliments published to the hub.",
	})

	// deliveredTotal counts per-subscriber deliveries.
	deliveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compliments_deliveries_total",
		Help: "Total per-subscriber delivery attempts by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(wsConnections, wsRooms, publishedTotal, deliveredTotal)
}

// Event is the wire envelope for both directions of the gateway protocol.
// Clients send {"event":"join-room","code":"..."}; the server pushes
// {"event":"new-compliment","compliment":{...}}.
type Event struct {
	Event      string             `json:"event"`
	Code       string             `json:"code,omitempty"`
	Compliment *domain.Compliment `json:"compliment,omitempty"`
}

// Gateway event names.
const (
	EventJoinRoom      = "join-room"
	EventNewCompliment = "new-compliment"
)

// Hub tracks which live connections are subscribed to which recipient code.
// A connection is a member of at most one room at any instant; joining a new
// room replaces the previous membership. The Hub holds weak references only:
// connection lifecycle belongs to the gateway, which calls Leave on
// disconnect.
//
// All methods are safe for concurrent use.
type Hub struct {
	mu sync.RWMutex
	// rooms maps a recipient code to its current subscriber set.
	rooms map[string]map[*Client]struct{}
	// members maps a connection to the room it currently occupies.
	members map[*Client]string
	closed  bool
}

// NewHub returns an empty Hub ready for use.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		members: make(map[*Client]string),
	}
}

// Join subscribes c to the room for code. If c was subscribed to a different
// room, that membership is replaced (last join wins). Joining after Shutdown
// is a no-op, as is joining a client whose send channel the hub has already
// closed (left or evicted): its readPump may still be draining queued frames
// while the connection dies, and re-registering it would let a later Publish
// send on the closed channel.
func (h *Hub) Join(c *Client, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || c.closed {
		return
	}

	if prev, ok := h.members[c]; ok {
		if prev == code {
			return
		}
		h.detachLocked(c, prev)
	}

	room := h.rooms[code]
	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[code] = room
		wsRooms.Inc()
	}
	room[c] = struct{}{}
	h.members[c] = code
}

// Leave removes all memberships for c and closes its send channel. It is
// called by the gateway on disconnect and by Publish when evicting a slow
// subscriber; calling it more than once is harmless.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

func (h *Hub) leaveLocked(c *Client) {
	code, ok := h.members[c]
	if !ok {
		return
	}
	delete(h.members, c)
	h.detachLocked(c, code)
	c.closed = true
	close(c.send)
}

// detachLocked removes c from the room for code, dropping the room when it
// empties. Callers hold h.mu.
func (h *Hub) detachLocked(c *Client, code string) {
	room := h.rooms[code]
	if room == nil {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, code)
		wsRooms.Dec()
	}
}

// Publish delivers compliment to every connection currently subscribed to
// code and returns the number of successful deliveries. Publishing to a code
// with zero subscribers is a no-op. A subscriber that cannot accept the event
// (full send buffer) is evicted; the fault is logged and does not abort
// delivery to the rest of the room.
func (h *Hub) Publish(code string, compliment *domain.Compliment) int {
	publishedTotal.Inc()

	payload, err := json.Marshal(Event{Event: EventNewCompliment, Compliment: compliment})
	if err != nil {
		log.Error().Err(err).Str("code", code).Msg("marshal new-compliment event")
		return 0
	}

	// Sends happen under the read lock: Leave closes a send channel only
	// while holding the write lock, so a send can never race a close. The
	// sends are non-blocking, keeping the critical section short.
	h.mu.RLock()
	delivered := 0
	var evicted []*Client
	for c := range h.rooms[code] {
		select {
		case c.send <- payload:
			delivered++
			deliveredTotal.WithLabelValues("ok").Inc()
		default:
			deliveredTotal.WithLabelValues("evicted").Inc()
			evicted = append(evicted, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range evicted {
		log.Warn().Str("code", code).Msg("slow subscriber evicted during publish")
		h.Leave(c)
	}
	return delivered
}

// Occupancy returns the number of live subscribers in the room for code.
func (h *Hub) Occupancy(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// Shutdown closes every remaining connection and rejects further joins.
// It is called once during process teardown.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.members {
		h.leaveLocked(c)
	}
}
