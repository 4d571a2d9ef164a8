package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/kudobox/kudos-backend/internal/domain"
)

func newGatewayServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", Serve(hub, Options{}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialGateway(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func joinRoom(t *testing.T, conn *websocket.Conn, code string) {
	t.Helper()
	if err := conn.WriteJSON(Event{Event: EventJoinRoom, Code: code}); err != nil {
		t.Fatalf("send join-room: %v", err)
	}
}

func waitOccupancy(t *testing.T, hub *Hub, code string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Occupancy(code) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %q occupancy never reached %d (got %d)", code, want, hub.Occupancy(code))
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		t.Fatalf("unmarshal %q: %v", payload, err)
	}
	return evt
}

func TestGateway_JoinThenReceivePublishedCompliment(t *testing.T) {
	hub := NewHub()
	srv := newGatewayServer(t, hub)

	conn := dialGateway(t, srv)
	joinRoom(t, conn, "hello1")
	waitOccupancy(t, hub, "HELLO1", 1)

	compliment := &domain.Compliment{
		ID:            "abc",
		RecipientCode: "HELLO1",
		Message:       "you rock",
		CreatedAt:     time.Now().UTC(),
	}
	if got := hub.Publish("HELLO1", compliment); got != 1 {
		t.Fatalf("delivered = %d; want 1", got)
	}

	evt := readEvent(t, conn)
	if evt.Event != EventNewCompliment {
		t.Fatalf("event = %q; want %q", evt.Event, EventNewCompliment)
	}
	if evt.Compliment == nil || evt.Compliment.ID != "abc" || evt.Compliment.Message != "you rock" {
		t.Fatalf("compliment = %+v", evt.Compliment)
	}
}

func TestGateway_OtherRoomReceivesNothing(t *testing.T) {
	hub := NewHub()
	srv := newGatewayServer(t, hub)

	member := dialGateway(t, srv)
	joinRoom(t, member, "HELLO1")
	bystander := dialGateway(t, srv)
	joinRoom(t, bystander, "OTHER2")
	waitOccupancy(t, hub, "HELLO1", 1)
	waitOccupancy(t, hub, "OTHER2", 1)

	hub.Publish("HELLO1", &domain.Compliment{ID: "x", RecipientCode: "HELLO1", Message: "hi"})

	if evt := readEvent(t, member); evt.Compliment == nil || evt.Compliment.ID != "x" {
		t.Fatalf("member event = %+v", evt)
	}
	_ = bystander.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, payload, err := bystander.ReadMessage(); err == nil {
		t.Fatalf("bystander received %s", payload)
	}
}

func TestGateway_MalformedAndUnknownEventsAreIgnored(t *testing.T) {
	hub := NewHub()
	srv := newGatewayServer(t, hub)
	conn := dialGateway(t, srv)

	if err := conn.WriteJSON(Event{Event: "make-coffee"}); err != nil {
		t.Fatalf("send unknown event: %v", err)
	}
	if err := conn.WriteJSON(Event{Event: EventJoinRoom, Code: "   "}); err != nil {
		t.Fatalf("send blank join: %v", err)
	}
	// A valid join afterwards proves the connection survived.
	joinRoom(t, conn, "HELLO1")
	waitOccupancy(t, hub, "HELLO1", 1)
}

func TestGateway_DisconnectReleasesMembership(t *testing.T) {
	hub := NewHub()
	srv := newGatewayServer(t, hub)

	conn := dialGateway(t, srv)
	joinRoom(t, conn, "HELLO1")
	waitOccupancy(t, hub, "HELLO1", 1)

	_ = conn.Close()
	waitOccupancy(t, hub, "HELLO1", 0)
}

func TestGateway_LastJoinWinsAcrossWire(t *testing.T) {
	hub := NewHub()
	srv := newGatewayServer(t, hub)

	conn := dialGateway(t, srv)
	joinRoom(t, conn, "HELLO1")
	waitOccupancy(t, hub, "HELLO1", 1)
	joinRoom(t, conn, "OTHER2")
	waitOccupancy(t, hub, "OTHER2", 1)
	waitOccupancy(t, hub, "HELLO1", 0)

	hub.Publish("OTHER2", &domain.Compliment{ID: "y", RecipientCode: "OTHER2", Message: "moved"})
	if evt := readEvent(t, conn); evt.Compliment == nil || evt.Compliment.Message != "moved" {
		t.Fatalf("event after room switch = %+v", evt)
	}
}
