package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kudobox/kudos-backend/internal/config"
	"github.com/kudobox/kudos-backend/internal/domain"
	"github.com/kudobox/kudos-backend/internal/repo"
	"github.com/kudobox/kudos-backend/internal/ws"
)

func testConfig() config.Config {
	return config.Config{
		Port:            "8080",
		GinMode:         gin.TestMode,
		APIBasePath:     "/api",
		MaxMessageRunes: 2000,
		RateRPS:         1000,
		RateBurst:       1000,
		IdempotencyTTL:  24 * time.Hour,
		OTEL:            config.OTELConfig{ServiceName: "kudos-backend-test"},
	}
}

func newTestApp(t *testing.T) (*gin.Engine, *ws.Hub, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	hub := ws.NewHub()
	r := gin.New()
	RegisterRoutes(r, db, hub, testConfig())
	return r, hub, db
}

func serveJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r, _, _ := newTestApp(t)
	w := serveJSON(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	r, _, _ := newTestApp(t)
	w := serveJSON(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("prometheus exposition missing expected series")
	}
}

func TestRouter_FallbackEnvelopes(t *testing.T) {
	r, _, _ := newTestApp(t)

	w := serveJSON(r, http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, w.Body.String())
	}
	if body["code"] != "not_found" {
		t.Fatalf("code = %v", body["code"])
	}

	w = serveJSON(r, http.MethodDelete, "/api/compliments", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	r, _, _ := newTestApp(t)
	w := serveJSON(r, http.MethodGet, "/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("X-Request-ID missing")
	}
}

func TestRouter_SubmitAndHistoryRoundTrip(t *testing.T) {
	r, _, _ := newTestApp(t)

	post := serveJSON(r, http.MethodPost, "/api/compliments",
		`{"recipientCode":"hello1","message":"you are great"}`)
	if post.Code != http.StatusCreated {
		t.Fatalf("post status = %d body=%s", post.Code, post.Body.String())
	}
	var created domain.Compliment
	if err := json.Unmarshal(post.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	get := serveJSON(r, http.MethodGet, "/api/compliments/HELLO1", "")
	if get.Code != http.StatusOK {
		t.Fatalf("get status = %d", get.Code)
	}
	var resp struct {
		Compliments []domain.Compliment `json:"compliments"`
	}
	if err := json.Unmarshal(get.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(resp.Compliments) != 1 || resp.Compliments[0].ID != created.ID {
		t.Fatalf("history = %+v", resp.Compliments)
	}
}

func TestRouter_LiveDeliveryOverWebsocket(t *testing.T) {
	r, hub, _ := newTestApp(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(ws.Event{Event: ws.EventJoinRoom, Code: "HELLO1"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.Occupancy("HELLO1") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("join never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(srv.URL+"/api/compliments", "application/json",
		strings.NewReader(`{"recipientCode":"HELLO1","message":"live!"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post status = %d", resp.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt ws.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.Event != ws.EventNewCompliment || evt.Compliment == nil || evt.Compliment.Message != "live!" {
		t.Fatalf("event = %+v", evt)
	}
}
