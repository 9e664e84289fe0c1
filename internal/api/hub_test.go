package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/devicehub/internal/infrastructure/config"
	"github.com/nerrad567/devicehub/internal/infrastructure/logging"
	"github.com/nerrad567/devicehub/internal/telemetry"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHub_BroadcastToChannel(t *testing.T) {
	hub := testHub(t)

	subscribed := &WSClient{hub: hub, send: make(chan []byte, wsSendBufferSize), channel: TelemetryChannel(1, "temp")}
	other := &WSClient{hub: hub, send: make(chan []byte, wsSendBufferSize), channel: TelemetryChannel(1, "humidity")}
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast(TelemetryChannel(1, "temp"), map[string]any{"value": 23.5})

	select {
	case msg := <-subscribed.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent || wsMsg.EventType != "telemetry.1.temp" {
			t.Errorf("message = %+v, want event on telemetry.1.temp", wsMsg)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}

	select {
	case <-other.send:
		t.Error("client on another channel should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{hub: hub, send: make(chan []byte, wsSendBufferSize)}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client) // second call is a no-op
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	if client.trySend([]byte("x")) {
		t.Error("trySend() = true after Unregister")
	}
	if len(hub.channels) != 0 {
		t.Errorf("channels = %v, want none left", hub.channels)
	}
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := testHub(t)
	client := &WSClient{hub: hub, send: make(chan []byte, 1), channel: TelemetryChannel(1, "temp")}
	hub.Register(client)

	hub.Broadcast(client.channel, 1)
	hub.Broadcast(client.channel, 2)

	if got := len(client.send); got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
	if hub.ClientCount() != 1 {
		t.Error("slow client should stay registered")
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{PingInterval: 30, PongTimeout: 10}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := &WSClient{hub: hub, send: make(chan []byte, 1), channel: "telemetry.1.temp"}
	hub.Register(client)
	cancel()
	<-done

	if _, open := <-client.send; open {
		t.Error("send queue still open after Run returned")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestHubSink_Deliver(t *testing.T) {
	hub := testHub(t)
	client := &WSClient{hub: hub, send: make(chan []byte, wsSendBufferSize), channel: TelemetryChannel(7, "temp")}
	hub.Register(client)

	records := []telemetry.Record{
		{Metadata: telemetry.Metadata{DeviceID: 7, Topic: "temp"}, Value: 1},
		{Metadata: telemetry.Metadata{DeviceID: 8, Topic: "temp"}, Value: 2},
		{Metadata: telemetry.Metadata{DeviceID: 7, Topic: "temp"}, Value: 3},
	}
	if err := NewHubSink(hub).Deliver(context.Background(), records); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if got := len(client.send); got != 2 {
		t.Errorf("client received %d messages, want 2", got)
	}
}

func TestTicketStore(t *testing.T) {
	ts := newTicketStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }

	ticket := ts.issue(42)
	id, ok := ts.redeem(ticket)
	if !ok || id != 42 {
		t.Fatalf("redeem() = %d, %v; want 42, true", id, ok)
	}
	if _, ok := ts.redeem(ticket); ok {
		t.Error("ticket should not be valid on second use")
	}

	expired := ts.issue(42)
	stale := ts.issue(43)
	now = now.Add(ticketTTL)
	if _, ok := ts.redeem(expired); ok {
		t.Error("expired ticket should not be valid")
	}

	ts.cleanExpired()
	if _, ok := ts.tickets[stale]; ok {
		t.Error("cleanExpired() kept an expired ticket")
	}
}

func TestStream(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)
	router := srv.buildRouter()

	token := signUp(t, router, "alice", "s3cret")
	id := addDevice(t, router, token, "thermo", "temp")

	w := do(t, router, http.MethodPost, "/auth/ws-ticket", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ws-ticket status = %d; body: %s", w.Code, w.Body.String())
	}
	ticket, _ := decode[map[string]any](t, w)["ticket"].(string) //nolint:errcheck // checked by dial

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + devicePath(id, "temp/stream?ticket="+ticket)
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // Test cleanup

	deadline := time.Now().Add(time.Second)
	for srv.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	w = do(t, router, http.MethodPost, devicePath(id, "temp"), token, `{"payload":23.5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("append status = %d; body: %s", w.Code, w.Body.String())
	}

	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type      string           `json:"type"`
		EventType string           `json:"event_type"`
		Payload   telemetry.Record `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.EventType != TelemetryChannel(id, "temp") || msg.Payload.Value != 23.5 {
		t.Errorf("message = %+v, want 23.5 on %s", msg, TelemetryChannel(id, "temp"))
	}

	// Application-level ping.
	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var pong WSMessage
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if pong.Type != WSTypePong || pong.ID != "p1" {
		t.Errorf("reply = %+v, want pong p1", pong)
	}
}

func TestStream_Rejected(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	alice := signUp(t, router, "alice", "s3cret")
	bob := signUp(t, router, "bob", "hunter2")
	id := addDevice(t, router, alice, "thermo", "temp")

	ticketFor := func(token string) string {
		w := do(t, router, http.MethodPost, "/auth/ws-ticket", token, nil)
		ticket, _ := decode[map[string]any](t, w)["ticket"].(string) //nolint:errcheck // empty fails below
		return ticket
	}

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"no ticket", devicePath(id, "temp/stream"), http.StatusUnauthorized},
		{"unknown ticket", devicePath(id, "temp/stream?ticket=bogus"), http.StatusUnauthorized},
		{"not owner", devicePath(id, "temp/stream?ticket="+ticketFor(bob)), http.StatusUnauthorized},
		{"unregistered topic", devicePath(id, "humidity/stream?ticket="+ticketFor(alice)), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, tt.path, "", nil)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"http://app.example"}, "", true},
		{"empty allow list", nil, "http://anything.example", true},
		{"wildcard", []string{"*"}, "http://anything.example", true},
		{"listed", []string{"http://app.example"}, "http://app.example", true},
		{"same origin", []string{"http://app.example"}, "http://devicehub.local:8080", true},
		{"foreign", []string{"http://app.example"}, "http://evil.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := originAllowed(config.CORSConfig{AllowedOrigins: tt.allowed})
			req := httptest.NewRequest(http.MethodGet, "http://devicehub.local:8080/devices/1/temp/stream", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := check(req); got != tt.want {
				t.Errorf("originAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}

func TestStream_ForeignOriginKeepsTicket(t *testing.T) {
	srv := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://app.example"}
	})
	router := srv.buildRouter()

	token := signUp(t, router, "alice", "s3cret")
	id := addDevice(t, router, token, "thermo", "temp")

	w := do(t, router, http.MethodPost, "/auth/ws-ticket", token, nil)
	ticket, _ := decode[map[string]any](t, w)["ticket"].(string) //nolint:errcheck // empty fails below

	req := httptest.NewRequest(http.MethodGet, devicePath(id, "temp/stream?ticket="+ticket), nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assertError(t, w, http.StatusForbidden, ErrCodeForbidden)

	if _, ok := srv.tickets.redeem(ticket); !ok {
		t.Error("ticket consumed by a rejected origin")
	}
}
