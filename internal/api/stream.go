package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/devicehub/internal/infrastructure/config"
)

func newUpgrader(cfg config.CORSConfig) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originAllowed(cfg),
	}
}

// originAllowed accepts requests without an Origin header, same-origin
// requests, and origins in the CORS allow list. An empty list allows all.
func originAllowed(cfg config.CORSConfig) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	_, wildcard := allowed["*"]
	allowAll := len(allowed) == 0 || wildcard

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// handleStream opens a live feed of one device topic. Browsers cannot
// set headers on a WebSocket, so the caller trades its bearer token for a
// single-use ticket (POST /auth/ws-ticket) and passes it as ?ticket=.
// The ticket's account must own the device and the topic must be
// registered.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.upgrader.CheckOrigin(r) {
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "origin not allowed")
		return
	}

	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	owner, ok := s.tickets.redeem(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	id, topic, ok := s.streamTarget(w, r, owner)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "device_id", id, "error", err)
		return
	}

	c := &WSClient{
		hub:       s.hub,
		conn:      conn,
		channel:   TelemetryChannel(id, topic),
		accountID: owner,
		send:      make(chan []byte, wsSendBufferSize),
	}
	s.hub.Register(c)

	go c.writeLoop()
	go c.readLoop()
}

func (c *WSClient) timeouts() (ping, pong time.Duration) {
	cfg := c.hub.cfg
	return time.Duration(cfg.PingInterval) * time.Second, time.Duration(cfg.PongTimeout) * time.Second
}

// readLoop handles inbound frames until the peer goes away, then
// unregisters the client.
func (c *WSClient) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	ping, pong := c.timeouts()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ping + pong)) }

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read failed", "channel", c.channel, "error", err)
			}
			return
		}
		extend() //nolint:errcheck // as above
		c.reply(data)
	}
}

// writeLoop drains the send queue and keeps the connection alive with
// protocol pings. It exits when the queue is closed or a write fails.
func (c *WSClient) writeLoop() {
	ping, pong := c.timeouts()
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(pong)) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// reply answers an inbound frame. Streams are one-way, so the only
// request understood is an application-level ping.
func (c *WSClient) reply(data []byte) {
	var in WSMessage
	out := WSMessage{Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}

	switch err := json.Unmarshal(data, &in); {
	case err != nil:
		out.Type, out.Payload = WSTypeError, map[string]string{"message": "invalid JSON message"}
	case in.Type == WSTypePing:
		out.Type, out.ID = WSTypePong, in.ID
	default:
		out.Type, out.ID = WSTypeError, in.ID
		out.Payload = map[string]string{"message": "unknown message type: " + in.Type}
	}

	if b, err := json.Marshal(out); err == nil {
		c.trySend(b)
	}
}
