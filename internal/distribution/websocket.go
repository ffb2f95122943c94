package distribution

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	errs "vigil-siem/internal/errors"
	"vigil-siem/internal/schema"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// capabilityHeader carries the caller's pre-validated capability flags,
// comma-separated. Authentication and flag issuance happen in the edge
// proxy in front of this process.
const capabilityHeader = "X-Vigil-Capabilities"

// Server exposes hub subscriptions over WebSocket. One connection maps
// to one subscription; the connection closes when the subscription is
// disconnected for overflow or when the client goes away.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewServer creates the WebSocket subscription server.
func NewServer(hub *Hub) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			// Non-browser analyst tooling connects without an Origin
			// header; browsers go through the edge proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving GET /subscribe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/subscribe", s.handleSubscribe)
	return mux
}

// handleSubscribe upgrades the connection and streams matching items.
//
// Query parameters: topic (required) plus the optional filter variables
// severities, min_severity, min_score, vendors, addresses, techniques,
// case_id, analyst_id. List parameters are comma-separated.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := Topic(r.URL.Query().Get("topic"))
	if !ValidTopic(topic) {
		http.Error(w, "unknown topic", http.StatusBadRequest)
		return
	}

	scope := parseScope(r.Header.Get(capabilityHeader))
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		http.Error(w, errs.SafeMessage(err), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub, err := s.hub.Subscribe(topic, scope, filter)
	if err != nil {
		_ = conn.Close()
		return
	}

	slog.Info("websocket subscriber connected",
		"subscription_id", sub.ID,
		"topic", topic,
		"remote", r.RemoteAddr,
	)

	go s.writePump(conn, sub)
	go s.readPump(conn, sub)
}

// writePump streams envelopes from the subscription mailbox to the
// connection and keeps it alive with pings.
func (s *Server) writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.Close()
		_ = conn.Close()
	}()

	for {
		select {
		case <-sub.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription closed"))
			return

		case env := <-sub.Items():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				slog.Debug("websocket write failed", "subscription_id", sub.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and closes the subscription when the
// client disconnects.
func (s *Server) readPump(conn *websocket.Conn, sub *Subscription) {
	defer func() {
		sub.Close()
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket closed unexpectedly", "subscription_id", sub.ID, "error", err)
			}
			return
		}
	}
}

func parseScope(header string) Scope {
	scope := make(Scope)
	for _, c := range strings.Split(header, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			scope[Capability(c)] = true
		}
	}
	return scope
}

func parseFilter(q map[string][]string) (Filter, error) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}
	getList := func(key string) []string {
		raw := get(key)
		if raw == "" {
			return nil
		}
		var out []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}

	f := Filter{
		Severities: getList("severities"),
		Vendors:    getList("vendors"),
		Addresses:  getList("addresses"),
		Techniques: getList("techniques"),
		CaseID:     get("case_id"),
		AnalystID:  get("analyst_id"),
	}

	if raw := get("min_score"); raw != "" {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil || score < 0 || score > 1 {
			return Filter{}, fmt.Errorf("min_score must be a number in [0,1]")
		}
		f.MinScore = score
	}

	if raw := get("min_severity"); raw != "" {
		sev := schema.Severity(raw)
		if !sev.IsValid() {
			return Filter{}, fmt.Errorf("min_severity must be a known severity")
		}
		f.MinSeverity = sev
	}

	return f, nil
}
