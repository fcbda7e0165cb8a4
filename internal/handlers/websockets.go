package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms
)

// Envelope types pushed to the dashboard.
const (
	wsTypeReading  = "reading"
	wsTypeAutoScan = "autoscan"
	wsTypeStatus   = "status"
	wsTypeHistory  = "history"
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return h.originAllowed(r.Header.Get("Origin"))
		},
	}
}

// wsConnect streams the dashboard: the reading on every tick, auto-scan
// state from the scanner's countdown, status events and history views as
// they happen.
// ?date=YYYY-MM-DD pins the history view to one day.
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)
	date := strings.TrimSpace(c.Query("date"))

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	status := h.services.Scanner.WatchStatus(ctx)
	auto := h.services.Scanner.WatchAuto(ctx)
	changes := h.services.Notifications.Changes(ctx)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	if err := h.sendSnapshot(conn, date); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		var err error
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
			continue
		case <-ticker.C:
			err = h.sendTick(conn)
		case st, ok := <-auto:
			if !ok {
				return
			}
			err = h.write(conn, wsEnvelope{Type: wsTypeAutoScan, Data: st})
		case ev, ok := <-status:
			if !ok {
				return
			}
			err = h.write(conn, wsEnvelope{Type: wsTypeStatus, Data: ev})
		case _, ok := <-changes:
			if !ok {
				return
			}
			err = h.sendHistory(conn, date)
		}
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_write_failed", "err", err)
			}
			return
		}
	}
}

// Helper: parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	interval := defaultInterval

	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return interval
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

func (h *Handler) sendSnapshot(conn *websocket.Conn, date string) error {
	if err := h.sendTick(conn); err != nil {
		return err
	}
	return h.sendHistory(conn, date)
}

// sendTick writes the current reading. A missing reading is reported in the
// envelope, not treated as a connection error.
func (h *Handler) sendTick(conn *websocket.Conn) error {
	env := wsEnvelope{Type: wsTypeReading}
	if r, err := h.services.Readings.GetCurrent(); err != nil {
		env.Error = err.Error()
	} else {
		env.Data = r
	}
	return h.write(conn, env)
}

func (h *Handler) sendHistory(conn *websocket.Conn, date string) error {
	env := wsEnvelope{Type: wsTypeHistory}
	if view, err := h.services.Notifications.View(date); err != nil {
		env.Error = err.Error()
	} else {
		env.Data = view
	}
	return h.write(conn, env)
}

func (h *Handler) write(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
