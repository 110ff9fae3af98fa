package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"secrets_app/internal/models"
	"secrets_app/internal/service"

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
	wsBacklog        = 50
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// The stream rides on the session cookie, so only same-origin pages may
// open it.
var upgrader = websocket.Upgrader{
	CheckOrigin: sameOrigin,
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func (h *Handler) wsConnect(c *gin.Context) {
	user, _ := currentUser(c)
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	ticker := time.NewTicker(interval)
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(h.root, cancel)
	defer stop()

	cur := &eventCursor{userID: user.ID, seen: map[string]struct{}{}}
	if err := h.sendEvents(ctx, conn, cur, wsBacklog); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			if h.root.Err() != nil {
				closeStream(conn, websocket.CloseGoingAway, "server shutting down")
			}
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-ticker.C:
			if !h.sessions.Active(ctx, c.Request, user.ID) {
				if h.log != nil {
					h.log.Infow("ws_session_ended", "user_id", user.ID)
				}
				closeStream(conn, websocket.ClosePolicyViolation, "session ended")
				return
			}
			if err := h.sendEvents(ctx, conn, cur, 0); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// closeStream sends a close frame; the connection is closed by the caller.
func closeStream(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
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

// eventCursor tracks what a stream already delivered. Events sharing the
// newest timestamp are remembered by id so that the inclusive lower bound
// never replays them.
type eventCursor struct {
	userID int
	since  time.Time
	seen   map[string]struct{}
}

// sendEvents writes events newer than the cursor. Nothing is written when
// there is nothing new, except for the initial backlog frame.
func (h *Handler) sendEvents(ctx context.Context, conn *websocket.Conn, cur *eventCursor, limit int) error {
	events, err := h.services.EventLog.List(ctx, service.LogFilter{
		From:   cur.since,
		UserID: cur.userID,
		Limit:  limit,
	})
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_list_events_failed", "err", err)
		}
		return err
	}

	fresh := make([]models.AuthEvent, 0, len(events))
	for _, e := range events {
		if _, dup := cur.seen[e.EventID]; dup {
			continue
		}
		fresh = append(fresh, e)
		if e.OccurredAt.After(cur.since) {
			cur.since = e.OccurredAt
			clear(cur.seen)
		}
		cur.seen[e.EventID] = struct{}{}
	}
	if len(fresh) == 0 && limit == 0 {
		return nil
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: "events", Data: fresh})
}
