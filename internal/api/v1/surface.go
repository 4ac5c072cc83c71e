package v1

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/events"
	"github.com/vmunix/andrate/internal/metrics"
	"github.com/vmunix/andrate/internal/query"
	"github.com/vmunix/andrate/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Message types sent by the client.
const (
	MessageInput  = "input"
	MessageClear  = "clear"
	MessageKind   = "kind"
	MessagePage   = "page"
	MessageFilter = "filter"
	MessagePing   = "ping"
)

// Message types sent by the server.
const (
	MessageSnapshot = "snapshot"
	MessageError    = "error"
	MessagePong     = "pong"
)

// ClientMessage is one event from a surface client.
type ClientMessage struct {
	Type      string  `json:"type"`
	Text      string  `json:"text,omitempty"`
	Kind      string  `json:"kind,omitempty"`
	Page      int     `json:"page,omitempty"`
	MinRating float64 `json:"min_rating,omitempty"`
	SortBy    string  `json:"sort_by,omitempty"`
}

// ServerMessage is pushed to a surface client.
type ServerMessage struct {
	Type      string          `json:"type"`
	SurfaceID string          `json:"surface_id"`
	Snapshot  *query.Snapshot `json:"snapshot,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// surfaceConn is one live search surface: a WebSocket connection driving
// its own query coordinator.
type surfaceConn struct {
	id    string
	conn  *websocket.Conn
	coord *query.Coordinator
	send  chan ServerMessage
	log   *slog.Logger
}

// surface upgrades to a WebSocket and runs a search surface until the client
// goes away or the server shuts down.
func (s *Server) surface(w http.ResponseWriter, r *http.Request) {
	kind, err := query.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	log := s.log.With("surface_id", id)
	sc := &surfaceConn{
		id:    id,
		conn:  conn,
		coord: query.New(s.deps.Sources, s.deps.surfaceConfig(kind), log),
		send:  make(chan ServerMessage, 16),
		log:   log,
	}

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	userID := session.UserID(r.Context())
	start := time.Now()
	s.publish(r.Context(), &events.SurfaceOpened{
		Header:    events.Stamp(events.EventSurfaceOpened, events.EntitySurface, userID),
		SurfaceID: id,
		UserID:    userID,
		Kind:      string(kind),
	})
	log.Info("surface opened", "kind", kind, "user_id", userID)

	ctx, cancel := context.WithCancel(r.Context())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = sc.coord.Run(ctx)
	}()
	go sc.readPump(cancel)
	sc.writePump(ctx)

	cancel()
	_ = conn.Close()
	<-runDone

	fanOuts := sc.coord.FanOuts()
	s.publish(context.WithoutCancel(r.Context()), &events.SurfaceClosed{
		Header:     events.Stamp(events.EventSurfaceClosed, events.EntitySurface, userID),
		SurfaceID:  id,
		Queries:    int(fanOuts),
		DurationMS: time.Since(start).Milliseconds(),
	})
	log.Info("surface closed", "fan_outs", fanOuts, "duration_ms", time.Since(start).Milliseconds())
}

func (s *Server) publish(ctx context.Context, e events.Event) {
	if s.deps.Bus == nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, e); err != nil {
		s.log.Warn("publish failed", "type", e.EventType(), "error", err)
	}
}

// readPump turns client messages into coordinator events. It cancels the
// surface when the connection fails.
func (c *surfaceConn) readPump(cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error("failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("unexpected websocket close", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(ServerMessage{Type: MessageError, Error: "malformed message: " + err.Error()})
			continue
		}
		if err := c.dispatch(msg); err != nil {
			if errors.Is(err, query.ErrStopped) {
				return
			}
			c.reply(ServerMessage{Type: MessageError, Error: err.Error()})
		}
	}
}

func (c *surfaceConn) dispatch(msg ClientMessage) error {
	switch msg.Type {
	case MessageInput:
		return c.coord.Input(msg.Text)
	case MessageClear:
		return c.coord.Clear()
	case MessageKind:
		kind, err := query.ParseKind(msg.Kind)
		if err != nil {
			return err
		}
		return c.coord.SetKind(kind)
	case MessagePage:
		if msg.Page < 1 {
			return errors.New("page must be at least 1")
		}
		return c.coord.SetPage(msg.Page)
	case MessageFilter:
		if msg.MinRating < 0 || msg.MinRating > 10 {
			return errors.New("min_rating must be between 0 and 10")
		}
		sortBy, err := catalog.ParseSortKey(msg.SortBy)
		if err != nil {
			return err
		}
		return c.coord.SetFilter(catalog.FilterSort{MinRating: msg.MinRating, SortBy: sortBy})
	case MessagePing:
		c.reply(ServerMessage{Type: MessagePong})
		return nil
	}
	return fmt.Errorf("unknown message type %q", msg.Type)
}

// reply queues a message for the write pump, dropping it if the queue is full.
func (c *surfaceConn) reply(msg ServerMessage) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("send queue full, dropping message", "type", msg.Type)
	}
}

// writePump is the only writer on the connection. It pushes snapshots as the
// coordinator publishes them and keeps the connection alive with pings.
func (c *surfaceConn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case snap := <-c.coord.Updates():
			if err := c.write(ServerMessage{Type: MessageSnapshot, Snapshot: &snap}); err != nil {
				c.log.Debug("snapshot write failed", "error", err)
				return
			}

		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.log.Debug("message write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *surfaceConn) write(msg ServerMessage) error {
	msg.SurfaceID = c.id
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
