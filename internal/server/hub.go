package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// Event is one message pushed to every connected page.
type Event struct {
	Type     string `json:"type"`
	State    string `json:"state,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
	Detail   string `json:"detail,omitempty"`
	ResultID string `json:"resultId,omitempty"`
}

// Hub fans session events out to websocket subscribers.
// Slow subscribers are dropped instead of blocking the session.
type Hub struct {
	log zerolog.Logger

	mu      sync.Mutex
	clients map[*subscriber]struct{}
}

type subscriber struct {
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{log: logger, clients: map[*subscriber]struct{}{}}
}

// Broadcast delivers ev to every subscriber without blocking.
func (h *Hub) Broadcast(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", ev.Type).Msg("can't marshal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.clients {
		select {
		case s.send <- msg:
		default:
			h.log.Warn().Msg("dropping slow event subscriber")
			delete(h.clients, s)
			s.close()
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add() *subscriber {
	s := &subscriber{send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.clients[s]; ok {
		delete(h.clients, s)
		s.close()
	}
	h.mu.Unlock()
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

// Subscribe upgrades the request and streams events until the page disconnects or ctx ends.
func (h *Hub) Subscribe(ctx context.Context) echo.HandlerFunc {
	return func(c echo.Context) error {
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			h.log.Error().Err(err).Msg("websocket upgrade failed")
			return err
		}
		defer ws.Close()

		s := h.add()
		defer h.remove(s)
		h.log.Debug().Int("subscribers", h.Len()).Msg("event subscriber connected")

		closed := readUntilClosed(ws, h.log)
		for {
			select {
			case <-ctx.Done():
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeTimeout))
				return nil
			case <-closed:
				return nil
			case msg, ok := <-s.send:
				if !ok {
					return nil
				}
				_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.log.Warn().Err(err).Msg("event write failed")
					return nil
				}
			}
		}
	}
}

// readUntilClosed drains incoming frames so close and ping frames are processed.
func readUntilClosed(ws *websocket.Conn, logger zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					errors.Is(err, net.ErrClosed) {
					logger.Debug().Msg("event subscriber closed")
					return
				}
				logger.Debug().Err(err).Msg("event subscriber read ended")
				return
			}
		}
	}()
	return done
}
