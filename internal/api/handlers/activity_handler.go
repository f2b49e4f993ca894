package handlers

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/counseldesk/gateway/pkg/logger"
)

// Event is one entry on the activity feed: a question answered, a
// document ingested, or the log going stale.
type Event struct {
	Type   string    `json:"type"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// ActivityHub broadcasts gateway events to connected websocket clients.
// Slow consumers drop events rather than blocking publishers.
type ActivityHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan Event
}

func NewActivityHub() *ActivityHub {
	return &ActivityHub{conns: make(map[*websocket.Conn]chan Event)}
}

// Publish satisfies the gateway and staleness Notifier interfaces.
func (h *ActivityHub) Publish(eventType, detail string) {
	event := Event{Type: eventType, Detail: detail, At: time.Now().UTC()}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.conns {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *ActivityHub) HandleConnection(c *websocket.Conn) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.conns[c] = ch
	h.mu.Unlock()

	logger.Info("Activity feed client connected")

	defer func() {
		h.mu.Lock()
		delete(h.conns, c)
		h.mu.Unlock()
		c.Close()
		logger.Info("Activity feed client disconnected")
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-ch:
			if err := c.WriteJSON(event); err != nil {
				logger.Debug("Activity feed write failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
