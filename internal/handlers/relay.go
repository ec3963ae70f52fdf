package handlers

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-chat-client.git/internal/chat"
)

// MessageSender is the outbound path a view writes into.
type MessageSender interface {
	Send(chatID int64, text string) bool
}

// viewConn is one open view surface subscribed to live updates.
type viewConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// LiveRelay forwards inbound live events to whichever local views are
// open, and carries view-originated sends back to the session. Views
// come and go; the upstream connection stays with the session.
type LiveRelay struct {
	mu     sync.RWMutex
	views  map[string]*viewConn
	sender MessageSender
	log    *zap.Logger
}

func NewLiveRelay(sender MessageSender, log *zap.Logger) *LiveRelay {
	return &LiveRelay{
		views:  map[string]*viewConn{},
		sender: sender,
		log:    log,
	}
}

// Notify fans one event out to all open views. Slow views drop frames
// rather than block the ingest path.
func (r *LiveRelay) Notify(ev chat.LiveEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.views {
		select {
		case v.send <- data:
		default:
		}
	}
}

// Serve registers the view connection and pumps it until it closes.
func (r *LiveRelay) Serve(conn *websocket.Conn) {
	v := &viewConn{id: uuid.NewString(), conn: conn, send: make(chan []byte, 16)}
	r.mu.Lock()
	r.views[v.id] = v
	r.mu.Unlock()
	r.log.Debug("view attached", zap.String("view_id", v.id))

	done := make(chan struct{})
	go func() {
		for {
			select {
			case data := <-v.send:
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var req struct {
			ChatID int64  `json:"chat_id"`
			Text   string `json:"msg"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		r.sender.Send(req.ChatID, req.Text)
	}

	close(done)
	r.mu.Lock()
	delete(r.views, v.id)
	r.mu.Unlock()
	r.log.Debug("view detached", zap.String("view_id", v.id))
}
