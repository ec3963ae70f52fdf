package chat

import (
	"encoding/json"
	"sync"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

// ConnState tracks the push-channel lifecycle.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ConnLike abstracts the websocket connection so tests can stub it.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// EventSink consumes inbound live events.
type EventSink interface {
	HandleLiveEvent(ev LiveEvent)
}

// LiveChannel is the session's single duplex push connection. It only
// defines behavior while connected; dialing and reconnection belong to
// the transport collaborator, which hands connections in via Attach.
type LiveChannel struct {
	mu    sync.Mutex
	state ConnState
	conn  ConnLike
	send  chan []byte
	sink  EventSink
	log   *zap.Logger
}

func NewLiveChannel(sink EventSink, log *zap.Logger) *LiveChannel {
	return &LiveChannel{sink: sink, log: log}
}

func (l *LiveChannel) State() ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Connecting marks a dial in progress.
func (l *LiveChannel) Connecting() {
	l.mu.Lock()
	l.state = Connecting
	l.mu.Unlock()
}

// Attach binds a freshly dialed connection and moves to Connected. The
// caller runs the pumps:
//
//	go l.WritePump()
//	l.ReadPump()
func (l *LiveChannel) Attach(conn ConnLike) {
	l.mu.Lock()
	l.conn = conn
	l.send = make(chan []byte, 16)
	l.state = Connected
	l.mu.Unlock()
}

// Detach closes the connection, drops the send queue, and returns to
// Disconnected. Safe to call when nothing is attached.
func (l *LiveChannel) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	if l.send != nil {
		close(l.send)
		l.send = nil
	}
	l.state = Disconnected
}

// ReadPump consumes inbound frames until the connection dies, handing
// each parsed event to the sink. Frames that do not parse as LiveEvent
// are skipped.
func (l *LiveChannel) ReadPump() {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			l.log.Debug("live channel read ended", zap.Error(err))
			l.Detach()
			return
		}
		var ev LiveEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		l.sink.HandleLiveEvent(ev)
	}
}

// WritePump drains the send queue onto the connection until Detach
// closes the queue.
func (l *LiveChannel) WritePump() {
	l.mu.Lock()
	send := l.send
	conn := l.conn
	l.mu.Unlock()
	if send == nil || conn == nil {
		return
	}
	for data := range send {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// SendLiveMessage serializes one outbound message onto the channel.
// Unless the channel is connected the send is dropped outright: no
// queueing, no retry. Reports whether the frame was handed off.
func (l *LiveChannel) SendLiveMessage(chatID int64, fromUser, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Connected || l.send == nil {
		return false
	}
	data, err := json.Marshal(OutboundMessage{
		ChatID:   chatID,
		FromUser: fromUser,
		Text:     text,
	})
	if err != nil {
		return false
	}
	select {
	case l.send <- data:
		return true
	default:
		l.log.Warn("live send queue full, message dropped", zap.Int64("chat_id", chatID))
		return false
	}
}
