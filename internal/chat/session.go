package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// refreshTimeout bounds the background roster refreshes triggered by
// live events.
const refreshTimeout = 10 * time.Second

// Fetcher is the pull surface the session consumes.
type Fetcher interface {
	RosterFetcher
	HistoryFetcher
}

// HandoffStore carries the read-then-clear flags that must survive a
// view reload: an owed roster refresh and a conversation to auto-select.
type HandoffStore interface {
	SetRefreshOwed() error
	ConsumeRefreshOwed() (bool, error)
	SetAutoSelect(chatID int64) error
	ConsumeAutoSelect() (int64, bool, error)
}

// Session owns the whole conversation state for one logged-in user:
// roster, per-chat logs, unread counters, focus, and the live channel.
// All mutation goes through contract methods; nothing reaches into the
// component maps directly.
type Session struct {
	mu       sync.RWMutex
	user     string
	focus    int64
	hasFocus bool
	hook     func(LiveEvent)

	roster  *Roster
	msgs    *MessageStore
	unread  *UnreadTracker
	live    *LiveChannel
	handoff HandoffStore
	log     *zap.Logger
}

func NewSession(user string, fetcher Fetcher, handoff HandoffStore, log *zap.Logger) *Session {
	s := &Session{
		user:    user,
		handoff: handoff,
		log:     log,
	}
	s.roster = NewRoster(fetcher, log)
	s.msgs = NewMessageStore(fetcher, s.User, log)
	s.unread = NewUnreadTracker(s.Focused)
	s.live = NewLiveChannel(s, log)
	return s
}

func (s *Session) User() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser records the username after a successful login.
func (s *Session) SetUser(name string) {
	s.mu.Lock()
	s.user = name
	s.mu.Unlock()
}

func (s *Session) Roster() *Roster { return s.roster }

func (s *Session) Messages() *MessageStore { return s.msgs }

func (s *Session) Unread() *UnreadTracker { return s.unread }

func (s *Session) Live() *LiveChannel { return s.live }

// SetEventHook registers a fan-out for inbound events, e.g. the local
// view relay. Called after the event has been routed.
func (s *Session) SetEventHook(hook func(LiveEvent)) {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
}

// Focused returns the focused conversation, if any. At most one
// conversation is focused at a time.
func (s *Session) Focused() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focus, s.hasFocus
}

// Select focuses a conversation: its unread counter drops to zero
// immediately, then its log is (re)loaded.
func (s *Session) Select(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	s.focus, s.hasFocus = chatID, true
	s.mu.Unlock()
	s.unread.OnSelect(chatID)
	return s.msgs.Load(ctx, chatID)
}

// ClearFocus drops focus without selecting anything else.
func (s *Session) ClearFocus() {
	s.mu.Lock()
	s.focus, s.hasFocus = 0, false
	s.mu.Unlock()
}

// Send hands one message to the live channel. Nothing is appended
// locally: the server echoes the message back on the push channel and
// the echo lands it in the log, so the sender never sees a duplicate.
// Reports whether the frame went out.
func (s *Session) Send(chatID int64, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	return s.live.SendLiveMessage(chatID, s.User(), text)
}

// HandleLiveEvent routes one inbound push frame. The roster refreshes in
// the background regardless (the event may be the first sign of a
// brand-new conversation or a renaming membership change); completion of
// that refresh does not gate message routing. Focus is read here, at
// processing time: the event lands in the focused log or bumps the
// unread counter for its conversation.
func (s *Session) HandleLiveEvent(ev LiveEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		_ = s.roster.Refresh(ctx)
	}()

	if id, ok := s.Focused(); ok && id == ev.ChatID {
		s.msgs.Append(ev.ChatID, ev.Message(s.User()))
	} else {
		s.unread.OnEvent(ev.ChatID)
	}

	s.mu.RLock()
	hook := s.hook
	s.mu.RUnlock()
	if hook != nil {
		hook(ev)
	}
}

// RosterView is what a roster-bearing surface renders on activation.
type RosterView struct {
	Conversations []Conversation `json:"chats"`
	Unread        map[int64]int  `json:"unread"`
	Selected      int64          `json:"selected,omitempty"`
	HasSelected   bool           `json:"has_selected"`
}

// ActivateRosterView runs when a roster-bearing view becomes visible:
// it consumes any owed-refresh flag, refreshes the cache, and consumes a
// pending auto-select handoff, selecting that conversation when the
// roster contains it. A refresh failure still yields a view (empty
// state) alongside the error.
func (s *Session) ActivateRosterView(ctx context.Context) (RosterView, error) {
	if _, err := s.handoff.ConsumeRefreshOwed(); err != nil {
		s.log.Warn("consume refresh flag failed", zap.Error(err))
	}

	refreshErr := s.roster.Refresh(ctx)

	view := RosterView{
		Conversations: s.roster.List(),
		Unread:        s.unread.Counts(),
	}

	id, ok, err := s.handoff.ConsumeAutoSelect()
	if err != nil {
		s.log.Warn("consume auto-select failed", zap.Error(err))
	} else if ok && s.roster.Has(id) {
		if serr := s.Select(ctx, id); serr != nil {
			s.log.Warn("auto-select load failed", zap.Int64("chat_id", id), zap.Error(serr))
		}
		view.Selected, view.HasSelected = id, true
	}

	return view, refreshErr
}

// Forget removes every trace of a conversation after leaving it: roster
// entry, message log, unread counter, and focus when it pointed there.
func (s *Session) Forget(chatID int64) {
	if id, ok := s.Focused(); ok && id == chatID {
		s.ClearFocus()
	}
	s.roster.Remove(chatID)
	s.msgs.Drop(chatID)
	s.unread.Drop(chatID)
}
