package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// HistoryFetcher is the pull side of a conversation log.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, chatID int64) ([]Message, error)
}

// MessageStore keeps the per-conversation message logs. Logs are
// replaced wholesale by Load and keep server order; live appends land at
// the tail. Overlapping loads for the same conversation are
// generation-tagged so only the most recently issued one may land.
type MessageStore struct {
	mu      sync.RWMutex
	logs    map[int64][]Message
	gens    map[int64]uint64 // latest issued load generation per chat
	fetcher HistoryFetcher
	self    func() string
	log     *zap.Logger
}

// NewMessageStore builds a store. self reports the current username so
// own messages in fetched history collapse to SenderSelf.
func NewMessageStore(fetcher HistoryFetcher, self func() string, log *zap.Logger) *MessageStore {
	return &MessageStore{
		logs:    map[int64][]Message{},
		gens:    map[int64]uint64{},
		fetcher: fetcher,
		self:    self,
		log:     log,
	}
}

// Load pulls the full history for chatID, replacing any prior log. A
// load superseded by a newer Load for the same chat is discarded on
// arrival and never surfaced, success or failure alike. A pull failure
// on the current generation degrades the log to empty.
func (s *MessageStore) Load(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	s.gens[chatID]++
	gen := s.gens[chatID]
	s.mu.Unlock()

	history, err := s.fetcher.FetchHistory(ctx, chatID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gens[chatID] {
		// superseded while in flight
		s.log.Debug("stale history load discarded",
			zap.Int64("chat_id", chatID),
			zap.Uint64("generation", gen))
		return nil
	}
	if err != nil {
		s.logs[chatID] = []Message{}
		return fmt.Errorf("load history for chat %d: %w", chatID, err)
	}

	user := s.self()
	replaced := make([]Message, len(history))
	for i, m := range history {
		if user != "" && m.Sender == user {
			m.Sender = SenderSelf
		}
		m.ChatID = chatID
		replaced[i] = m
	}
	s.logs[chatID] = replaced
	return nil
}

// Append adds to the tail of a loaded log. Events for conversations
// whose log is not loaded are dropped; the next Load picks them up.
func (s *MessageStore) Append(chatID int64, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.logs[chatID]
	if !ok {
		return
	}
	s.logs[chatID] = append(entries, msg)
}

// Loaded reports whether a log exists for chatID.
func (s *MessageStore) Loaded(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.logs[chatID]
	return ok
}

// History returns a copy of the log for chatID, empty if not loaded.
func (s *MessageStore) History(chatID int64) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.logs[chatID]...)
}

// Drop discards the log and generation state for chatID.
func (s *MessageStore) Drop(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, chatID)
	delete(s.gens, chatID)
}
