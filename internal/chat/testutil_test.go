package chat_test

import (
	"context"
	"sync"

	"github.com/pelusa-v/pelusa-chat-client.git/internal/chat"
)

// stubFetcher answers pulls immediately from canned data.
type stubFetcher struct {
	mu            sync.Mutex
	conversations []chat.Conversation
	rosterErr     error
	rosterCalls   int
	history       map[int64][]chat.Message
	historyErr    error
	historyCalls  int
}

func (f *stubFetcher) FetchConversations(ctx context.Context) ([]chat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosterCalls++
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return append([]chat.Conversation(nil), f.conversations...), nil
}

func (f *stubFetcher) FetchHistory(ctx context.Context, chatID int64) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]chat.Message(nil), f.history[chatID]...), nil
}

func (f *stubFetcher) rosterCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rosterCalls
}

// stubHandoff is an in-memory HandoffStore.
type stubHandoff struct {
	mu          sync.Mutex
	refreshOwed bool
	autoSelect  int64
	hasSelect   bool
}

func (h *stubHandoff) SetRefreshOwed() error {
	h.mu.Lock()
	h.refreshOwed = true
	h.mu.Unlock()
	return nil
}

func (h *stubHandoff) ConsumeRefreshOwed() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	owed := h.refreshOwed
	h.refreshOwed = false
	return owed, nil
}

func (h *stubHandoff) SetAutoSelect(chatID int64) error {
	h.mu.Lock()
	h.autoSelect, h.hasSelect = chatID, true
	h.mu.Unlock()
	return nil
}

func (h *stubHandoff) ConsumeAutoSelect() (int64, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.autoSelect, h.hasSelect
	h.autoSelect, h.hasSelect = 0, false
	return id, ok, nil
}

func (h *stubHandoff) refreshOwedNow() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshOwed
}

func (h *stubHandoff) autoSelectNow() (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.autoSelect, h.hasSelect
}
