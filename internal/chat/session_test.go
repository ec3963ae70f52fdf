package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-chat-client.git/internal/chat"
)

func newTestSession(t *testing.T, fetcher *stubFetcher) (*chat.Session, *stubHandoff) {
	t.Helper()
	handoff := &stubHandoff{}
	return chat.NewSession("alice", fetcher, handoff, zap.NewNop()), handoff
}

func TestEventForFocusedChatAppendsToLog(t *testing.T) {
	fetcher := &stubFetcher{history: map[int64][]chat.Message{8: {}}}
	session, _ := newTestSession(t, fetcher)

	require.NoError(t, session.Select(context.Background(), 8))
	session.HandleLiveEvent(chat.LiveEvent{ChatID: 8, FromUser: "bob", Text: "hi"})

	history := session.Messages().History(8)
	require.Len(t, history, 1)
	require.Equal(t, "hi", history[0].Text)
	require.Zero(t, session.Unread().Count(8))
}

func TestEventForUnfocusedChatBumpsUnread(t *testing.T) {
	fetcher := &stubFetcher{history: map[int64][]chat.Message{8: {}}}
	session, _ := newTestSession(t, fetcher)

	require.NoError(t, session.Select(context.Background(), 8))
	session.HandleLiveEvent(chat.LiveEvent{ChatID: 9, FromUser: "bob", Text: "hi"})

	require.Empty(t, session.Messages().History(9))
	require.Equal(t, 1, session.Unread().Count(9))
}

func TestEventWithNoFocusBumpsUnread(t *testing.T) {
	session, _ := newTestSession(t, &stubFetcher{})

	session.HandleLiveEvent(chat.LiveEvent{ChatID: 4, FromUser: "bob", Text: "hi"})

	require.Equal(t, 1, session.Unread().Count(4))
}

func TestOwnEchoFoldsToSelf(t *testing.T) {
	fetcher := &stubFetcher{history: map[int64][]chat.Message{8: {}}}
	session, _ := newTestSession(t, fetcher)

	require.NoError(t, session.Select(context.Background(), 8))
	session.HandleLiveEvent(chat.LiveEvent{ChatID: 8, FromUser: "alice", Text: "mine"})

	history := session.Messages().History(8)
	require.Len(t, history, 1)
	require.Equal(t, chat.SenderSelf, history[0].Sender)
}

func TestEventTriggersRosterRefresh(t *testing.T) {
	fetcher := &stubFetcher{}
	session, _ := newTestSession(t, fetcher)

	session.HandleLiveEvent(chat.LiveEvent{ChatID: 1, FromUser: "bob", Text: "hi"})

	require.Eventually(t, func() bool {
		return fetcher.rosterCallCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventHookRunsAfterRouting(t *testing.T) {
	session, _ := newTestSession(t, &stubFetcher{})

	var mu sync.Mutex
	var seen []chat.LiveEvent
	session.SetEventHook(func(ev chat.LiveEvent) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})

	session.HandleLiveEvent(chat.LiveEvent{ChatID: 2, FromUser: "bob", Text: "hi"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	require.Equal(t, int64(2), seen[0].ChatID)
}

func TestSendRejectsBlankText(t *testing.T) {
	session, _ := newTestSession(t, &stubFetcher{})

	require.False(t, session.Send(1, "   "))
	require.False(t, session.Send(1, ""))
}

func TestActivateRosterViewConsumesHandoff(t *testing.T) {
	fetcher := &stubFetcher{
		conversations: []chat.Conversation{{ID: 3, IsGroup: true, Name: "team"}},
		history:       map[int64][]chat.Message{3: {}},
	}
	session, handoff := newTestSession(t, fetcher)
	require.NoError(t, handoff.SetRefreshOwed())
	require.NoError(t, handoff.SetAutoSelect(3))

	view, err := session.ActivateRosterView(context.Background())
	require.NoError(t, err)
	require.True(t, view.HasSelected)
	require.Equal(t, int64(3), view.Selected)
	require.Len(t, view.Conversations, 1)

	id, ok := session.Focused()
	require.True(t, ok)
	require.Equal(t, int64(3), id)

	// both flags are consumed, not merely read
	require.False(t, handoff.refreshOwedNow())
	_, has := handoff.autoSelectNow()
	require.False(t, has)
}

func TestActivateRosterViewIgnoresUnknownAutoSelect(t *testing.T) {
	fetcher := &stubFetcher{
		conversations: []chat.Conversation{{ID: 3, IsGroup: true, Name: "team"}},
	}
	session, handoff := newTestSession(t, fetcher)
	require.NoError(t, handoff.SetAutoSelect(99))

	view, err := session.ActivateRosterView(context.Background())
	require.NoError(t, err)
	require.False(t, view.HasSelected)
	_, ok := session.Focused()
	require.False(t, ok)

	// the flag is still spent even when the target is missing
	_, has := handoff.autoSelectNow()
	require.False(t, has)
}

func TestActivateRosterViewDegradesOnRefreshFailure(t *testing.T) {
	fetcher := &stubFetcher{rosterErr: context.DeadlineExceeded}
	session, _ := newTestSession(t, fetcher)

	view, err := session.ActivateRosterView(context.Background())
	require.Error(t, err)
	require.Empty(t, view.Conversations)
}

func TestForgetRemovesEveryTrace(t *testing.T) {
	fetcher := &stubFetcher{
		conversations: []chat.Conversation{{ID: 5, IsGroup: true, Name: "g"}},
		history:       map[int64][]chat.Message{5: {{ChatID: 5, Sender: "bob", Text: "x"}}},
	}
	session, _ := newTestSession(t, fetcher)
	require.NoError(t, session.Roster().Refresh(context.Background()))
	require.NoError(t, session.Select(context.Background(), 5))

	session.Forget(5)

	_, focused := session.Focused()
	require.False(t, focused)
	require.False(t, session.Roster().Has(5))
	require.False(t, session.Messages().Loaded(5))
	require.Zero(t, session.Unread().Count(5))
}
