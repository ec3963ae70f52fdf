package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-chat-client.git/internal/chat"
)

// gatedHistory blocks each FetchHistory call until the test releases
// it, so response arrival order can be controlled.
type gatedHistory struct {
	calls chan *historyCall
}

type historyCall struct {
	chatID  int64
	release chan struct{}
	result  []chat.Message
	err     error
}

func newGatedHistory() *gatedHistory {
	return &gatedHistory{calls: make(chan *historyCall, 8)}
}

func (g *gatedHistory) FetchHistory(ctx context.Context, chatID int64) ([]chat.Message, error) {
	call := &historyCall{chatID: chatID, release: make(chan struct{})}
	g.calls <- call
	<-call.release
	return call.result, call.err
}

func (g *gatedHistory) waitForCall(t *testing.T) *historyCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for history fetch")
		return nil
	}
}

func (c *historyCall) respond(result []chat.Message, err error) {
	c.result, c.err = result, err
	close(c.release)
}

func selfIs(name string) func() string {
	return func() string { return name }
}

func TestLoadLastCallWins(t *testing.T) {
	fetcher := newGatedHistory()
	store := chat.NewMessageStore(fetcher, selfIs("alice"), zap.NewNop())

	done1 := make(chan error, 1)
	go func() { done1 <- store.Load(context.Background(), 5) }()
	first := fetcher.waitForCall(t)

	done2 := make(chan error, 1)
	go func() { done2 <- store.Load(context.Background(), 5) }()
	second := fetcher.waitForCall(t)

	// second load resolves first
	second.respond([]chat.Message{{ChatID: 5, Sender: "bob", Text: "new"}}, nil)
	require.NoError(t, <-done2)

	// the stale first response arrives afterwards and must be discarded
	first.respond([]chat.Message{{ChatID: 5, Sender: "bob", Text: "old"}}, nil)
	require.NoError(t, <-done1)

	history := store.History(5)
	require.Len(t, history, 1)
	require.Equal(t, "new", history[0].Text)
}

func TestLoadStaleFailureDoesNotClobber(t *testing.T) {
	fetcher := newGatedHistory()
	store := chat.NewMessageStore(fetcher, selfIs("alice"), zap.NewNop())

	done1 := make(chan error, 1)
	go func() { done1 <- store.Load(context.Background(), 7) }()
	first := fetcher.waitForCall(t)

	done2 := make(chan error, 1)
	go func() { done2 <- store.Load(context.Background(), 7) }()
	second := fetcher.waitForCall(t)

	second.respond([]chat.Message{{ChatID: 7, Sender: "bob", Text: "kept"}}, nil)
	require.NoError(t, <-done2)

	first.respond(nil, errors.New("boom"))
	require.NoError(t, <-done1, "stale failures must be silent")

	history := store.History(7)
	require.Len(t, history, 1)
	require.Equal(t, "kept", history[0].Text)
}

func TestLoadsForDifferentChatsDoNotInterfere(t *testing.T) {
	fetcher := newGatedHistory()
	store := chat.NewMessageStore(fetcher, selfIs("alice"), zap.NewNop())

	done1 := make(chan error, 1)
	go func() { done1 <- store.Load(context.Background(), 1) }()
	first := fetcher.waitForCall(t)

	done2 := make(chan error, 1)
	go func() { done2 <- store.Load(context.Background(), 2) }()
	second := fetcher.waitForCall(t)

	first.respond([]chat.Message{{ChatID: 1, Sender: "bob", Text: "one"}}, nil)
	second.respond([]chat.Message{{ChatID: 2, Sender: "carl", Text: "two"}}, nil)
	require.NoError(t, <-done1)
	require.NoError(t, <-done2)

	require.Equal(t, "one", store.History(1)[0].Text)
	require.Equal(t, "two", store.History(2)[0].Text)
}

func TestLoadMapsOwnMessagesToSelf(t *testing.T) {
	fetcher := &stubFetcher{history: map[int64][]chat.Message{
		4: {
			{ChatID: 4, Sender: "alice", Text: "mine"},
			{ChatID: 4, Sender: "bob", Text: "theirs"},
		},
	}}
	store := chat.NewMessageStore(fetcher, selfIs("alice"), zap.NewNop())

	require.NoError(t, store.Load(context.Background(), 4))
	history := store.History(4)
	require.Len(t, history, 2)
	require.Equal(t, chat.SenderSelf, history[0].Sender)
	require.Equal(t, "bob", history[1].Sender)
}

func TestAppendDroppedWhenNotLoaded(t *testing.T) {
	store := chat.NewMessageStore(&stubFetcher{}, selfIs("alice"), zap.NewNop())

	store.Append(9, chat.Message{ChatID: 9, Sender: "bob", Text: "hi"})
	require.False(t, store.Loaded(9))
	require.Empty(t, store.History(9))
}

func TestAppendLandsOnLoadedLog(t *testing.T) {
	fetcher := &stubFetcher{history: map[int64][]chat.Message{3: {}}}
	store := chat.NewMessageStore(fetcher, selfIs("alice"), zap.NewNop())

	require.NoError(t, store.Load(context.Background(), 3))
	store.Append(3, chat.Message{ChatID: 3, Sender: "bob", Text: "hi"})

	history := store.History(3)
	require.Len(t, history, 1)
	require.Equal(t, "hi", history[0].Text)
}

func TestLoadFailureDegradesToEmpty(t *testing.T) {
	fetcher := &stubFetcher{historyErr: errors.New("server down")}
	store := chat.NewMessageStore(fetcher, selfIs("alice"), zap.NewNop())

	err := store.Load(context.Background(), 6)
	require.Error(t, err)
	require.True(t, store.Loaded(6))
	require.Empty(t, store.History(6))
}

func TestDropForgetsLog(t *testing.T) {
	fetcher := &stubFetcher{history: map[int64][]chat.Message{2: {{ChatID: 2, Sender: "bob", Text: "x"}}}}
	store := chat.NewMessageStore(fetcher, selfIs("alice"), zap.NewNop())

	require.NoError(t, store.Load(context.Background(), 2))
	store.Drop(2)
	require.False(t, store.Loaded(2))
	require.Empty(t, store.History(2))
}
