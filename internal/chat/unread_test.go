package chat_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/pelusa-chat-client.git/internal/chat"
)

type focusProbe struct {
	id  int64
	set bool
}

func (f *focusProbe) focused() (int64, bool) { return f.id, f.set }

func TestUnreadCountsEventsForUnfocusedChats(t *testing.T) {
	focus := &focusProbe{}
	tracker := chat.NewUnreadTracker(focus.focused)

	tracker.OnEvent(1)
	tracker.OnEvent(1)
	tracker.OnEvent(2)

	require.Equal(t, 2, tracker.Count(1))
	require.Equal(t, 1, tracker.Count(2))
	require.Equal(t, map[int64]int{1: 2, 2: 1}, tracker.Counts())
}

func TestUnreadPinnedAtZeroWhileFocused(t *testing.T) {
	focus := &focusProbe{id: 1, set: true}
	tracker := chat.NewUnreadTracker(focus.focused)

	tracker.OnEvent(1)
	tracker.OnEvent(2)

	require.Zero(t, tracker.Count(1))
	require.Equal(t, 1, tracker.Count(2))
}

func TestUnreadFocusReadAtEventTime(t *testing.T) {
	focus := &focusProbe{}
	tracker := chat.NewUnreadTracker(focus.focused)

	tracker.OnEvent(3)
	require.Equal(t, 1, tracker.Count(3))

	focus.id, focus.set = 3, true
	tracker.OnSelect(3)
	tracker.OnEvent(3)
	require.Zero(t, tracker.Count(3))

	// focus moves away, counting resumes
	focus.id = 4
	tracker.OnEvent(3)
	require.Equal(t, 1, tracker.Count(3))
}

func TestUnreadSelectClearsImmediately(t *testing.T) {
	focus := &focusProbe{}
	tracker := chat.NewUnreadTracker(focus.focused)

	tracker.OnEvent(5)
	tracker.OnEvent(5)
	tracker.OnSelect(5)

	require.Zero(t, tracker.Count(5))
	require.Empty(t, tracker.Counts())
}

func TestUnreadDrop(t *testing.T) {
	focus := &focusProbe{}
	tracker := chat.NewUnreadTracker(focus.focused)

	tracker.OnEvent(6)
	tracker.Drop(6)
	require.Zero(t, tracker.Count(6))
}
