package chat

import "sync"

// UnreadTracker counts unseen messages per conversation. The focused
// conversation never accumulates: its counter is pinned at zero.
type UnreadTracker struct {
	mu      sync.Mutex
	counts  map[int64]int
	focused func() (int64, bool) // read at processing time, never cached
}

func NewUnreadTracker(focused func() (int64, bool)) *UnreadTracker {
	return &UnreadTracker{
		counts:  map[int64]int{},
		focused: focused,
	}
}

// OnEvent bumps the counter for chatID unless it is focused right now.
func (u *UnreadTracker) OnEvent(chatID int64) {
	if id, ok := u.focused(); ok && id == chatID {
		return
	}
	u.mu.Lock()
	u.counts[chatID]++
	u.mu.Unlock()
}

// OnSelect zeroes the counter the instant a conversation gains focus,
// regardless of events still in flight.
func (u *UnreadTracker) OnSelect(chatID int64) {
	u.mu.Lock()
	delete(u.counts, chatID)
	u.mu.Unlock()
}

func (u *UnreadTracker) Count(chatID int64) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[chatID]
}

// Counts returns a copy of all non-zero counters.
func (u *UnreadTracker) Counts() map[int64]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[int64]int, len(u.counts))
	for id, n := range u.counts {
		out[id] = n
	}
	return out
}

// Drop forgets the counter for chatID entirely.
func (u *UnreadTracker) Drop(chatID int64) {
	u.mu.Lock()
	delete(u.counts, chatID)
	u.mu.Unlock()
}
