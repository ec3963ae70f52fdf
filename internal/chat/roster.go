package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// RosterFetcher is the pull side of the conversation list.
type RosterFetcher interface {
	FetchConversations(ctx context.Context) ([]Conversation, error)
}

// Roster caches the conversation list and is the single source of truth
// for display names. Readers never observe a partially replaced list.
type Roster struct {
	mu      sync.RWMutex
	byID    map[int64]Conversation
	fetcher RosterFetcher
	log     *zap.Logger
}

func NewRoster(fetcher RosterFetcher, log *zap.Logger) *Roster {
	return &Roster{
		byID:    map[int64]Conversation{},
		fetcher: fetcher,
		log:     log,
	}
}

// Refresh pulls the full conversation list and swaps it in wholesale.
// On pull failure the cache is cleared and the error is returned as a
// non-fatal condition: the caller shows an empty state and may retry.
func (r *Roster) Refresh(ctx context.Context) error {
	convos, err := r.fetcher.FetchConversations(ctx)
	if err != nil {
		r.mu.Lock()
		r.byID = map[int64]Conversation{}
		r.mu.Unlock()
		r.log.Warn("roster refresh failed", zap.Error(err))
		return fmt.Errorf("refresh roster: %w", err)
	}

	next := make(map[int64]Conversation, len(convos))
	for _, c := range convos {
		if c.Kind() == KindDirect {
			// direct chats are titled after the other participant
			if len(c.Participants) > 0 {
				c.Name = c.Participants[0]
			} else if c.Name == "" {
				c.Name = "No name"
			}
		}
		next[c.ID] = c
	}

	r.mu.Lock()
	r.byID = next
	r.mu.Unlock()
	return nil
}

func (r *Roster) Get(id int64) (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

func (r *Roster) Has(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// List returns a copy of the cached conversations, newest first.
func (r *Roster) List() []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conversation, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Remove drops one conversation, e.g. after leaving a group.
func (r *Roster) Remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}
