// Package notifications keeps the bell list of a client session. It lives as
// long as the session does and is fed by every rh:notify event, whichever
// conversation the user currently has open.
package notifications

import (
	"sync"

	"rh-portal-be/internal/realtime"
)

const DefaultCapacity = 50

// Center is an ordered, bounded list of received notifications, oldest
// first. When full, the oldest entry is dropped. Safe for concurrent use.
type Center struct {
	mu       sync.Mutex
	capacity int
	items    []realtime.NotifyPayload
	subs     []func(count int)
}

func NewCenter(capacity int) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Center{capacity: capacity}
}

func (c *Center) Add(n realtime.NotifyPayload) {
	c.mu.Lock()
	c.items = append(c.items, n)
	if over := len(c.items) - c.capacity; over > 0 {
		c.items = append(c.items[:0:0], c.items[over:]...)
	}
	count := len(c.items)
	subs := c.subs
	c.mu.Unlock()

	notify(subs, count)
}

func (c *Center) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// List returns a copy, oldest first.
func (c *Center) List() []realtime.NotifyPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]realtime.NotifyPayload, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Center) Clear() {
	c.mu.Lock()
	c.items = nil
	subs := c.subs
	c.mu.Unlock()

	notify(subs, 0)
}

// RemoveConversation dismisses the entries of one conversation, typically
// when the user opens it, and reports how many were removed.
func (c *Center) RemoveConversation(conversationID string) int {
	c.mu.Lock()
	kept := c.items[:0]
	for _, n := range c.items {
		if n.ConversationID != conversationID {
			kept = append(kept, n)
		}
	}
	removed := len(c.items) - len(kept)
	c.items = kept
	count := len(kept)
	subs := c.subs
	c.mu.Unlock()

	if removed > 0 {
		notify(subs, count)
	}
	return removed
}

// Subscribe registers fn to be called with the new count after every change.
// fn runs on the caller's goroutine, outside the lock.
func (c *Center) Subscribe(fn func(count int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

func notify(subs []func(int), count int) {
	for _, fn := range subs {
		fn(count)
	}
}
