// Package memory holds per-conversation dialogue state. One Conversations
// store is constructed at process start and passed by handle to the decision
// loop; nothing else mutates it. State is process-local: a restart loses all
// conversations.
package memory

import (
	"container/list"
	"sync"

	"github.com/google/uuid"

	"github.com/konecto/actuator-agent/core"
)

const (
	// DefaultMaxTurns keeps the last 5 exchanges of a conversation.
	DefaultMaxTurns = 10
	// DefaultMaxConversations bounds the number of live conversations;
	// least-recently-used ones are evicted beyond this.
	DefaultMaxConversations = 1024
)

type conversation struct {
	id    string
	turns []core.Turn
}

// Conversations maps conversation ids to bounded turn windows. All methods
// are safe for concurrent use. Appends are atomic per call: a reader never
// observes a user turn without its assistant turn.
type Conversations struct {
	mu               sync.Mutex
	maxTurns         int
	maxConversations int
	entries          map[string]*list.Element
	recency          *list.List // front = most recently used
}

// NewConversations creates a store keeping at most maxTurns turns per
// conversation and at most maxConversations conversations. Non-positive
// arguments fall back to the defaults.
func NewConversations(maxTurns, maxConversations int) *Conversations {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if maxConversations <= 0 {
		maxConversations = DefaultMaxConversations
	}
	return &Conversations{
		maxTurns:         maxTurns,
		maxConversations: maxConversations,
		entries:          make(map[string]*list.Element),
		recency:          list.New(),
	}
}

// NewID mints a fresh, collision-resistant conversation identifier.
func (c *Conversations) NewID() string {
	return uuid.NewString()
}

// Get returns a copy of the turn window for id, empty for unknown ids.
func (c *Conversations) Get(id string) []core.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[id]
	if !ok {
		return nil
	}
	c.recency.MoveToFront(elem)
	conv := elem.Value.(*conversation)
	out := make([]core.Turn, len(conv.turns))
	copy(out, conv.turns)
	return out
}

// Append atomically appends a completed user/assistant exchange to id,
// creating the conversation lazily, then trims the window to the newest
// maxTurns turns (oldest dropped first).
func (c *Conversations) Append(id string, user, assistant core.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[id]
	if !ok {
		elem = c.recency.PushFront(&conversation{id: id})
		c.entries[id] = elem
		c.evictLocked()
	} else {
		c.recency.MoveToFront(elem)
	}

	conv := elem.Value.(*conversation)
	conv.turns = append(conv.turns, user, assistant)
	if excess := len(conv.turns) - c.maxTurns; excess > 0 {
		conv.turns = append([]core.Turn(nil), conv.turns[excess:]...)
	}
}

// Len reports the number of live conversations.
func (c *Conversations) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Conversations) evictLocked() {
	for len(c.entries) > c.maxConversations {
		oldest := c.recency.Back()
		if oldest == nil {
			return
		}
		conv := oldest.Value.(*conversation)
		c.recency.Remove(oldest)
		delete(c.entries, conv.id)
	}
}
