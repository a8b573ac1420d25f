// Package inbox maintains the signed-in user's conversation list: ordering
// by most recent activity, unread accounting, and last-message previews.
package inbox

import (
	"sort"
	"strings"
	"sync"

	"chatsync/internal/models"
)

// Inbox owns the conversation collection for one viewing user. The list is
// kept sorted descending by last activity at all times.
type Inbox struct {
	mu       sync.RWMutex
	viewerID string
	convs    []*models.Conversation
	byID     map[string]*models.Conversation
}

func New(viewerID string) *Inbox {
	return &Inbox{
		viewerID: viewerID,
		byID:     make(map[string]*models.Conversation),
	}
}

// Load replaces the full conversation set from a REST page load.
func (in *Inbox) Load(convs []models.Conversation) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.convs = make([]*models.Conversation, 0, len(convs))
	in.byID = make(map[string]*models.Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		if _, ok := in.byID[c.ID]; ok {
			continue
		}
		in.convs = append(in.convs, &c)
		in.byID[c.ID] = &c
	}
	in.resort()
}

// ApplyIncomingMessage updates the target conversation for a newMessage
// event: the last-message preview is replaced, the unread count grows by one
// unless the viewer is the sender, and the list re-sorts. Returns false when
// the conversation is unknown.
func (in *Inbox) ApplyIncomingMessage(msg models.Message) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	c, ok := in.byID[msg.ConversationID]
	if !ok {
		return false
	}

	m := msg
	c.LastMessage = &m
	if msg.CreatedAt.After(c.UpdatedAt) {
		c.UpdatedAt = msg.CreatedAt
	}
	if msg.SenderID != in.viewerID {
		c.UnreadCount++
	}
	in.resort()
	return true
}

// MarkRead zeroes the unread count without affecting sort order.
func (in *Inbox) MarkRead(conversationID string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if c, ok := in.byID[conversationID]; ok {
		c.UnreadCount = 0
	}
}

// Upsert inserts or replaces a single conversation, used when a
// newConversation event is resolved against the REST collaborator.
func (in *Inbox) Upsert(conv models.Conversation) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if existing, ok := in.byID[conv.ID]; ok {
		*existing = conv
	} else {
		c := conv
		in.convs = append(in.convs, &c)
		in.byID[c.ID] = &c
	}
	in.resort()
}

// Get returns a copy of one conversation.
func (in *Inbox) Get(conversationID string) (models.Conversation, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	c, ok := in.byID[conversationID]
	if !ok {
		return models.Conversation{}, false
	}
	return *c, true
}

// Conversations returns a sorted copy of the current list.
func (in *Inbox) Conversations() []models.Conversation {
	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]models.Conversation, len(in.convs))
	for i, c := range in.convs {
		out[i] = *c
	}
	return out
}

// Search is a pure projection over the sorted list: conversations whose
// title contains the query, case-insensitively. Underlying state is never
// mutated.
func (in *Inbox) Search(query string) []models.Conversation {
	in.mu.RLock()
	defer in.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []models.Conversation
	for _, c := range in.convs {
		if q == "" || strings.Contains(strings.ToLower(c.Title(in.viewerID)), q) {
			out = append(out, *c)
		}
	}
	return out
}

// resort orders descending by last activity. Callers hold the write lock.
func (in *Inbox) resort() {
	sort.SliceStable(in.convs, func(i, j int) bool {
		return in.convs[i].LastActivity().After(in.convs[j].LastActivity())
	})
}
