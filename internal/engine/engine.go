// Package engine merges the message sources for a conversation (the initial
// REST page load, optimistic local sends, and confirmed push events) into one
// ordered, deduplicated sequence.
package engine

import (
	"sync"
	"time"

	"chatsync/internal/models"

	"github.com/google/uuid"
)

// IDGenerator produces provisional ids for optimistic messages. Tests inject
// a deterministic implementation; production uses UUIDs.
type IDGenerator interface {
	NewID() string
}

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.New().String() }

// Engine owns the message sequence of every open conversation. All methods
// are safe to call from the channel read loop and the app's goroutine.
type Engine struct {
	mu   sync.Mutex
	ids  IDGenerator
	now  func() time.Time
	seqs map[string][]models.Message
}

// New returns an Engine. A nil ids falls back to UUID generation.
func New(ids IDGenerator) *Engine {
	if ids == nil {
		ids = uuidGenerator{}
	}
	return &Engine{
		ids:  ids,
		now:  time.Now,
		seqs: make(map[string][]models.Message),
	}
}

// Seed replaces the conversation's sequence wholesale from a REST page load.
// Duplicate ids in the payload are dropped, keeping the first occurrence.
func (e *Engine) Seed(conversationID string, msgs []models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]bool, len(msgs))
	seq := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		seq = append(seq, m)
	}
	e.seqs[conversationID] = seq
}

// AppendOptimistic synthesizes a provisional message, immediately visible
// with IsSending set, and returns a copy of it.
func (e *Engine) AppendOptimistic(conversationID, body, senderID, senderName string) models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := models.Message{
		ID:             e.ids.NewID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		Body:           body,
		CreatedAt:      e.now(),
		IsOptimistic:   true,
		IsSending:      true,
	}
	e.seqs[conversationID] = append(e.seqs[conversationID], m)
	return m
}

// Reconcile applies a confirmed message from a send acknowledgement or an
// inbound push event. The push channel and the REST send response race, so
// either may arrive first; the decision rule, in order:
//
//  1. a message with the same confirmed id already exists: duplicate, ignore
//  2. an optimistic entry from the same sender is still outstanding: replace
//     the oldest one in place, preserving its position on screen
//  3. otherwise append in receipt order
//
// The sender check in rule 2 keeps another user's push from consuming the
// viewer's in-flight message.
func (e *Engine) Reconcile(conversationID string, confirmed models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.seqs[conversationID]
	for _, m := range seq {
		if m.ID == confirmed.ID {
			return
		}
	}

	confirmed.IsOptimistic = false
	confirmed.IsSending = false
	confirmed.SendError = ""

	for i, m := range seq {
		// Entries already marked failed stay visible for retry and are no
		// longer candidates for confirmation.
		if m.IsOptimistic && m.SendError == "" && m.SenderID == confirmed.SenderID {
			seq[i] = confirmed
			return
		}
	}

	e.seqs[conversationID] = append(seq, confirmed)
}

// MarkFailed records a send failure on the optimistic entry with the given
// provisional id. The entry is retained so the caller can offer retry.
// Returns false if no such entry exists.
func (e *Engine) MarkFailed(conversationID, provisionalID, sendError string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.seqs[conversationID]
	for i := range seq {
		if seq[i].ID == provisionalID && seq[i].IsOptimistic {
			seq[i].IsSending = false
			seq[i].SendError = sendError
			return true
		}
	}
	return false
}

// Messages returns a copy of the conversation's current ordered sequence.
func (e *Engine) Messages(conversationID string) []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.seqs[conversationID]
	out := make([]models.Message, len(seq))
	copy(out, seq)
	return out
}

// Drop releases the sequence of a closed conversation.
func (e *Engine) Drop(conversationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.seqs, conversationID)
}
