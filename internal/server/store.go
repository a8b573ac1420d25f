package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"chatsync/internal/models"
)

var (
	ErrNotFound         = errors.New("conversation not found")
	ErrNotMember        = errors.New("not a conversation member")
	ErrDirectMemberPair = errors.New("direct conversations require exactly two members")
	ErrEmptyMessage     = errors.New("message body required")
)

type conversationState struct {
	conv models.Conversation
	// lastRead is the per-member read watermark; unread counts derive from
	// it instead of flags on individual messages.
	lastRead map[string]time.Time
}

// Store holds the reference backend's conversations and messages in memory.
type Store struct {
	mu      sync.RWMutex
	convs   map[string]*conversationState
	msgs    map[string][]models.Message
	convSeq int
	msgSeq  int
}

func NewStore() *Store {
	return &Store{
		convs: make(map[string]*conversationState),
		msgs:  make(map[string][]models.Message),
	}
}

// CreateConversation builds a conversation whose member set is the creator
// plus memberIDs. Direct conversations must resolve to exactly two members;
// an existing direct conversation between the same pair is returned instead
// of a duplicate.
func (s *Store) CreateConversation(kind models.ConversationKind, subject, creatorID string, memberIDs []string, users *UserStore) (models.Conversation, error) {
	ids := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, id := range memberIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if kind == models.KindDirect && len(ids) != 2 {
		return models.Conversation{}, ErrDirectMemberPair
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == models.KindDirect {
		if existing := s.findDirectLocked(ids[0], ids[1]); existing != nil {
			return existing.conv, nil
		}
	}

	s.convSeq++
	now := time.Now()
	conv := models.Conversation{
		ID:        fmt.Sprintf("c-%d", s.convSeq),
		Kind:      kind,
		Subject:   subject,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, id := range ids {
		u, ok := users.Get(id)
		if !ok {
			return models.Conversation{}, fmt.Errorf("unknown member %q", id)
		}
		role := models.RoleMember
		if id == creatorID {
			role = models.RoleAdmin
		}
		conv.Members = append(conv.Members, models.Member{
			ID:             fmt.Sprintf("%s-m%d", conv.ID, i+1),
			ConversationID: conv.ID,
			UserID:         u.ID,
			UserName:       u.Name,
			Role:           role,
			JoinedAt:       now,
		})
	}

	s.convs[conv.ID] = &conversationState{
		conv:     conv,
		lastRead: make(map[string]time.Time),
	}
	return conv, nil
}

func (s *Store) findDirectLocked(a, b string) *conversationState {
	for _, cs := range s.convs {
		if cs.conv.Kind != models.KindDirect {
			continue
		}
		if cs.conv.HasMember(a) && cs.conv.HasMember(b) {
			return cs
		}
	}
	return nil
}

// ListForUser returns the conversations the user belongs to, with the
// per-viewer unread count and last message filled in.
func (s *Store) ListForUser(userID string) []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Conversation
	for _, cs := range s.convs {
		if cs.conv.HasMember(userID) {
			out = append(out, s.viewLocked(cs, userID))
		}
	}
	return out
}

// Get returns one conversation as seen by the viewer.
func (s *Store) Get(conversationID, viewerID string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.convs[conversationID]
	if !ok {
		return models.Conversation{}, ErrNotFound
	}
	if !cs.conv.HasMember(viewerID) {
		return models.Conversation{}, ErrNotMember
	}
	return s.viewLocked(cs, viewerID), nil
}

// IsMember reports whether the user belongs to the conversation.
func (s *Store) IsMember(conversationID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.convs[conversationID]
	return ok && cs.conv.HasMember(userID)
}

// MemberIDs returns the user ids of the conversation's members.
func (s *Store) MemberIDs(conversationID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.convs[conversationID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(cs.conv.Members))
	for _, m := range cs.conv.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// AppendMessage persists a message and returns the confirmed record with its
// server-issued id.
func (s *Store) AppendMessage(conversationID, senderID, senderName, body string) (models.Message, error) {
	if body == "" {
		return models.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.convs[conversationID]
	if !ok {
		return models.Message{}, ErrNotFound
	}
	if !cs.conv.HasMember(senderID) {
		return models.Message{}, ErrNotMember
	}

	s.msgSeq++
	now := time.Now()
	msg := models.Message{
		ID:             fmt.Sprintf("m-%d", s.msgSeq),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName,
		Body:           body,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.msgs[conversationID] = append(s.msgs[conversationID], msg)
	cs.conv.UpdatedAt = now
	// The sender has read their own message.
	cs.lastRead[senderID] = now
	return msg, nil
}

// Messages returns the conversation's ordered message page.
func (s *Store) Messages(conversationID, viewerID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.convs[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	if !cs.conv.HasMember(viewerID) {
		return nil, ErrNotMember
	}

	msgs := s.msgs[conversationID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// MarkRead advances the member's read watermark.
func (s *Store) MarkRead(conversationID, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.convs[conversationID]
	if !ok {
		return ErrNotFound
	}
	if !cs.conv.HasMember(userID) {
		return ErrNotMember
	}
	if at.After(cs.lastRead[userID]) {
		cs.lastRead[userID] = at
	}
	return nil
}

func (s *Store) viewLocked(cs *conversationState, viewerID string) models.Conversation {
	conv := cs.conv
	conv.Members = append([]models.Member(nil), cs.conv.Members...)

	msgs := s.msgs[conv.ID]
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		conv.LastMessage = &last
	}

	watermark := cs.lastRead[viewerID]
	unread := 0
	for _, m := range msgs {
		if m.SenderID != viewerID && m.CreatedAt.After(watermark) {
			unread++
		}
	}
	conv.UnreadCount = unread
	return conv
}
