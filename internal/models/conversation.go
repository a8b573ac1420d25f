package models

import (
	"strings"
	"time"
)

type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

type Conversation struct {
	ID          string           `json:"id"`
	Kind        ConversationKind `json:"kind"`
	Subject     string           `json:"subject,omitempty"`
	Members     []Member         `json:"members"`
	LastMessage *Message         `json:"last_message,omitempty"`
	UnreadCount int              `json:"unread_count"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

type Member struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	UserName       string     `json:"user_name"`
	Role           MemberRole `json:"role"`
	JoinedAt       time.Time  `json:"joined_at"`
}

// Title returns the display name of the conversation as seen by viewerID:
// the subject for groups (falling back to the joined member names), or the
// other participant's name for direct conversations.
func (c *Conversation) Title(viewerID string) string {
	if c.Kind == KindGroup {
		if c.Subject != "" {
			return c.Subject
		}
		var names []string
		for _, m := range c.Members {
			if m.UserID != viewerID {
				names = append(names, m.UserName)
			}
		}
		return strings.Join(names, ", ")
	}
	if other := c.Other(viewerID); other != nil {
		return other.UserName
	}
	return ""
}

// Other returns the first member that is not the viewer. For direct
// conversations this is the remote participant.
func (c *Conversation) Other(viewerID string) *Member {
	for i := range c.Members {
		if c.Members[i].UserID != viewerID {
			return &c.Members[i]
		}
	}
	return nil
}

func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Preview returns the one-line summary shown in the conversation list.
func (c *Conversation) Preview() string {
	if c.LastMessage == nil {
		return ""
	}
	if c.LastMessage.Body != "" {
		return c.LastMessage.Body
	}
	if len(c.LastMessage.Attachments) > 0 {
		switch c.LastMessage.Attachments[0].Kind() {
		case AttachmentImage:
			return "Photo"
		case AttachmentVideo:
			return "Video"
		default:
			return "Document"
		}
	}
	return ""
}

// LastActivity is the timestamp the conversation list sorts by.
func (c *Conversation) LastActivity() time.Time {
	if c.LastMessage != nil && c.LastMessage.CreatedAt.After(c.CreatedAt) {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}
