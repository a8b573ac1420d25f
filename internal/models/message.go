package models

import (
	"strings"
	"time"
)

type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	SenderID       string       `json:"sender_id"`
	SenderName     string       `json:"sender_name"`
	Body           string       `json:"body"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`

	// Transient client-side state. A message is either optimistic (shown
	// before the server confirmed it) or confirmed, never both.
	IsOptimistic bool   `json:"is_optimistic,omitempty"`
	IsSending    bool   `json:"is_sending,omitempty"`
	SendError    string `json:"send_error,omitempty"`
}

type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment is immutable once attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
	FileName string `json:"file_name"`
	ByteSize int64  `json:"byte_size"`
}

// Kind classifies the attachment by MIME prefix for display purposes.
func (a Attachment) Kind() AttachmentKind {
	switch {
	case strings.HasPrefix(a.MIMEType, "image/"):
		return AttachmentImage
	case strings.HasPrefix(a.MIMEType, "video/"):
		return AttachmentVideo
	default:
		return AttachmentDocument
	}
}
