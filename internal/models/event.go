package models

import "time"

// Event names carried on the push channel. Inbound events are emitted by the
// server; command names are sent by the client.
const (
	EventConnected         = "connected"
	EventNewMessage        = "newMessage"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventMessageRead       = "messageRead"
	EventNewConversation   = "newConversation"
	EventError             = "error"
	EventAck               = "ack"

	CmdSendMessage       = "sendMessage"
	CmdTyping            = "typing"
	CmdStopTyping        = "stopTyping"
	CmdJoinConversation  = "joinConversation"
	CmdLeaveConversation = "leaveConversation"
	CmdMarkAsRead        = "markAsRead"
)

// Event is the single JSON envelope used in both directions on the push
// channel. Event discriminates the payload; unused fields are omitted.
type Event struct {
	Event          string     `json:"event"`
	ID             string     `json:"id,omitempty"` // command id, echoed back in acks
	ConversationID string     `json:"conversation_id,omitempty"`
	UserID         string     `json:"user_id,omitempty"`
	UserName       string     `json:"user_name,omitempty"`
	Body           string     `json:"body,omitempty"`
	Message        *Message   `json:"message,omitempty"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	Detail         string     `json:"detail,omitempty"`
	Success        bool       `json:"success,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Ack is the acknowledgement delivered to an outbound command's callback.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
