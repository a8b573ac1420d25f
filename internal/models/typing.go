package models

// TypingUser is a remote participant currently typing in a conversation.
// The expiry timer that bounds its lifetime is owned by the typing tracker,
// never by the record itself.
type TypingUser struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
}
