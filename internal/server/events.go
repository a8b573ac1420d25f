package server

import (
	"log"
	"time"

	"chatsync/internal/models"
)

// handleEvent dispatches one inbound command from a push connection.
func (s *Server) handleEvent(connID, userID, userName string, ev models.Event) {
	switch ev.Event {
	case models.CmdSendMessage:
		s.handleSendMessage(connID, userID, userName, ev)
	case models.CmdTyping:
		s.handleTyping(connID, userID, userName, ev, true)
	case models.CmdStopTyping:
		s.handleTyping(connID, userID, userName, ev, false)
	case models.CmdJoinConversation:
		s.handleJoin(connID, userID, ev)
	case models.CmdLeaveConversation:
		s.manager.Leave(ev.ConversationID, connID)
		s.ack(connID, ev, nil)
	case models.CmdMarkAsRead:
		s.handleMarkAsRead(connID, userID, ev)
	default:
		log.Printf("Unknown event: %s", ev.Event)
		s.manager.SendTo(connID, models.Event{Event: models.EventError, Error: "unknown event: " + ev.Event})
	}
}

func (s *Server) handleSendMessage(connID, userID, userName string, ev models.Event) {
	msg, err := s.store.AppendMessage(ev.ConversationID, userID, userName, ev.Body)
	if err != nil {
		s.ack(connID, ev, err)
		return
	}
	s.ack(connID, ev, nil)
	s.fanOutNewMessage(msg)
}

// fanOutNewMessage delivers a confirmed message to every online member,
// joined to the conversation or not: members with the conversation open
// reconcile it into their view, everyone else updates their list. The sender
// receives it too, as confirmation of the optimistic entry.
func (s *Server) fanOutNewMessage(msg models.Message) {
	ev := models.Event{
		Event:          models.EventNewMessage,
		ConversationID: msg.ConversationID,
		Message:        &msg,
	}
	for _, memberID := range s.store.MemberIDs(msg.ConversationID) {
		s.manager.SendToUser(memberID, ev)
	}
}

func (s *Server) handleTyping(connID, userID, userName string, ev models.Event, typing bool) {
	if !s.store.IsMember(ev.ConversationID, userID) {
		return
	}

	out := models.Event{
		ConversationID: ev.ConversationID,
		UserID:         userID,
	}
	if typing {
		out.Event = models.EventUserTyping
		out.UserName = userName
	} else {
		out.Event = models.EventUserStoppedTyping
	}
	// Typing signals only matter to members currently viewing the
	// conversation; they are never fanned out to closed screens.
	s.manager.BroadcastToConversation(ev.ConversationID, out, connID)
}

func (s *Server) handleJoin(connID, userID string, ev models.Event) {
	if !s.store.IsMember(ev.ConversationID, userID) {
		s.ack(connID, ev, ErrNotMember)
		return
	}
	s.manager.Join(ev.ConversationID, connID)
	s.ack(connID, ev, nil)
}

func (s *Server) handleMarkAsRead(connID, userID string, ev models.Event) {
	now := time.Now()
	if err := s.store.MarkRead(ev.ConversationID, userID, now); err != nil {
		s.ack(connID, ev, err)
		return
	}
	s.ack(connID, ev, nil)

	out := models.Event{
		Event:          models.EventMessageRead,
		ConversationID: ev.ConversationID,
		UserID:         userID,
		ReadAt:         &now,
	}
	for _, memberID := range s.store.MemberIDs(ev.ConversationID) {
		if memberID != userID {
			s.manager.SendToUser(memberID, out)
		}
	}
}

// ack answers a command that carried an id; commands without one get no
// acknowledgement, and failures on them surface as error events.
func (s *Server) ack(connID string, cmd models.Event, err error) {
	if cmd.ID == "" {
		if err != nil {
			s.manager.SendTo(connID, models.Event{Event: models.EventError, Error: err.Error()})
		}
		return
	}

	out := models.Event{Event: models.EventAck, ID: cmd.ID, Success: err == nil}
	if err != nil {
		out.Error = err.Error()
	}
	s.manager.SendTo(connID, out)
}
