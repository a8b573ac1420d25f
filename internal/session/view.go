package session

import (
	"context"
	"time"

	"chatsync/internal/channel"
	"chatsync/internal/models"
	"chatsync/internal/typing"
)

// ConversationView is the per-screen handle for one open conversation. It
// owns the screen-scoped resources (event subscriptions, typing timers, the
// outbound debounce) and releases all of them on Close.
//
// Opening an already-open conversation returns the same view with its
// reference count bumped; the underlying join/leave happens only on the
// first open and the last close.
type ConversationView struct {
	s              *Session
	conversationID string

	tracker  *typing.Tracker
	throttle *typing.Throttle
	subs     []*channel.Subscription
	refs     int

	onMessages func()
	onTyping   func()
	onRead     func(userID string, readAt time.Time)
}

// OpenConversation seeds the message sequence from REST, joins the
// conversation on the shared channel, and returns the view handle.
func (s *Session) OpenConversation(ctx context.Context, conversationID string) (*ConversationView, error) {
	s.mu.Lock()
	if v, ok := s.views[conversationID]; ok {
		v.refs++
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	msgs, err := s.api.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	v := &ConversationView{
		s:              s,
		conversationID: conversationID,
		refs:           1,
	}
	v.tracker = typing.NewTracker(s.cfg.ViewerID, s.cfg.TypingTimeout, func(string) {
		v.notifyTyping()
	})
	v.throttle = typing.NewThrottle(s.cfg.StopTypingDelay,
		func() { s.ch.Typing(conversationID) },
		func() { s.ch.StopTyping(conversationID) },
	)
	v.subs = []*channel.Subscription{
		s.ch.OnUserTyping(func(convID, userID, userName string) {
			if convID == conversationID {
				v.tracker.UserTyping(convID, userID, userName)
			}
		}),
		s.ch.OnUserStoppedTyping(func(convID, userID string) {
			if convID == conversationID {
				v.tracker.UserStopped(convID, userID)
			}
		}),
		s.ch.OnMessageRead(func(convID, userID string, readAt time.Time) {
			if convID == conversationID && v.onRead != nil {
				v.onRead(userID, readAt)
			}
		}),
	}

	s.mu.Lock()
	if existing, ok := s.views[conversationID]; ok {
		// Lost a race with a concurrent open; keep the winner.
		existing.refs++
		s.mu.Unlock()
		v.releaseResources()
		return existing, nil
	}
	s.engine.Seed(conversationID, msgs)
	s.views[conversationID] = v
	s.mu.Unlock()

	s.ch.JoinConversation(conversationID, nil)
	return v, nil
}

// OnMessages registers the message-sequence change callback. Set before use.
func (v *ConversationView) OnMessages(fn func()) { v.onMessages = fn }

// OnTyping registers the typing-set change callback. Set before use.
func (v *ConversationView) OnTyping(fn func()) { v.onTyping = fn }

// OnRead registers the read-receipt callback. Set before use.
func (v *ConversationView) OnRead(fn func(userID string, readAt time.Time)) { v.onRead = fn }

// Messages returns the current ordered, reconciled message sequence.
func (v *ConversationView) Messages() []models.Message {
	return v.s.engine.Messages(v.conversationID)
}

// TypingUsers returns who is currently typing, in signal-arrival order.
func (v *ConversationView) TypingUsers() []models.TypingUser {
	return v.tracker.Typing(v.conversationID)
}

// InputActivity is called on every local text-input change; it drives the
// outbound typing throttle.
func (v *ConversationView) InputActivity() { v.throttle.Activity() }

// Send appends an optimistic message immediately and confirms it through
// the channel when connected, or through REST otherwise. The returned
// message carries the provisional id; a failed send stays visible with
// SendError set.
func (v *ConversationView) Send(ctx context.Context, body string) models.Message {
	// Sending implies typing has stopped.
	v.throttle.Flush()

	s := v.s
	m := s.engine.AppendOptimistic(v.conversationID, body, s.cfg.ViewerID, s.cfg.ViewerName)
	v.notifyMessages()

	if s.ch.IsConnected() {
		provisionalID := m.ID
		s.ch.SendMessage(v.conversationID, body, func(ack models.Ack) {
			if !ack.Success {
				reason := ack.Error
				if reason == "" {
					reason = "send rejected"
				}
				s.engine.MarkFailed(v.conversationID, provisionalID, reason)
				v.notifyMessages()
			}
			// On success the confirmed message arrives as a newMessage event
			// and reconciles there.
		})
		return m
	}

	confirmed, err := s.api.SendMessage(ctx, v.conversationID, body)
	if err != nil {
		s.engine.MarkFailed(v.conversationID, m.ID, err.Error())
		v.notifyMessages()
		return m
	}

	s.engine.Reconcile(v.conversationID, confirmed)
	s.inbox.ApplyIncomingMessage(confirmed)
	v.notifyMessages()
	s.notifyInbox()
	return m
}

// MarkRead zeroes the local unread count and tells the server the viewer has
// caught up.
func (v *ConversationView) MarkRead() {
	v.s.inbox.MarkRead(v.conversationID)
	v.s.ch.MarkAsRead(v.conversationID, nil)
	v.s.notifyInbox()
}

// Close releases the view. With nested opens outstanding it only drops a
// reference; the final Close cancels every subscription, typing timer and
// debounce timer, leaves the conversation on the shared channel, and frees
// the message sequence.
func (v *ConversationView) Close() {
	s := v.s

	s.mu.Lock()
	v.refs--
	if v.refs > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.views, v.conversationID)
	s.mu.Unlock()

	v.teardown()
}

// teardown releases resources and leaves the channel. Callers have already
// removed the view from the session map (or are discarding the whole map).
func (v *ConversationView) teardown() {
	v.releaseResources()
	v.s.ch.LeaveConversation(v.conversationID)
	v.s.engine.Drop(v.conversationID)
}

func (v *ConversationView) releaseResources() {
	for _, sub := range v.subs {
		sub.Cancel()
	}
	v.tracker.Close()
	v.throttle.Close()
}

// LeakedTimers reports outstanding typing timers; teardown must leave zero.
func (v *ConversationView) LeakedTimers() int { return v.tracker.ActiveTimers() }

func (v *ConversationView) notifyMessages() {
	if v.onMessages != nil {
		v.onMessages()
	}
}

func (v *ConversationView) notifyTyping() {
	if v.onTyping != nil {
		v.onTyping()
	}
}
