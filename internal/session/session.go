// Package session wires the sync core together for one signed-in user: the
// REST collaborator, the push channel, the reconciliation engine, the
// conversation list, and per-screen typing state. It is the explicitly
// owned replacement for global connection singletons: the embedding app
// creates one Session and hands it to its screens.
package session

import (
	"context"
	"sync"
	"time"

	"chatsync/internal/api"
	"chatsync/internal/channel"
	"chatsync/internal/engine"
	"chatsync/internal/inbox"
	"chatsync/internal/models"
	"chatsync/internal/utils"
)

type Config struct {
	APIBaseURL string
	WSURL      string
	Token      string
	ViewerID   string
	ViewerName string

	// TypingTimeout and StopTypingDelay default to the package constants in
	// internal/typing when zero.
	TypingTimeout   time.Duration
	StopTypingDelay time.Duration

	// IDs overrides optimistic-id generation; tests inject a deterministic
	// generator.
	IDs engine.IDGenerator
}

type Session struct {
	cfg    Config
	api    *api.Client
	ch     *channel.Channel
	engine *engine.Engine
	inbox  *inbox.Inbox

	mu    sync.Mutex
	views map[string]*ConversationView
	subs  []*channel.Subscription

	// onInboxChange fires after any conversation-list mutation; onError
	// surfaces channel errors and transport drops.
	onInboxChange func()
	onError       func(message string)
}

func New(cfg Config) *Session {
	client := api.New(cfg.APIBaseURL)
	client.SetToken(cfg.Token)

	return &Session{
		cfg:    cfg,
		api:    client,
		ch:     channel.New(channel.Config{URL: cfg.WSURL, Token: cfg.Token}),
		engine: engine.New(cfg.IDs),
		inbox:  inbox.New(cfg.ViewerID),
		views:  make(map[string]*ConversationView),
	}
}

// OnInboxChange registers the conversation-list change callback. Set before
// Start.
func (s *Session) OnInboxChange(fn func()) { s.onInboxChange = fn }

// OnError registers the channel-error callback. Set before Start.
func (s *Session) OnError(fn func(message string)) { s.onError = fn }

// Start seeds the conversation list over REST and opens the push channel.
// A channel connect failure is returned but leaves the session usable: REST
// paths keep working and the caller may call Reconnect later.
func (s *Session) Start(ctx context.Context) error {
	convs, err := s.api.ListConversations(ctx)
	if err != nil {
		return err
	}
	s.inbox.Load(convs)
	s.notifyInbox()

	s.mu.Lock()
	s.subs = append(s.subs,
		s.ch.OnNewMessage(s.handleNewMessage),
		s.ch.OnNewConversation(s.handleNewConversation),
		s.ch.OnError(func(msg string) {
			if s.onError != nil {
				s.onError(msg)
			}
		}),
	)
	s.mu.Unlock()

	return s.ch.Connect(ctx)
}

// Reconnect re-opens the push channel after a transport drop. Reconnection
// is never automatic; the embedding app owns the retry policy.
func (s *Session) Reconnect(ctx context.Context) error {
	return s.ch.Connect(ctx)
}

// Connected reflects live channel state.
func (s *Session) Connected() bool { return s.ch.IsConnected() }

// Inbox exposes the conversation list aggregator.
func (s *Session) Inbox() *inbox.Inbox { return s.inbox }

// Close tears down every open view, unsubscribes the session's handlers and
// disconnects the channel.
func (s *Session) Close() {
	s.mu.Lock()
	views := make([]*ConversationView, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, v := range views {
		v.teardown()
	}
	for _, sub := range subs {
		sub.Cancel()
	}
	s.ch.Disconnect()
}

// handleNewMessage routes an incoming push message: conversations with an
// open view reconcile it into the message sequence and are immediately
// marked read; closed ones only update the list.
func (s *Session) handleNewMessage(conversationID string, msg models.Message) {
	s.mu.Lock()
	view := s.views[conversationID]
	s.mu.Unlock()

	s.inbox.ApplyIncomingMessage(msg)

	if view != nil {
		s.engine.Reconcile(conversationID, msg)
		if msg.SenderID != s.cfg.ViewerID {
			// The viewer is looking at the conversation, so the message is
			// read the moment it lands.
			s.inbox.MarkRead(conversationID)
			s.ch.MarkAsRead(conversationID, nil)
		}
		view.notifyMessages()
	}
	s.notifyInbox()
}

// handleNewConversation resolves a newConversation event against REST and
// inserts the result into the list.
func (s *Session) handleNewConversation(conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conv, err := s.api.GetConversation(ctx, conversationID)
	if err != nil {
		utils.LogError(err, "resolve new conversation")
		return
	}
	s.inbox.Upsert(conv)
	s.notifyInbox()
}

func (s *Session) notifyInbox() {
	if s.onInboxChange != nil {
		s.onInboxChange()
	}
}
