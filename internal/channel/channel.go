// Package channel owns the lifecycle of the push connection: dial,
// authenticate, dispatch typed inbound events, and emit outbound commands.
package channel

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"chatsync/internal/models"
	"chatsync/internal/utils"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

var (
	// ErrNoCredential is returned by Connect when no usable token is
	// available.
	ErrNoCredential = errors.New("channel: no credential available")

	// ErrAlreadyConnected is returned by Connect while a connection is live.
	ErrAlreadyConnected = errors.New("channel: already connected")
)

// AckFunc receives the server's acknowledgement for an outbound command.
type AckFunc func(models.Ack)

// Config describes one push-channel endpoint.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:3001/ws.
	URL string

	// Token is the bearer credential, passed as the access_token query
	// parameter during the handshake.
	Token string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Channel is one client-side push connection. All open conversation views of
// a session share a single Channel; joining a conversation is a logical
// subscription on top of it, not a new connection.
//
// Reconnection after a transport drop is deliberately not automatic: the
// owner observes the drop through IsConnected/OnError and decides whether to
// call Connect again.
type Channel struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	acks      map[string]AckFunc

	subs  *subscribers
	newID func() string
}

func New(cfg Config) *Channel {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Channel{
		cfg:   cfg,
		acks:  make(map[string]AckFunc),
		subs:  newSubscribers(),
		newID: func() string { return uuid.New().String() },
	}
}

// Connect dials and authenticates exactly one connection. It returns
// ErrNoCredential when the token is missing or already expired, and
// ErrAlreadyConnected while a previous connection is still live. After a
// transport drop it is safe to call Connect again on the same Channel.
func (c *Channel) Connect(ctx context.Context) error {
	if err := inspectToken(c.cfg.Token); err != nil {
		return err
	}

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("access_token", c.cfg.Token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.connected {
		// Lost a race with a concurrent Connect.
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyConnected
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// IsConnected reflects live transport state, not intent: it flips false as
// soon as the read loop observes a failure.
func (c *Channel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Disconnect closes the connection if one is live. It is idempotent and safe
// to call when never connected. Pending acknowledgement callbacks fail with
// "connection lost" so in-flight sends can be marked for retry.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	pending := c.acks
	c.acks = make(map[string]AckFunc)
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
	failAcks(pending)
}

// failAcks delivers a failure to every acknowledgement callback that was
// still waiting when the connection went away.
func failAcks(pending map[string]AckFunc) {
	for _, ack := range pending {
		ack(models.Ack{Success: false, Error: "connection lost"})
	}
}

// SendMessage emits a sendMessage command. Like every outbound command it is
// silently dropped when the channel is not connected; the caller's REST
// fallback is the defined recovery path.
func (c *Channel) SendMessage(conversationID, body string, ack AckFunc) {
	c.emit(models.Event{Event: models.CmdSendMessage, ConversationID: conversationID, Body: body}, ack)
}

func (c *Channel) Typing(conversationID string) {
	c.emit(models.Event{Event: models.CmdTyping, ConversationID: conversationID}, nil)
}

func (c *Channel) StopTyping(conversationID string) {
	c.emit(models.Event{Event: models.CmdStopTyping, ConversationID: conversationID}, nil)
}

func (c *Channel) JoinConversation(conversationID string, ack AckFunc) {
	c.emit(models.Event{Event: models.CmdJoinConversation, ConversationID: conversationID}, ack)
}

func (c *Channel) LeaveConversation(conversationID string) {
	c.emit(models.Event{Event: models.CmdLeaveConversation, ConversationID: conversationID}, nil)
}

func (c *Channel) MarkAsRead(conversationID string, ack AckFunc) {
	c.emit(models.Event{Event: models.CmdMarkAsRead, ConversationID: conversationID}, ack)
}

func (c *Channel) emit(ev models.Event, ack AckFunc) {
	c.mu.Lock()
	if !c.connected || c.conn == nil {
		c.mu.Unlock()
		return
	}
	if ack != nil {
		ev.ID = c.newID()
		c.acks[ev.ID] = ack
	}
	conn := c.conn
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	err := conn.WriteJSON(ev)
	if err != nil && ev.ID != "" {
		delete(c.acks, ev.ID)
	}
	c.mu.Unlock()

	if err != nil {
		utils.LogError(err, "channel emit")
	}
}

// OnConnected subscribes to the server's post-handshake greeting.
func (c *Channel) OnConnected(fn func(userID string)) *Subscription {
	return c.subs.add(models.EventConnected, func(ev models.Event) { fn(ev.UserID) })
}

func (c *Channel) OnNewMessage(fn func(conversationID string, msg models.Message)) *Subscription {
	return c.subs.add(models.EventNewMessage, func(ev models.Event) {
		if ev.Message != nil {
			fn(ev.ConversationID, *ev.Message)
		}
	})
}

func (c *Channel) OnUserTyping(fn func(conversationID, userID, userName string)) *Subscription {
	return c.subs.add(models.EventUserTyping, func(ev models.Event) {
		fn(ev.ConversationID, ev.UserID, ev.UserName)
	})
}

func (c *Channel) OnUserStoppedTyping(fn func(conversationID, userID string)) *Subscription {
	return c.subs.add(models.EventUserStoppedTyping, func(ev models.Event) {
		fn(ev.ConversationID, ev.UserID)
	})
}

func (c *Channel) OnMessageRead(fn func(conversationID, userID string, readAt time.Time)) *Subscription {
	return c.subs.add(models.EventMessageRead, func(ev models.Event) {
		var at time.Time
		if ev.ReadAt != nil {
			at = *ev.ReadAt
		}
		fn(ev.ConversationID, ev.UserID, at)
	})
}

func (c *Channel) OnNewConversation(fn func(conversationID string)) *Subscription {
	return c.subs.add(models.EventNewConversation, func(ev models.Event) { fn(ev.ConversationID) })
}

// OnError subscribes to server error events and transport-level failures.
func (c *Channel) OnError(fn func(message string)) *Subscription {
	return c.subs.add(models.EventError, func(ev models.Event) { fn(ev.Error) })
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			// Only tear down state if this conn is still current; Disconnect
			// or a newer Connect may have replaced it already.
			wasCurrent := c.conn == conn
			var pending map[string]AckFunc
			if wasCurrent {
				c.conn = nil
				c.connected = false
				pending = c.acks
				c.acks = make(map[string]AckFunc)
			}
			c.mu.Unlock()

			failAcks(pending)
			if wasCurrent && !websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.subs.dispatch(models.Event{Event: models.EventError, Error: err.Error()})
			}
			return
		}

		var ev models.Event
		if err := utils.SafeJSONParse(data, &ev); err != nil {
			utils.LogError(err, "channel decode")
			continue
		}

		if ev.Event == models.EventAck {
			c.mu.Lock()
			ack := c.acks[ev.ID]
			delete(c.acks, ev.ID)
			c.mu.Unlock()
			if ack != nil {
				ack(models.Ack{Success: ev.Success, Message: ev.Detail, Error: ev.Error})
			}
			continue
		}

		c.subs.dispatch(ev)
	}
}
