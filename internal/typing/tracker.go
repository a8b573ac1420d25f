// Package typing tracks which remote users are typing in each conversation
// and throttles the local user's outbound typing signals.
package typing

import (
	"sort"
	"sync"
	"time"

	"chatsync/internal/models"
)

// DefaultTimeout is how long a remote user stays in the typing state after
// their last signal.
const DefaultTimeout = 3 * time.Second

// MaxVisible caps how many concurrently typing users are surfaced to the UI.
const MaxVisible = 3

type key struct {
	conversationID string
	userID         string
}

type entry struct {
	user  models.TypingUser
	timer *time.Timer
	gen   uint64 // bumped on every restart so a stale expiry is a no-op
	seq   uint64 // signal-arrival order
}

// Tracker is the per-session typing state machine. Every timer it starts has
// a matching cancellation path: explicit stop signal, expiry, conversation
// teardown, or Close.
type Tracker struct {
	mu       sync.Mutex
	viewerID string
	timeout  time.Duration
	onChange func(conversationID string)
	entries  map[key]*entry
	nextSeq  uint64
	closed   bool
}

// NewTracker returns a Tracker for the given viewer. Signals from the viewer
// themselves are ignored. onChange, if non-nil, is invoked (outside the
// lock) whenever a conversation's typing set changes. A non-positive timeout
// falls back to DefaultTimeout.
func NewTracker(viewerID string, timeout time.Duration, onChange func(conversationID string)) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		viewerID: viewerID,
		timeout:  timeout,
		onChange: onChange,
		entries:  make(map[key]*entry),
	}
}

// UserTyping handles a userTyping signal. A first signal moves the user to
// the typing state and starts the expiry timer; a repeated signal restarts
// the timer without duplicating the entry.
func (t *Tracker) UserTyping(conversationID, userID, userName string) {
	if userID == t.viewerID {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	k := key{conversationID, userID}
	e, ok := t.entries[k]
	if ok {
		e.timer.Stop()
		e.gen++
		e.user.UserName = userName
		e.timer = t.startTimer(k, e.gen)
		t.mu.Unlock()
		return
	}

	t.nextSeq++
	e = &entry{
		user: models.TypingUser{
			ConversationID: conversationID,
			UserID:         userID,
			UserName:       userName,
		},
		seq: t.nextSeq,
	}
	e.timer = t.startTimer(k, e.gen)
	t.entries[k] = e
	t.mu.Unlock()

	t.notify(conversationID)
}

// UserStopped handles an explicit userStoppedTyping signal.
func (t *Tracker) UserStopped(conversationID, userID string) {
	k := key{conversationID, userID}

	t.mu.Lock()
	e, ok := t.entries[k]
	if ok {
		e.timer.Stop()
		delete(t.entries, k)
	}
	t.mu.Unlock()

	if ok {
		t.notify(conversationID)
	}
}

// Typing returns the conversation's currently typing users in signal-arrival
// order, at most MaxVisible of them.
func (t *Tracker) Typing(conversationID string) []models.TypingUser {
	t.mu.Lock()
	var active []*entry
	for k, e := range t.entries {
		if k.conversationID == conversationID {
			active = append(active, e)
		}
	}
	t.mu.Unlock()

	sort.Slice(active, func(i, j int) bool { return active[i].seq < active[j].seq })
	if len(active) > MaxVisible {
		active = active[:MaxVisible]
	}
	out := make([]models.TypingUser, len(active))
	for i, e := range active {
		out[i] = e.user
	}
	return out
}

// ClearConversation cancels every timer tracked for one conversation, used
// when its screen unmounts.
func (t *Tracker) ClearConversation(conversationID string) {
	t.mu.Lock()
	for k, e := range t.entries {
		if k.conversationID == conversationID {
			e.timer.Stop()
			delete(t.entries, k)
		}
	}
	t.mu.Unlock()
}

// Close cancels all outstanding timers. No state changes or callbacks occur
// after Close returns.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	for k, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, k)
	}
	t.mu.Unlock()
}

// ActiveTimers reports how many expiry timers are live. Teardown must bring
// this to zero.
func (t *Tracker) ActiveTimers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) startTimer(k key, gen uint64) *time.Timer {
	return time.AfterFunc(t.timeout, func() { t.expire(k, gen) })
}

func (t *Tracker) expire(k key, gen uint64) {
	t.mu.Lock()
	e, ok := t.entries[k]
	if !ok || e.gen != gen || t.closed {
		t.mu.Unlock()
		return
	}
	delete(t.entries, k)
	t.mu.Unlock()

	t.notify(k.conversationID)
}

func (t *Tracker) notify(conversationID string) {
	if t.onChange != nil {
		t.onChange(conversationID)
	}
}
