package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 40 * time.Millisecond

func TestUserTypingExpiresAfterTimeout(t *testing.T) {
	tr := NewTracker("viewer", testTimeout, nil)
	defer tr.Close()

	tr.UserTyping("c-1", "u-2", "bruno")
	require.Len(t, tr.Typing("c-1"), 1)

	time.Sleep(3 * testTimeout)
	assert.Empty(t, tr.Typing("c-1"))
	assert.Zero(t, tr.ActiveTimers())
}

func TestRepeatedSignalRestartsWithoutFlicker(t *testing.T) {
	tr := NewTracker("viewer", 4*testTimeout, nil)
	defer tr.Close()

	// Two signals arrive within the timeout window; the user must stay in
	// the typing state continuously.
	tr.UserTyping("c-1", "u-2", "bruno")
	time.Sleep(2 * testTimeout)
	tr.UserTyping("c-1", "u-2", "bruno")

	time.Sleep(3 * testTimeout) // past the first timer's would-be expiry
	require.Len(t, tr.Typing("c-1"), 1)

	time.Sleep(3 * testTimeout) // past the restarted timer
	assert.Empty(t, tr.Typing("c-1"))
}

func TestExplicitStopClearsImmediately(t *testing.T) {
	tr := NewTracker("viewer", time.Hour, nil)
	defer tr.Close()

	tr.UserTyping("c-1", "u-2", "bruno")
	tr.UserStopped("c-1", "u-2")

	assert.Empty(t, tr.Typing("c-1"))
	assert.Zero(t, tr.ActiveTimers())

	// Stop for an absent user is a no-op.
	tr.UserStopped("c-1", "u-2")
}

func TestViewerSignalsIgnored(t *testing.T) {
	tr := NewTracker("viewer", time.Hour, nil)
	defer tr.Close()

	tr.UserTyping("c-1", "viewer", "ana")
	assert.Empty(t, tr.Typing("c-1"))
	assert.Zero(t, tr.ActiveTimers())
}

func TestArrivalOrderAndVisibleCap(t *testing.T) {
	tr := NewTracker("viewer", time.Hour, nil)
	defer tr.Close()

	tr.UserTyping("c-1", "u-2", "bruno")
	tr.UserTyping("c-1", "u-3", "carla")
	tr.UserTyping("c-1", "u-4", "dani")
	tr.UserTyping("c-1", "u-5", "eva")

	users := tr.Typing("c-1")
	require.Len(t, users, MaxVisible)
	assert.Equal(t, "bruno", users[0].UserName)
	assert.Equal(t, "carla", users[1].UserName)
	assert.Equal(t, "dani", users[2].UserName)

	// All four timers stay owned even though only three are surfaced.
	assert.Equal(t, 4, tr.ActiveTimers())
}

func TestConversationsAreIndependent(t *testing.T) {
	tr := NewTracker("viewer", time.Hour, nil)
	defer tr.Close()

	tr.UserTyping("c-1", "u-2", "bruno")
	tr.UserTyping("c-2", "u-2", "bruno")

	tr.ClearConversation("c-1")
	assert.Empty(t, tr.Typing("c-1"))
	require.Len(t, tr.Typing("c-2"), 1)
	assert.Equal(t, 1, tr.ActiveTimers())
}

func TestCloseCancelsAllTimers(t *testing.T) {
	var mu sync.Mutex
	changes := 0
	tr := NewTracker("viewer", testTimeout, func(string) {
		mu.Lock()
		changes++
		mu.Unlock()
	})

	tr.UserTyping("c-1", "u-2", "bruno")
	tr.UserTyping("c-2", "u-3", "carla")
	require.Equal(t, 2, tr.ActiveTimers())

	tr.Close()
	assert.Zero(t, tr.ActiveTimers())

	mu.Lock()
	after := changes
	mu.Unlock()

	// No expiry fires after teardown.
	time.Sleep(3 * testTimeout)
	mu.Lock()
	assert.Equal(t, after, changes)
	mu.Unlock()

	// Signals after Close are dropped.
	tr.UserTyping("c-1", "u-2", "bruno")
	assert.Zero(t, tr.ActiveTimers())
}

func TestOnChangeNotifications(t *testing.T) {
	var mu sync.Mutex
	var convs []string
	tr := NewTracker("viewer", time.Hour, func(id string) {
		mu.Lock()
		convs = append(convs, id)
		mu.Unlock()
	})
	defer tr.Close()

	tr.UserTyping("c-1", "u-2", "bruno")
	tr.UserTyping("c-1", "u-2", "bruno") // restart, no change event
	tr.UserStopped("c-1", "u-2")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"c-1", "c-1"}, convs)
}
