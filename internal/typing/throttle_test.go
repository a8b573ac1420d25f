package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu           sync.Mutex
	starts, stops int
}

func (c *counter) start() {
	c.mu.Lock()
	c.starts++
	c.mu.Unlock()
}

func (c *counter) stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
}

func (c *counter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts, c.stops
}

func TestBurstEmitsOnePair(t *testing.T) {
	var c counter
	th := NewThrottle(4*testTimeout, c.start, c.stop)
	defer th.Close()

	// Continuous typing: many keystrokes inside the delay window.
	for i := 0; i < 10; i++ {
		th.Activity()
		time.Sleep(testTimeout / 4)
	}

	starts, stops := c.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, stops)

	// Quiet period passes: exactly one stop, trailing-edge.
	time.Sleep(6 * testTimeout)
	starts, stops = c.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestSecondBurstEmitsSecondPair(t *testing.T) {
	var c counter
	th := NewThrottle(testTimeout, c.start, c.stop)
	defer th.Close()

	th.Activity()
	time.Sleep(3 * testTimeout)
	th.Activity()
	time.Sleep(3 * testTimeout)

	starts, stops := c.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, stops)
}

func TestFlushEmitsStopSynchronously(t *testing.T) {
	var c counter
	th := NewThrottle(time.Hour, c.start, c.stop)
	defer th.Close()

	th.Activity()
	th.Flush()

	starts, stops := c.counts()
	require.Equal(t, 1, starts)
	require.Equal(t, 1, stops)

	// Flush while idle emits nothing.
	th.Flush()
	_, stops = c.counts()
	assert.Equal(t, 1, stops)
}

func TestCloseEmitsNothing(t *testing.T) {
	var c counter
	th := NewThrottle(testTimeout, c.start, c.stop)

	th.Activity()
	th.Close()

	time.Sleep(3 * testTimeout)
	starts, stops := c.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 0, stops)
}
