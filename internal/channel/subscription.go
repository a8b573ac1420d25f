package channel

import (
	"sync"

	"chatsync/internal/models"
)

// Subscription is the explicit handle returned when registering an event
// handler. Cancelling it de-registers the handler; a consumer that mounts
// multiple times holds one handle per mount, so the same logical event is
// never dispatched twice to one mount.
type Subscription struct {
	s     *subscribers
	event string
	id    int
}

// Cancel de-registers the handler. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.s == nil {
		return
	}
	s.s.remove(s.event, s.id)
}

type subscribers struct {
	mu      sync.Mutex
	nextID  int
	byEvent map[string]map[int]func(models.Event)
}

func newSubscribers() *subscribers {
	return &subscribers{byEvent: make(map[string]map[int]func(models.Event))}
}

func (s *subscribers) add(event string, fn func(models.Event)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if s.byEvent[event] == nil {
		s.byEvent[event] = make(map[int]func(models.Event))
	}
	s.byEvent[event][s.nextID] = fn
	return &Subscription{s: s, event: event, id: s.nextID}
}

func (s *subscribers) remove(event string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handlers, ok := s.byEvent[event]; ok {
		delete(handlers, id)
	}
}

// dispatch invokes the handlers registered for the event, outside the lock
// so a handler may cancel subscriptions or emit commands.
func (s *subscribers) dispatch(ev models.Event) {
	s.mu.Lock()
	handlers := make([]func(models.Event), 0, len(s.byEvent[ev.Event]))
	// Registration order keeps dispatch deterministic.
	for i := 1; i <= s.nextID; i++ {
		if fn, ok := s.byEvent[ev.Event][i]; ok {
			handlers = append(handlers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
