package usecase

import (
	"sync"

	"github.com/google/uuid"

	"dictation/internal/domain"
)

// Handler receives relayed recognition results.
type Handler interface {
	Handle(result domain.Result)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(result domain.Result)

func (f HandlerFunc) Handle(result domain.Result) {
	f(result)
}

// Subscription is one handler registration on a session channel.
type Subscription struct {
	id    string
	relay *eventRelay
	once  sync.Once
}

func (s *Subscription) ID() string {
	return s.id
}

// Unsubscribe removes the handler. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.relay.remove(s.id)
	})
}

// eventRelay fans one engine callback out to every registered handler.
// Delivery order between handlers is unspecified.
type eventRelay struct {
	channel domain.ResultKind

	mu       sync.RWMutex
	handlers map[string]Handler
}

func newEventRelay(channel domain.ResultKind) *eventRelay {
	return &eventRelay{channel: channel, handlers: make(map[string]Handler)}
}

func (r *eventRelay) add(handler Handler) *Subscription {
	id := uuid.NewString()

	r.mu.Lock()
	r.handlers[id] = handler
	r.mu.Unlock()

	return &Subscription{id: id, relay: r}
}

func (r *eventRelay) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, id)
}

func (r *eventRelay) publish(result domain.Result) int {
	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.handlers))
	for _, handler := range r.handlers {
		handlers = append(handlers, handler)
	}
	r.mu.RUnlock()

	for _, handler := range handlers {
		handler.Handle(result)
	}
	return len(handlers)
}

func (r *eventRelay) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]Handler)
}

func (r *eventRelay) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
