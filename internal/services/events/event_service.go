// -----------------------------------------------------------------------
// Event Service - In-process pub/sub for job progress and Q&A inserts
// -----------------------------------------------------------------------

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
)

// Service is the in-process event bus. Generation pipelines and the
// translation machine publish here; the websocket progress feed subscribes.
// Progress events fire on every pipeline step, so publishing is fire-and-forget
// and never blocks the publisher on a slow subscriber.
type Service struct {
	mu          sync.RWMutex
	subscribers map[interfaces.EventType][]interfaces.EventHandler
	closed      bool
	logger      arbor.ILogger
}

// NewService creates the event bus
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		subscribers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("event service is closed")
	}
	s.subscribers[eventType] = append(s.subscribers[eventType], handler)

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.subscribers[eventType])).
		Msg("Event handler subscribed")
	return nil
}

// Publish delivers an event to all subscribers asynchronously. Handler
// failures are logged, never returned: a broken subscriber must not affect a
// running generation job.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	for _, handler := range s.handlersFor(event.Type) {
		h := handler
		common.SafeGo(s.logger, "event:"+string(event.Type), func() {
			s.logHandlerErr(event.Type, h(ctx, event))
		})
	}
	return nil
}

// PublishSync delivers an event and waits for every handler to finish
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	handlers := s.handlersFor(event.Type)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, handler := range handlers {
		h := handler
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				s.logHandlerErr(event.Type, err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("event handlers failed: %d errors", failed)
	}
	return nil
}

// Close drops all subscriptions
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = make(map[interfaces.EventType][]interfaces.EventHandler)
	s.closed = true
	s.logger.Info().Msg("Event service closed")
	return nil
}

func (s *Service) handlersFor(t interfaces.EventType) []interfaces.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribers[t]
}

func (s *Service) logHandlerErr(t interfaces.EventType, err error) {
	if err == nil {
		return
	}
	s.logger.Error().
		Err(err).
		Str("event_type", string(t)).
		Msg("Event handler failed")
}
