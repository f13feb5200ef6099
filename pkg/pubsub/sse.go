package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ritzau/circulation/pkg/logging"
)

// ErrClosed is returned by a publisher after Close
var ErrClosed = errors.New("pubsub: publisher is closed")

// subscriptionBuffer is how many undelivered events a subscriber may lag
// behind before further events are dropped for it
const subscriptionBuffer = 16

// SSEPublisher fans events out to subscribers for delivery as Server-Sent
// Events. It retains the latest event of every topic: a new subscriber
// receives it first, so a client that connects mid-build still learns the
// current graph state. Slow subscribers lose events instead of blocking
// Publish.
type SSEPublisher struct {
	mu     sync.Mutex
	subs   map[string]map[*sseSubscription]struct{}
	latest map[string]Event
	closed bool
	logger *slog.Logger
}

// NewSSEPublisher creates a publisher with no retained events
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{
		subs:   make(map[string]map[*sseSubscription]struct{}),
		latest: make(map[string]Event),
		logger: logging.New("pubsub"),
	}
}

// Subscribe registers a subscriber on topic. The retained event, if any, is
// queued before any later event. The subscription closes when ctx is done.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     topic,
		events:    make(chan Event, subscriptionBuffer),
		publisher: p,
	}
	if last, ok := p.latest[topic]; ok {
		sub.events <- last
		p.logger.Debug("replayed latest event", "topic", topic, "version", last.Version)
	}

	if p.subs[topic] == nil {
		p.subs[topic] = make(map[*sseSubscription]struct{})
	}
	p.subs[topic][sub] = struct{}{}
	sub.stop = context.AfterFunc(ctx, func() { sub.Close() })

	return sub, nil
}

// Publish retains data as the latest event of topic and delivers it to every
// current subscriber. Versions increase by one per topic.
func (p *SSEPublisher) Publish(topic string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s event: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	event := Event{
		Topic:   topic,
		Type:    eventType,
		Data:    payload,
		Version: p.latest[topic].Version + 1,
	}
	p.latest[topic] = event

	for sub := range p.subs[topic] {
		select {
		case sub.events <- event:
		default:
			p.logger.Warn("subscriber is behind, dropping event", "topic", topic, "type", eventType, "version", event.Version)
		}
	}
	return nil
}

// Latest returns the retained event of topic
func (p *SSEPublisher) Latest(topic string) (Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	event, ok := p.latest[topic]
	return event, ok
}

// Close ends every subscription. Later calls to Subscribe and Publish fail.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, set := range p.subs {
		for sub := range set {
			sub.stop()
			sub.done = true
			close(sub.events)
		}
	}
	p.subs = make(map[string]map[*sseSubscription]struct{})
	return nil
}

// remove unregisters sub and closes its channel. The done and stop fields are guarded by p.mu.
func (p *SSEPublisher) remove(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sub.stop != nil {
		sub.stop()
	}
	if sub.done {
		return
	}
	sub.done = true
	close(sub.events)

	if set := p.subs[sub.topic]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(p.subs, sub.topic)
		}
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher
	stop      func() bool
	done      bool
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

// Close unsubscribes and closes the event channel. It is safe to call more than once.
func (s *sseSubscription) Close() error {
	s.publisher.remove(s)
	return nil
}

// WriteSSE writes event as one SSE frame: "id: <version>\ndata: <json>\n\n"
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pubsub: marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Version, payload)
	return err
}
