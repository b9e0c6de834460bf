package pipeline

import (
	"sync"
)

// FrameResultHandler receives frame results from the pipeline
type FrameResultHandler interface {
	OnFrameResult(result *FrameResult)
}

// HandlerFunc adapts a function to FrameResultHandler
type HandlerFunc func(result *FrameResult)

// OnFrameResult implements FrameResultHandler
func (f HandlerFunc) OnFrameResult(result *FrameResult) { f(result) }

// EventBus provides pub/sub for frame results
type EventBus struct {
	subscribers []*eventSubscription
	mu          sync.RWMutex
}

type eventSubscription struct {
	motionOnly bool
	handler    FrameResultHandler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a handler for every frame result
// Returns an unsubscribe function
func (b *EventBus) Subscribe(handler FrameResultHandler) func() {
	return b.add(&eventSubscription{handler: handler})
}

// SubscribeMotion registers a handler for frame results that contain motion
// Returns an unsubscribe function
func (b *EventBus) SubscribeMotion(handler FrameResultHandler) func() {
	return b.add(&eventSubscription{handler: handler, motionOnly: true})
}

func (b *EventBus) add(sub *eventSubscription) func() {
	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	return func() { b.remove(sub) }
}

func (b *EventBus) remove(sub *eventSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subscribers {
		if s == sub {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends a frame result to all subscribers in subscription order
func (b *EventBus) Publish(result *FrameResult) {
	if result == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.motionOnly && !result.HasMotion() {
			continue
		}

		// Handlers run synchronously so results arrive in frame order.
		sub.handler.OnFrameResult(result)
	}
}

// SubscriberCount returns the number of active subscribers
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes all subscribers
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = nil
}
