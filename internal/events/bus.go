// Package events provides the non-blocking notification bus and the
// append-only activity log that sit between the queue service and its
// consumers (websocket layer, dashboard, operators).
package events

import (
	"sync"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// EventQueueUpdate is published when a queued item's position changes.
	EventQueueUpdate EventType = "queue_update"
	// EventProcessingStarted is published when an item leaves its lane.
	EventProcessingStarted EventType = "processing_started"
	// EventProcessingCompleted is published on terminal transitions,
	// success or failure (the payload carries the success flag).
	EventProcessingCompleted EventType = "processing_completed"
)

// Event represents one queue notification.
type Event struct {
	Type      EventType
	TargetID  string
	Timestamp time.Time
	Data      map[string]any
}

// Subscriber is a function that receives events.
type Subscriber func(Event)

// Bus is a non-blocking event bus using Publish/Subscribe pattern.
// Events are delivered asynchronously via buffered channels. If a
// subscriber's channel is full, the event is dropped silently; a
// slow websocket consumer must never stall queue mutation.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	bufferSize  int
}

// NewBus creates a new event bus with the specified buffer size per subscriber.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber for a specific event type. The
// subscriber function is called asynchronously in a goroutine; panics
// inside it are recovered so one bad consumer cannot take down
// delivery for the rest. Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	go func() {
		for event := range ch {
			func() {
				defer func() {
					_ = recover()
				}()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[eventType]
		for i, subCh := range subs {
			if subCh == ch {
				b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

// Publish sends an event to all subscribers of the given type. The
// send is non-blocking: a full subscriber channel drops the event for
// that subscriber only.
func (b *Bus) Publish(eventType EventType, targetID string, data map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type:      eventType,
		TargetID:  targetID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	for _, ch := range b.subscribers[eventType] {
		select {
		case ch <- event:
		default:
			// Channel full, drop for this subscriber
		}
	}
}

// Close closes all subscriber channels and clears subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, eventType)
	}
}
