// Package events provides the notification side channel for pools and the
// components around them.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// EventPoolState is emitted on every pool state transition
	EventPoolState EventType = "pool_state"
	// EventItemFailed is emitted when a handler reports failure for an item
	EventItemFailed EventType = "item_failed"
	// EventItemPanicked is emitted when a handler panics
	EventItemPanicked EventType = "item_panicked"
	// EventQueueFull is emitted when a non-blocking enqueue is refused
	EventQueueFull EventType = "queue_full"
	// EventStoreFault is emitted when fault injection degrades a store
	EventStoreFault EventType = "store_fault"
	// EventStoreRestored is emitted when a degraded store is restored
	EventStoreRestored EventType = "store_restored"
)

// Event is a single notification. Source names the emitting component,
// usually a pool ID.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	State  string `json:"state,omitempty"`
	Worker int    `json:"worker,omitempty"`
	Item   string `json:"item,omitempty"`
	Fault  string `json:"fault,omitempty"`
	Delay  string `json:"delay,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newEvent(t EventType, source string, data EventData) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

// NewPoolStateEvent creates a pool state transition event
func NewPoolStateEvent(poolID, state string) Event {
	return newEvent(EventPoolState, poolID, EventData{State: state})
}

// NewItemFailedEvent creates an event for an item whose handler returned false
func NewItemFailedEvent(poolID string, worker int, item string) Event {
	return newEvent(EventItemFailed, poolID, EventData{Worker: worker, Item: item})
}

// NewItemPanickedEvent creates an event for a handler panic
func NewItemPanickedEvent(poolID string, worker int, item string, recovered any) Event {
	errMsg := ""
	if recovered != nil {
		errMsg = toString(recovered)
	}
	return newEvent(EventItemPanicked, poolID, EventData{Worker: worker, Item: item, Error: errMsg})
}

// NewQueueFullEvent creates an event for a refused non-blocking enqueue
func NewQueueFullEvent(poolID string) Event {
	return newEvent(EventQueueFull, poolID, EventData{})
}

// NewStoreFaultEvent creates a fault injection event
func NewStoreFaultEvent(storeID, fault string, delay time.Duration) Event {
	data := EventData{Fault: fault}
	if delay > 0 {
		data.Delay = delay.String()
	}
	return newEvent(EventStoreFault, storeID, data)
}

// NewStoreRestoredEvent creates an event for a store returning to service
func NewStoreRestoredEvent(storeID string) Event {
	return newEvent(EventStoreRestored, storeID, EventData{})
}
