// pkg/event/event.go
package event

import (
	"sync"

	"github.com/opd-ai/go-gimbal/pkg/physics"
)

// Type represents the type of event
type Type string

// Simulation event types
const (
	SimulationStarted Type = "simulation_started"
	SimulationStopped Type = "simulation_stopped"
	TickCompleted     Type = "tick_completed"
	PositionWrapped   Type = "position_wrapped"
	GimbalSaturated   Type = "gimbal_saturated"
	ThrustSaturated   Type = "thrust_saturated"
	StabilizerEngaged Type = "stabilizer_engaged"
	ControlsChanged   Type = "controls_changed"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// Subscription identifies a registered handler. Cancel removes it from the bus.
type Subscription struct {
	ID     uint64
	Cancel func()
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	handlers map[Type][]subscriber
	nextID   uint64
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Cancel: func() { b.unsubscribe(eventType, id) },
	}
}

func (b *Bus) unsubscribe(eventType Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			// copy so that a Publish iterating the old slice is unaffected
			remaining := make([]subscriber, 0, len(subs)-1)
			remaining = append(remaining, subs[:i]...)
			remaining = append(remaining, subs[i+1:]...)
			b.handlers[eventType] = remaining
			return
		}
	}
}

// Publish sends an event to all subscribed handlers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// Specific event implementations

// TickEvent is published after every completed step
type TickEvent struct {
	BaseEvent
	Tick   uint64
	State  physics.Snapshot
	Report physics.ClampReport
}

// NewTickEvent creates a new tick event
func NewTickEvent(eventType Type, source interface{}, tick uint64, state physics.Snapshot, report physics.ClampReport) *TickEvent {
	return &TickEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		Tick:   tick,
		State:  state,
		Report: report,
	}
}

// StabilizerEvent describes one engagement of the attitude hold
type StabilizerEvent struct {
	BaseEvent
	Tick            uint64
	AngularVelocity float64
	Target          float64
	GimbalRate      float64
}

// NewStabilizerEvent creates a new stabilizer event
func NewStabilizerEvent(source interface{}, tick uint64, angularVelocity, target, gimbalRate float64) *StabilizerEvent {
	return &StabilizerEvent{
		BaseEvent: BaseEvent{
			EventType: StabilizerEngaged,
			Source:    source,
		},
		Tick:            tick,
		AngularVelocity: angularVelocity,
		Target:          target,
		GimbalRate:      gimbalRate,
	}
}

// ControlsEvent carries the held-control set before and after a change
type ControlsEvent struct {
	BaseEvent
	Previous string
	Current  string
}

// NewControlsEvent creates a new controls event
func NewControlsEvent(source interface{}, previous, current string) *ControlsEvent {
	return &ControlsEvent{
		BaseEvent: BaseEvent{
			EventType: ControlsChanged,
			Source:    source,
		},
		Previous: previous,
		Current:  current,
	}
}

// LifecycleEvent marks the start or end of a run
type LifecycleEvent struct {
	BaseEvent
	RunID string
	Ticks uint64
	Err   error
}

// NewLifecycleEvent creates a new lifecycle event
func NewLifecycleEvent(eventType Type, source interface{}, runID string, ticks uint64, err error) *LifecycleEvent {
	return &LifecycleEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		RunID: runID,
		Ticks: ticks,
		Err:   err,
	}
}
