// Package event is a generic, reflect-typed publish/subscribe bus. It backs
// ports.EventEmitter: the telemetry core has no per-frame tick to buffer
// against, so Emit delivers synchronously to every subscriber of the
// event's concrete type, registered by reflect type.
package event

import (
	"reflect"
	"sync"
)

// Bus is a type-keyed synchronous publish/subscribe hub.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]any)}
}

// Emit delivers event to every handler subscribed to event's concrete type.
// Implements ports.EventEmitter.
func (b *Bus) Emit(event any) {
	t := reflect.TypeOf(event)
	b.mu.RLock()
	handlers := append([]any(nil), b.handlers[t]...)
	b.mu.RUnlock()
	for _, h := range handlers {
		callHandler(h, event)
	}
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

func callHandler(handler any, event any) {
	reflect.ValueOf(handler).Call([]reflect.Value{reflect.ValueOf(event)})
}
