// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

// Package events implements the in-process event bus used for synchronous
// cross-subsystem fan-out.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
)

var mon = monkit.Package()

// Handler consumes a published event payload.
type Handler func(ctx context.Context, payload map[string]any) error

// HandlerFailure describes a single handler that failed during a publish.
type HandlerFailure struct {
	EventType   string
	HandlerName string
	Err         error
}

type registration struct {
	name    string
	handler Handler
}

// Bus dispatches events to subscribed handlers, sequentially and in
// subscription order. A failing handler never prevents the remaining
// handlers from running.
type Bus struct {
	log *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]registration
}

// NewBus creates an event bus.
func NewBus(log *zap.Logger) *Bus {
	return &Bus{
		log:      log,
		handlers: map[string][]registration{},
	}
}

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the process-wide bus.
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = NewBus(zap.L().Named("events"))
	})
	return defaultBus
}

// Subscribe registers a named handler for an event type. Handlers are
// invoked in subscription order.
func (bus *Bus) Subscribe(eventType, name string, handler Handler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.handlers[eventType] = append(bus.handlers[eventType], registration{
		name:    name,
		handler: handler,
	})
}

// Unsubscribe removes the first handler registered under name for the event
// type. A missing handler is logged and otherwise ignored.
func (bus *Bus) Unsubscribe(eventType, name string) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	regs := bus.handlers[eventType]
	for i, reg := range regs {
		if reg.name == name {
			bus.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
	bus.log.Warn("unsubscribe for unknown handler",
		zap.String("event_type", eventType),
		zap.String("handler", name))
}

// Clear drops every registered handler. Intended for tests.
func (bus *Bus) Clear() {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handlers = map[string][]registration{}
}

// Publish dispatches the payload to every handler of the event type and
// returns the failures, one per handler that errored or panicked. Handlers
// registered at dispatch time see the call even if they unsubscribe
// concurrently; the registration list is copied under the read lock so
// handlers may re-enter the bus.
func (bus *Bus) Publish(ctx context.Context, eventType string, payload map[string]any) (failures []HandlerFailure) {
	defer mon.Task()(&ctx)(nil)

	bus.mu.RLock()
	regs := make([]registration, len(bus.handlers[eventType]))
	copy(regs, bus.handlers[eventType])
	bus.mu.RUnlock()

	for _, reg := range regs {
		if err := bus.dispatch(ctx, reg, payload); err != nil {
			bus.log.Warn("event handler failed",
				zap.String("event_type", eventType),
				zap.String("handler", reg.name),
				zap.Error(err))
			failures = append(failures, HandlerFailure{
				EventType:   eventType,
				HandlerName: reg.name,
				Err:         err,
			})
		}
	}
	return failures
}

func (bus *Bus) dispatch(ctx context.Context, reg registration, payload map[string]any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return reg.handler(ctx, payload)
}
