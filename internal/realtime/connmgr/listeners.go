// FloorSync - Multi-Tenant Restaurant Floor Coordination
// Copyright 2026 Mohammed Siddiqui (mohammedsiddiqui6872)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mohammedsiddiqui6872/backend-sub009

package connmgr

import (
	"sync"

	"github.com/goccy/go-json"

	"github.com/mohammedsiddiqui6872/backend-sub009/internal/logging"
)

// Listener receives the raw payload of one named event.
type Listener func(data json.RawMessage)

// listenerRegistry maps event names to subscriber callbacks.
//
// Multiple subscribers per event are supported; each subscription returns an
// unsubscribe handle. An event name whose last subscriber unsubscribes is
// pruned from the map.
type listenerRegistry struct {
	mu     sync.RWMutex
	nextID int
	byName map[string]map[int]Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{byName: make(map[string]map[int]Listener)}
}

// add registers a listener and returns its unsubscribe function.
func (r *listenerRegistry) add(event string, fn Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	if r.byName[event] == nil {
		r.byName[event] = make(map[int]Listener)
	}
	r.byName[event][id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if subs, ok := r.byName[event]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(r.byName, event)
			}
		}
	}
}

// dispatch invokes every subscriber of the event with the payload.
//
// Subscriber panics are isolated: a throwing callback is logged and skipped
// so the remaining subscribers still receive the event.
func (r *listenerRegistry) dispatch(event string, data json.RawMessage) {
	r.mu.RLock()
	subs := make([]Listener, 0, len(r.byName[event]))
	for _, fn := range r.byName[event] {
		subs = append(subs, fn)
	}
	r.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logging.Error().
						Interface("panic", rec).
						Str("event", event).
						Msg("event listener panicked")
				}
			}()
			fn(data)
		}()
	}
}

// count returns the number of subscribers for an event (testing hook).
func (r *listenerRegistry) count(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName[event])
}
