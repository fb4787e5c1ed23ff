// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package conn

import (
	"context"
	"sync"
	"time"
)

// DefaultDrainInterval is the cadence at which consumers poll the bridge.
const DefaultDrainInterval = 20 * time.Millisecond

// maxDrainPerActor caps how many events one connection may deliver per
// drain so a firehose connection cannot starve the consumer or its
// siblings. Matches the per-actor queue bound.
const maxDrainPerActor = eventQueueSize

// Bridge hands actor events to a single-threaded consumer without ever
// blocking it. Drain is non-blocking (an empty drain is a cheap no-op)
// and preserves per-connection production order; it imposes no ordering
// or coalescing across distinct connections. Consumers either call Drain
// from their own scheduler tick (the TUI does) or let Run tick for them.
type Bridge struct {
	mu     sync.Mutex
	actors []*Actor
}

// NewBridge returns an empty bridge.
func NewBridge() *Bridge { return &Bridge{} }

// Register adds an actor's event stream to the drain set.
func (b *Bridge) Register(a *Actor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actors = append(b.actors, a)
}

// Unregister removes an actor from the drain set. Events still queued on
// the actor are left for a final Drain or dropped with it.
func (b *Bridge) Unregister(a *Actor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, got := range b.actors {
		if got == a {
			b.actors = append(b.actors[:i], b.actors[i+1:]...)
			return
		}
	}
}

// Drain delivers all pending events, in per-actor production order, and
// returns how many were delivered. It never blocks waiting for events.
func (b *Bridge) Drain(deliver func(a *Actor, ev Event)) int {
	b.mu.Lock()
	actors := make([]*Actor, len(b.actors))
	copy(actors, b.actors)
	b.mu.Unlock()

	total := 0
	for _, a := range actors {
		total += drainActor(a, deliver)
	}
	return total
}

func drainActor(a *Actor, deliver func(a *Actor, ev Event)) int {
	n := 0
	for n < maxDrainPerActor {
		select {
		case ev, ok := <-a.Events():
			if !ok {
				return n
			}
			deliver(a, ev)
			n++
		default:
			return n
		}
	}
	return n
}

// Run drains on a fixed cadence until ctx is canceled. Headless consumers
// (the CLI session loop) use this instead of their own tick.
func (b *Bridge) Run(ctx context.Context, interval time.Duration, deliver func(a *Actor, ev Event)) {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Drain(deliver)
		}
	}
}
