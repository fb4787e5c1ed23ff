// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package conn

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/toeirei/wireline/internal/logging"
)

const (
	// Queue bounds. Emission into a full event queue blocks the producing
	// duty (backpressure); events are never dropped or reordered.
	cmdQueueSize   = 32
	eventQueueSize = 128
)

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdDisconnect
	cmdSend
	cmdResize
)

type command struct {
	kind cmdKind
	data []byte
	cols int
	rows int
}

// Actor owns exactly one Connection for its whole life and is the single
// point of mutual exclusion for it: a command loop serializes
// Connect/Send/Disconnect against the transport, and a read pump turns
// Read results into Data events and transport death into an Error plus a
// Closed. The actor never retries a failed connection on its own;
// reconnection is always a fresh Connect command.
type Actor struct {
	conn   Connection
	cmds   chan command
	events chan Event
	quit   chan struct{}
	done   chan struct{}

	closeOnce sync.Once

	promptMu sync.Mutex
	pending  chan TrustDecision
}

// NewActor wraps a transport and starts its command loop. If the
// transport needs trust decisions, the actor installs itself as the
// prompter so host-key questions surface as events and RespondTrust
// answers them.
func NewActor(c Connection) *Actor {
	a := &Actor{
		conn:   c,
		cmds:   make(chan command, cmdQueueSize),
		events: make(chan Event, eventQueueSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if tp, ok := c.(TrustPromptable); ok {
		tp.SetTrustPrompter(a)
	}
	go a.run()
	return a
}

// Events is the outbound event stream, closed when the actor shuts down.
// Events are delivered strictly in production order.
func (a *Actor) Events() <-chan Event { return a.events }

// Conn exposes the owned transport for its pure observers (state,
// counters, description). Mutations go through commands only.
func (a *Actor) Conn() Connection { return a.conn }

// Connect asks the actor to establish the connection.
func (a *Actor) Connect() { a.enqueue(command{kind: cmdConnect}) }

// Disconnect asks the actor to tear the connection down. It cancels an
// in-flight connect or read and is a no-op when already disconnected.
func (a *Actor) Disconnect() { a.enqueue(command{kind: cmdDisconnect}) }

// Send queues payload bytes for the transport.
func (a *Actor) Send(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	a.enqueue(command{kind: cmdSend, data: buf})
}

// Resize forwards a terminal size change to transports that support it.
func (a *Actor) Resize(cols, rows int) {
	a.enqueue(command{kind: cmdResize, cols: cols, rows: rows})
}

// RespondTrust answers the pending host-key prompt. Without a pending
// prompt it is a no-op; a prompt left unanswered expires to a rejection.
func (a *Actor) RespondTrust(d TrustDecision) {
	a.promptMu.Lock()
	ch := a.pending
	a.pending = nil
	a.promptMu.Unlock()
	if ch != nil {
		ch <- d
	}
}

// PromptHostKey implements TrustPrompter: it surfaces the question as an
// event and returns the channel RespondTrust feeds.
func (a *Actor) PromptHostKey(req HostKeyRequest) <-chan TrustDecision {
	ch := make(chan TrustDecision, 1)
	a.promptMu.Lock()
	a.pending = ch
	a.promptMu.Unlock()

	if req.Mismatch() {
		a.emit(HostKeyMismatchEvent{
			Host:           req.Host,
			Port:           req.Port,
			OldAlgorithm:   req.Old.Algorithm,
			OldFingerprint: req.Old.Fingerprint,
			NewAlgorithm:   req.Algorithm,
			NewFingerprint: req.Fingerprint,
		})
	} else {
		a.emit(HostKeyPromptEvent{
			Host:        req.Host,
			Port:        req.Port,
			Algorithm:   req.Algorithm,
			Fingerprint: req.Fingerprint,
		})
	}
	return ch
}

// Close shuts the actor down, releasing the transport exactly once. The
// event channel is closed after the last event.
func (a *Actor) Close() {
	a.closeOnce.Do(func() { close(a.quit) })
	<-a.done
}

// enqueue submits a command, blocking when the queue is full. After
// shutdown it is a silent no-op.
func (a *Actor) enqueue(cmd command) {
	select {
	case a.cmds <- cmd:
	case <-a.quit:
	}
}

// emit delivers an event, applying backpressure when the queue is full.
// After shutdown events are discarded.
func (a *Actor) emit(ev Event) {
	select {
	case a.events <- ev:
	case <-a.quit:
	}
}

// run is the command duty. It keeps serving commands while a connect is
// in flight so RespondTrust and Disconnect stay live, and it is the only
// goroutine that transitions session state.
func (a *Actor) run() {
	defer close(a.done)
	defer close(a.events)

	var (
		connecting    bool
		connected     bool
		disconnecting bool
		cancelConnect context.CancelFunc
		connectDone   chan *ConnError
		readDone      chan *ConnError
	)

	// finishConnect consumes the result of an in-flight connect.
	finishConnect := func(cerr *ConnError) {
		connecting = false
		connectDone = nil
		if cancelConnect != nil {
			cancelConnect()
			cancelConnect = nil
		}
		if disconnecting {
			disconnecting = false
			_ = a.conn.Disconnect()
			a.emit(StateChangedEvent{State: StatusDisconnected})
			a.emit(ClosedEvent{})
			return
		}
		if cerr != nil {
			a.emit(ErrorEvent{Err: cerr})
			a.emit(StateChangedEvent{State: StatusDisconnected})
			a.emit(ClosedEvent{})
			return
		}
		connected = true
		a.emit(StateChangedEvent{State: StatusConnected})
		readDone = make(chan *ConnError, 1)
		go a.readPump(readDone)
	}

	// finishSession consumes the read pump's exit, local or remote.
	finishSession := func(rerr *ConnError) {
		readDone = nil
		connected = false
		_ = a.conn.Disconnect()
		if rerr != nil {
			a.emit(ErrorEvent{Err: rerr})
		}
		a.emit(StateChangedEvent{State: StatusDisconnected})
		a.emit(ClosedEvent{})
	}

	for {
		select {
		case <-a.quit:
			if cancelConnect != nil {
				cancelConnect()
			}
			_ = a.conn.Disconnect()
			if connectDone != nil {
				<-connectDone
			}
			if readDone != nil {
				<-readDone
			}
			logging.Debugf("conn: actor for %s stopped (sent %d, received %d)",
				a.conn.Description(), a.conn.BytesSent(), a.conn.BytesReceived())
			return

		case cerr := <-connectDone:
			finishConnect(cerr)

		case rerr := <-readDone:
			finishSession(rerr)

		case cmd := <-a.cmds:
			switch cmd.kind {
			case cmdConnect:
				if connecting || connected {
					a.emit(ErrorEvent{Err: Errf(ErrorIO, "connect ignored: %s is not disconnected", a.conn.Description())})
					continue
				}
				connecting = true
				disconnecting = false
				var ctx context.Context
				ctx, cancelConnect = context.WithCancel(context.Background())
				connectDone = make(chan *ConnError, 1)
				a.emit(StateChangedEvent{State: StatusConnecting})
				done := connectDone
				go func() {
					err := a.conn.Connect(ctx)
					done <- WrapErr(ErrorIO, err)
				}()

			case cmdDisconnect:
				switch {
				case connecting:
					// Cancel and let finishConnect settle the books.
					disconnecting = true
					cancelConnect()
					_ = a.conn.Disconnect()
				case connected:
					// Unblocks the read pump; finishSession emits the rest.
					_ = a.conn.Disconnect()
				default:
					// Idempotent: already disconnected, nothing to report.
				}

			case cmdSend:
				if !connected {
					a.emit(ErrorEvent{Err: Errf(ErrorIO, "send ignored: %s is not connected", a.conn.Description())})
					continue
				}
				if _, err := a.conn.Send(cmd.data); err != nil {
					// The transport is beyond saving; closing it makes the
					// read pump exit and finishSession report the fault.
					a.emit(ErrorEvent{Err: WrapErr(ErrorIO, err)})
					_ = a.conn.Disconnect()
				}

			case cmdResize:
				if r, ok := a.conn.(Resizer); ok && connected {
					if err := r.Resize(cmd.cols, cmd.rows); err != nil {
						logging.Debugf("conn: resize on %s failed: %v", a.conn.Description(), err)
					}
				}
			}
		}
	}
}

// readPump is the read duty: one blocking Read after another, each chunk
// an event, until the transport closes or fails.
func (a *Actor) readPump(done chan<- *ConnError) {
	for {
		data, err := a.conn.Read()
		if len(data) > 0 {
			a.emit(DataEvent{Bytes: data})
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				done <- nil
			} else {
				done <- WrapErr(ErrorIO, err)
			}
			return
		}
	}
}
