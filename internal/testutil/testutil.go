// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// package testutil provides small in-memory doubles for the connection
// engine: a host-key store, scripted trust prompters, and a scripted
// transport. No mock framework; tests wire these by hand.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/model"
)

// FakeHostKeyStore is an in-memory conn.HostKeyStore.
type FakeHostKeyStore struct {
	mu      sync.Mutex
	records map[string]model.HostKeyRecord

	Lookups int
	Writes  int
}

// NewFakeHostKeyStore returns an empty store.
func NewFakeHostKeyStore() *FakeHostKeyStore {
	return &FakeHostKeyStore{records: make(map[string]model.HostKeyRecord)}
}

func hostKey(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }

// GetKnownHost returns (nil, nil) for unknown hosts.
func (s *FakeHostKeyStore) GetKnownHost(host string, port int) (*model.HostKeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lookups++
	rec, ok := s.records[hostKey(host, port)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// RecordKnownHost creates or overwrites the record.
func (s *FakeHostKeyStore) RecordKnownHost(rec model.HostKeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	s.records[hostKey(rec.Host, rec.Port)] = rec
	return nil
}

// TouchKnownHost bumps last_confirmed on an existing record.
func (s *FakeHostKeyStore) TouchKnownHost(host string, port int, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[hostKey(host, port)]; ok {
		rec.LastConfirmed = when
		s.records[hostKey(host, port)] = rec
	}
	return nil
}

// ForgetKnownHost removes the record if present.
func (s *FakeHostKeyStore) ForgetKnownHost(host string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, hostKey(host, port))
	return nil
}

// Count returns the number of stored records.
func (s *FakeHostKeyStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ScriptedPrompter answers host-key prompts from a fixed script and
// records every request it saw. An exhausted script rejects.
type ScriptedPrompter struct {
	mu        sync.Mutex
	decisions []conn.TrustDecision

	Requests []conn.HostKeyRequest
}

// NewScriptedPrompter queues the given decisions in order.
func NewScriptedPrompter(decisions ...conn.TrustDecision) *ScriptedPrompter {
	return &ScriptedPrompter{decisions: decisions}
}

// PromptHostKey implements conn.TrustPrompter.
func (p *ScriptedPrompter) PromptHostKey(req conn.HostKeyRequest) <-chan conn.TrustDecision {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)

	ch := make(chan conn.TrustDecision, 1)
	if len(p.decisions) == 0 {
		ch <- conn.TrustReject
		return ch
	}
	d := p.decisions[0]
	p.decisions = p.decisions[1:]
	ch <- d
	return ch
}

// PromptCount returns how many prompts the script has answered.
func (p *ScriptedPrompter) PromptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// SilentPrompter records prompts but never answers them, for exercising
// the prompt deadline.
type SilentPrompter struct {
	mu       sync.Mutex
	Requests []conn.HostKeyRequest
}

// PromptHostKey implements conn.TrustPrompter with an answer that never
// comes.
func (p *SilentPrompter) PromptHostKey(req conn.HostKeyRequest) <-chan conn.TrustDecision {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()
	return make(chan conn.TrustDecision)
}

// PromptCount returns how many prompts were raised.
func (p *SilentPrompter) PromptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// FakeConn is a scripted conn.Connection. Reads block on an in-memory
// feed; with Echo set, every Send loops back into the feed.
type FakeConn struct {
	Desc       string
	Type       conn.Kind
	ConnectErr error
	Echo       bool

	state atomic.Int32
	sent  atomic.Uint64
	recvd atomic.Uint64

	mu       sync.Mutex
	sentBuf  bytes.Buffer
	feed     chan []byte
	closed   chan struct{}
	readErr  error
	connects int
}

// NewFakeConn returns a disconnected fake transport.
func NewFakeConn() *FakeConn {
	return &FakeConn{Desc: "fake", feed: make(chan []byte, 64)}
}

// Connect succeeds unless ConnectErr is set. Each call opens a fresh
// close barrier so the same instance can be reconnected.
func (c *FakeConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	c.state.Store(int32(conn.StatusConnecting))
	if err := c.ConnectErr; err != nil {
		c.state.Store(int32(conn.StatusDisconnected))
		return err
	}
	if err := ctx.Err(); err != nil {
		c.state.Store(int32(conn.StatusDisconnected))
		return err
	}
	c.closed = make(chan struct{})
	c.readErr = nil
	c.state.Store(int32(conn.StatusConnected))
	return nil
}

// Disconnect is idempotent and unblocks a pending Read.
func (c *FakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed != nil {
		select {
		case <-c.closed:
		default:
			close(c.closed)
		}
	}
	c.state.Store(int32(conn.StatusDisconnected))
	return nil
}

// Send records the bytes and counts them; in Echo mode they come back on
// the next Read.
func (c *FakeConn) Send(data []byte) (int, error) {
	if conn.Status(c.state.Load()) != conn.StatusConnected {
		return 0, fmt.Errorf("fake: not connected")
	}
	c.mu.Lock()
	c.sentBuf.Write(data)
	c.mu.Unlock()
	c.sent.Add(uint64(len(data)))
	if c.Echo {
		buf := make([]byte, len(data))
		copy(buf, data)
		c.feed <- buf
	}
	return len(data), nil
}

// Read blocks until fed bytes, a close, or an injected error.
func (c *FakeConn) Read() ([]byte, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed == nil {
		return nil, io.EOF
	}
	select {
	case data := <-c.feed:
		c.recvd.Add(uint64(len(data)))
		return data, nil
	case <-closed:
		// Drain anything fed before the close raced in.
		select {
		case data := <-c.feed:
			c.recvd.Add(uint64(len(data)))
			return data, nil
		default:
		}
		c.mu.Lock()
		err := c.readErr
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}

// Feed queues bytes for the next Read.
func (c *FakeConn) Feed(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	c.feed <- buf
}

// CloseRemote simulates an orderly remote close.
func (c *FakeConn) CloseRemote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed != nil {
		select {
		case <-c.closed:
		default:
			close(c.closed)
		}
	}
	c.state.Store(int32(conn.StatusDisconnected))
}

// FailRead simulates transport death: the pending Read returns err.
func (c *FakeConn) FailRead(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
	if c.closed != nil {
		select {
		case <-c.closed:
		default:
			close(c.closed)
		}
	}
	c.state.Store(int32(conn.StatusDisconnected))
}

// SentBytes returns everything written through Send so far.
func (c *FakeConn) SentBytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, c.sentBuf.Len())
	copy(out, c.sentBuf.Bytes())
	return out
}

// Connects returns how many Connect calls the instance has seen.
func (c *FakeConn) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *FakeConn) State() conn.Status { return conn.Status(c.state.Load()) }

func (c *FakeConn) Kind() conn.Kind { return c.Type }

// Description implements conn.Connection.
func (c *FakeConn) Description() string { return c.Desc }

func (c *FakeConn) BytesSent() uint64 { return c.sent.Load() }

func (c *FakeConn) BytesReceived() uint64 { return c.recvd.Load() }
