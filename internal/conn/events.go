// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package conn

// Event is the tagged variant flowing from an actor to the consumer.
// Events for one connection are produced and delivered in causal order.
type Event interface{ isEvent() }

// DataEvent carries payload bytes received from the peer. The engine does
// not interpret them.
type DataEvent struct {
	Bytes []byte
}

// StateChangedEvent reports a lifecycle transition. StatusConnecting is
// never skipped between Disconnected and Connected.
type StateChangedEvent struct {
	State Status
}

// ErrorEvent reports a classified fault. It is always followed by a
// transition to StatusDisconnected for the same connection.
type ErrorEvent struct {
	Err *ConnError
}

// HostKeyPromptEvent asks the consumer to decide about a previously
// unseen host identity. The connect operation stays suspended until
// Actor.RespondTrust is called or the prompt deadline fires.
type HostKeyPromptEvent struct {
	Host        string
	Port        int
	Algorithm   string
	Fingerprint string
}

// HostKeyMismatchEvent warns that a known host presented a different key
// than the recorded one. It is never auto-resolved; only the explicit
// TrustAcceptAndRemember decision proceeds.
type HostKeyMismatchEvent struct {
	Host           string
	Port           int
	OldAlgorithm   string
	OldFingerprint string
	NewAlgorithm   string
	NewFingerprint string
}

// ClosedEvent marks the end of a connection attempt or session. No
// further events follow it for the same attempt.
type ClosedEvent struct{}

func (DataEvent) isEvent()            {}
func (StateChangedEvent) isEvent()    {}
func (ErrorEvent) isEvent()           {}
func (HostKeyPromptEvent) isEvent()   {}
func (HostKeyMismatchEvent) isEvent() {}
func (ClosedEvent) isEvent()          {}
