// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package conn

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/toeirei/wireline/internal/logging"
	"github.com/toeirei/wireline/internal/model"
	"golang.org/x/crypto/ssh"
)

// DefaultPromptTimeout is how long an unanswered host-key prompt blocks
// the handshake before it degrades to a rejection.
const DefaultPromptTimeout = 5 * time.Minute

// TrustDecision answers a host-key prompt. Pending prompts expire to
// TrustReject; silence never becomes trust.
type TrustDecision int

const (
	// TrustReject refuses the presented key. Nothing is recorded.
	TrustReject TrustDecision = iota

	// TrustAccept accepts the key of a previously unseen host and records
	// it. For a mismatched key it does NOT proceed: overriding a recorded
	// identity requires the distinctly-flagged decision below.
	TrustAccept

	// TrustAcceptAndRemember accepts the key and (over)writes the trust
	// record, including replacing a mismatched one.
	TrustAcceptAndRemember
)

// String returns the decision name.
func (d TrustDecision) String() string {
	switch d {
	case TrustAccept:
		return "accept"
	case TrustAcceptAndRemember:
		return "remember-and-accept"
	default:
		return "reject"
	}
}

// HostKeyStore is the narrow trust-store capability the engine consumes.
// db.Store satisfies it; tests use an in-memory fake. Lookups from
// concurrent connections never block each other; writes to the same
// (host, port) are atomic, last authorized decision wins.
type HostKeyStore interface {
	// GetKnownHost returns (nil, nil) when no record exists.
	GetKnownHost(host string, port int) (*model.HostKeyRecord, error)
	RecordKnownHost(rec model.HostKeyRecord) error
	TouchKnownHost(host string, port int, when time.Time) error
}

// HostKeyRequest describes the identity awaiting a decision. Old is nil
// for a first contact and holds the recorded identity on a mismatch.
type HostKeyRequest struct {
	Host        string
	Port        int
	Algorithm   string
	Fingerprint string
	Old         *model.HostKeyRecord
}

// Mismatch reports whether the request is a key change rather than a
// first contact.
func (r HostKeyRequest) Mismatch() bool { return r.Old != nil }

// TrustPrompter is how the verifier reaches whoever can decide. The
// returned channel yields exactly one decision; the verifier applies the
// deadline. The actor implements this by emitting a prompt event and
// wiring RespondTrust to the channel.
type TrustPrompter interface {
	PromptHostKey(req HostKeyRequest) <-chan TrustDecision
}

// TrustPrompterFunc adapts a function to the TrustPrompter interface.
type TrustPrompterFunc func(req HostKeyRequest) <-chan TrustDecision

// PromptHostKey calls f.
func (f TrustPrompterFunc) PromptHostKey(req HostKeyRequest) <-chan TrustDecision { return f(req) }

// hostKeyVerifier runs the trust-on-first-use state machine inside the
// SSH handshake. It produces an ssh.HostKeyCallback and remembers the
// classified error of the last verification, because x/crypto/ssh folds
// callback errors into an opaque handshake error.
type hostKeyVerifier struct {
	store    HostKeyStore
	prompter TrustPrompter
	timeout  time.Duration

	mu      sync.Mutex
	lastErr *ConnError
	cancel  <-chan struct{}
}

func newHostKeyVerifier(store HostKeyStore, timeout time.Duration) *hostKeyVerifier {
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}
	return &hostKeyVerifier{store: store, timeout: timeout}
}

// setPrompter installs the decision channel provider. Must happen before
// the handshake starts.
func (v *hostKeyVerifier) setPrompter(p TrustPrompter) {
	v.mu.Lock()
	v.prompter = p
	v.mu.Unlock()
}

// setCancel ties pending prompt waits to the connect attempt so a local
// disconnect wins races against a suspended handshake.
func (v *hostKeyVerifier) setCancel(cancel <-chan struct{}) {
	v.mu.Lock()
	v.cancel = cancel
	v.mu.Unlock()
}

// takeErr returns and clears the last verification error.
func (v *hostKeyVerifier) takeErr() *ConnError {
	v.mu.Lock()
	defer v.mu.Unlock()
	err := v.lastErr
	v.lastErr = nil
	return err
}

func (v *hostKeyVerifier) fail(err *ConnError) error {
	v.mu.Lock()
	v.lastErr = err
	v.mu.Unlock()
	return err
}

// callback returns the ssh.HostKeyCallback consulting the trust store.
// The host key is never trusted implicitly: no record means a prompt, a
// changed key means a mismatch warning, and an unanswered prompt means
// rejection.
func (v *hostKeyVerifier) callback() ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		host, port := splitHostPort(hostname, remote)
		fingerprint := ssh.FingerprintSHA256(key)
		algorithm := key.Type()

		rec, err := v.store.GetKnownHost(host, port)
		if err != nil {
			return v.fail(Errf(ErrorIO, "trust store lookup for %s:%d: %w", host, port, err))
		}

		if rec != nil && rec.Fingerprint == fingerprint {
			logging.Debugf("conn: known host %s:%d (%s), key confirmed", host, port, algorithm)
			_ = v.store.TouchKnownHost(host, port, time.Now().UTC())
			return nil
		}

		req := HostKeyRequest{
			Host:        host,
			Port:        port,
			Algorithm:   algorithm,
			Fingerprint: fingerprint,
			Old:         rec,
		}

		if rec != nil {
			logging.Warnf("conn: host key mismatch for %s:%d: recorded %s, presented %s",
				host, port, rec.Fingerprint, fingerprint)
			return v.resolveMismatch(req)
		}
		logging.Infof("conn: unknown host %s:%d (%s %s), prompting", host, port, algorithm, fingerprint)
		return v.resolveUnknown(req)
	}
}

// resolveUnknown handles first contact: prompt, wait, record on accept.
func (v *hostKeyVerifier) resolveUnknown(req HostKeyRequest) error {
	switch v.await(req) {
	case TrustAccept, TrustAcceptAndRemember:
		if err := v.record(req); err != nil {
			return v.fail(err)
		}
		return nil
	case trustExpired:
		return v.fail(Errf(ErrorPromptTimeout, "no trust decision for %s:%d within %s", req.Host, req.Port, v.timeout))
	default:
		return v.fail(Errf(ErrorHostKeyRejected, "host key for %s:%d rejected", req.Host, req.Port))
	}
}

// resolveMismatch handles a changed key. Only the distinctly-flagged
// override decision proceeds; a plain accept is treated as a rejection so
// key rotation can't be confused with interception by a hasty keypress.
func (v *hostKeyVerifier) resolveMismatch(req HostKeyRequest) error {
	switch v.await(req) {
	case TrustAcceptAndRemember:
		if err := v.record(req); err != nil {
			return v.fail(err)
		}
		logging.Warnf("conn: trust record for %s:%d overwritten by explicit override", req.Host, req.Port)
		return nil
	default:
		return v.fail(Errf(ErrorHostKeyRejected, "changed host key for %s:%d rejected (recorded %s, presented %s)",
			req.Host, req.Port, req.Old.Fingerprint, req.Fingerprint))
	}
}

// trustExpired is the internal outcome of an unanswered prompt. It is
// deliberately outside the exported decision values.
const trustExpired TrustDecision = -1

// await prompts and waits for a decision, bounded by the deadline. A
// missing prompter or closed channel counts as a rejection.
func (v *hostKeyVerifier) await(req HostKeyRequest) TrustDecision {
	v.mu.Lock()
	p := v.prompter
	cancel := v.cancel
	v.mu.Unlock()
	if p == nil {
		return TrustReject
	}

	timer := time.NewTimer(v.timeout)
	defer timer.Stop()

	select {
	case d, ok := <-p.PromptHostKey(req):
		if !ok {
			return TrustReject
		}
		return d
	case <-cancel:
		return TrustReject
	case <-timer.C:
		logging.Warnf("conn: host key prompt for %s:%d expired after %s, rejecting", req.Host, req.Port, v.timeout)
		return trustExpired
	}
}

// record writes the freshly accepted identity. An override replaces the
// old record wholesale: new first_seen, new last_confirmed.
func (v *hostKeyVerifier) record(req HostKeyRequest) *ConnError {
	now := time.Now().UTC()
	rec := model.HostKeyRecord{
		Host:          req.Host,
		Port:          req.Port,
		Algorithm:     req.Algorithm,
		Fingerprint:   req.Fingerprint,
		FirstSeen:     now,
		LastConfirmed: now,
	}
	if err := v.store.RecordKnownHost(rec); err != nil {
		return Errf(ErrorIO, "recording host key for %s:%d: %w", req.Host, req.Port, err)
	}
	return nil
}

// splitHostPort extracts host and port from the callback's hostname,
// falling back to the remote address and then to port 22.
func splitHostPort(hostname string, remote net.Addr) (string, int) {
	host, portStr, err := net.SplitHostPort(hostname)
	if err != nil {
		host = hostname
		portStr = ""
	}
	if portStr == "" && remote != nil {
		if _, p, err := net.SplitHostPort(remote.String()); err == nil {
			portStr = p
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		port = 22
	}
	return host, port
}
