// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// package conn implements Wireline's connection engine: one capability
// interface over two transports (a local serial device and an SSH session),
// the actor that owns a transport and serializes access to it, and the
// event bridge that hands actor output to a single-threaded consumer.
// The engine never interprets payload bytes and never persists secrets.
package conn // import "github.com/toeirei/wireline/internal/conn"

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/toeirei/wireline/internal/security"
)

// Status is the lifecycle state of a connection instance.
type Status int

const (
	// StatusDisconnected indicates no connection.
	StatusDisconnected Status = iota

	// StatusConnecting indicates connection in progress. It is an internal
	// sub-state: observers see it only through StateChangedEvent.
	StatusConnecting

	// StatusConnected indicates an active connection.
	StatusConnected

	// StatusClosing indicates a local disconnect in progress.
	StatusClosing
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Kind identifies the transport behind a connection.
type Kind int

const (
	// KindSerial is a local serial device.
	KindSerial Kind = iota

	// KindSSH is a remote SSH session.
	KindSSH
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindSSH:
		return "ssh"
	default:
		return "unknown"
	}
}

// Connection is the capability contract shared by both transports. A
// Connection is not safe for arbitrary concurrent use; the Actor is the
// single point of mutual exclusion for Connect/Send/Disconnect, with Read
// running as its own duty. Counters are monotonic per instance and survive
// a re-Connect of the same instance.
type Connection interface {
	// Connect establishes the underlying channel. It blocks until the
	// channel is established or failed; the returned error carries an
	// ErrorKind from the engine taxonomy.
	Connect(ctx context.Context) error

	// Disconnect releases the transport's resources. It is idempotent: a
	// second call on an already-disconnected instance is a no-op.
	Disconnect() error

	// Send blocks until the transport buffer accepts the bytes. Partial
	// writes are permitted and reported via the count.
	Send(data []byte) (int, error)

	// Read blocks until at least one byte is available, the peer closes
	// (io.EOF), or an error occurs. It never returns an empty chunk
	// without also signaling closure or error.
	Read() ([]byte, error)

	// Pure observers, no suspension.
	State() Status
	Kind() Kind
	Description() string
	BytesSent() uint64
	BytesReceived() uint64
}

// Resizer is implemented by transports that can forward terminal size
// changes to the peer. The serial transport has no notion of size.
type Resizer interface {
	Resize(cols, rows int) error
}

// TrustPromptable is implemented by transports that need interactive
// host-key decisions. The actor installs itself as the prompter before it
// issues Connect; a transport without a prompter rejects unknown keys.
type TrustPromptable interface {
	SetTrustPrompter(p TrustPrompter)
}

// AuthMethod selects how an SSH connection authenticates.
type AuthMethod int

const (
	// AuthPassword authenticates with a password.
	AuthPassword AuthMethod = iota

	// AuthPrivateKey authenticates with a private key file, optionally
	// passphrase-protected. An SSH agent is consulted as a fallback.
	AuthPrivateKey
)

// AuthConfig carries the credentials for an SSH connection. Secrets are
// held by value for the lifetime of the config and are never written to
// disk by the engine.
type AuthConfig struct {
	Method     AuthMethod
	Password   security.Secret
	KeyPath    string
	Passphrase security.Secret
}

// SerialConfig describes a serial connection target.
type SerialConfig struct {
	Path        string
	Baud        int
	DataBits    int
	Parity      string // "none", "odd", "even"
	StopBits    int    // 1 or 2
	FlowControl string // "none", "hardware", "software"
}

// DefaultSerialConfig returns the line defaults (115200 8N1, no flow
// control) with the device path unset.
func DefaultSerialConfig() SerialConfig {
	return SerialConfig{
		Baud:        115200,
		DataBits:    8,
		Parity:      "none",
		StopBits:    1,
		FlowControl: "none",
	}
}

// SSHConfig describes an SSH connection target.
type SSHConfig struct {
	Host     string
	Port     int
	Username string
	Auth     AuthConfig

	// ConnectTimeout bounds the TCP dial and handshake. Zero means the
	// default of 10 seconds.
	ConnectTimeout time.Duration

	// PromptTimeout bounds how long an unanswered host-key prompt blocks
	// the handshake before it degrades to a rejection. Zero means the
	// default of 5 minutes.
	PromptTimeout time.Duration

	// Terminal geometry for the requested PTY. Zero values default to
	// xterm-256color at 80x24.
	Term string
	Cols int
	Rows int
}

// Addr returns the dialable host:port.
func (c SSHConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Config is the tagged connection configuration: exactly one of Serial or
// SSH is set.
type Config struct {
	Serial *SerialConfig
	SSH    *SSHConfig
}

// Description renders the target the way status lines show it.
func (c Config) Description() string {
	switch {
	case c.Serial != nil:
		return fmt.Sprintf("%s @ %d", c.Serial.Path, c.Serial.Baud)
	case c.SSH != nil:
		port := c.SSH.Port
		if port == 0 {
			port = 22
		}
		return fmt.Sprintf("%s@%s:%d", c.SSH.Username, c.SSH.Host, port)
	default:
		return ""
	}
}

// New builds the transport for a config. SSH transports verify host keys
// against the given store; both arguments are ignored for serial targets.
func New(cfg Config, store HostKeyStore) (Connection, error) {
	switch {
	case cfg.Serial != nil:
		return NewSerialConn(*cfg.Serial), nil
	case cfg.SSH != nil:
		return NewSSHConn(*cfg.SSH, store), nil
	default:
		return nil, fmt.Errorf("empty connection config")
	}
}
