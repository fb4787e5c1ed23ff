// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/toeirei/wireline/internal/logging"
	"golang.org/x/crypto/ssh"
)

const (
	defaultConnectTimeout = 10 * time.Second
	keepaliveInterval     = 15 * time.Second
	keepaliveMaxStrikes   = 3
	sshReadBufSize        = 4096
)

// SSHConn implements Connection over an SSH session with a PTY and shell.
// The server's host key is verified against the trust store before any
// application data flows; unknown or changed keys suspend the handshake
// until a trust decision arrives or the prompt deadline fires.
type SSHConn struct {
	cfg      SSHConfig
	verifier *hostKeyVerifier

	state atomic.Int32
	sent  atomic.Uint64
	recvd atomic.Uint64

	keepaliveDead atomic.Bool

	mu       sync.Mutex
	client   *ssh.Client
	session  *ssh.Session
	stdin    io.WriteCloser
	stream   *io.PipeReader
	stopKeep chan struct{}
}

// NewSSHConn builds an SSH transport verifying host keys against store.
// Without a trust prompter installed (see TrustPromptable), unknown keys
// are rejected.
func NewSSHConn(cfg SSHConfig, store HostKeyStore) *SSHConn {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Term == "" {
		cfg.Term = "xterm-256color"
	}
	if cfg.Cols <= 0 {
		cfg.Cols = 80
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 24
	}
	return &SSHConn{
		cfg:      cfg,
		verifier: newHostKeyVerifier(store, cfg.PromptTimeout),
	}
}

// SetTrustPrompter implements TrustPromptable.
func (c *SSHConn) SetTrustPrompter(p TrustPrompter) { c.verifier.setPrompter(p) }

// Connect dials, verifies the host key, authenticates, and starts a PTY
// shell session. Stdout and stderr both feed the data stream.
func (c *SSHConn) Connect(ctx context.Context) error {
	if Status(c.state.Load()) == StatusConnected {
		return Errf(ErrorIO, "already connected to %s", c.cfg.Addr())
	}
	c.state.Store(int32(StatusConnecting))
	c.keepaliveDead.Store(false)

	client, cerr := sshDial(ctx, c.cfg, c.verifier)
	if cerr != nil {
		c.state.Store(int32(StatusDisconnected))
		return cerr
	}

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		c.state.Store(int32(StatusDisconnected))
		return WrapErr(ErrorHandshakeFailed, fmt.Errorf("opening session on %s: %w", c.cfg.Addr(), err))
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(c.cfg.Term, c.cfg.Rows, c.cfg.Cols, modes); err != nil {
		_ = session.Close()
		_ = client.Close()
		c.state.Store(int32(StatusDisconnected))
		return WrapErr(ErrorHandshakeFailed, fmt.Errorf("requesting pty on %s: %w", c.cfg.Addr(), err))
	}

	stdin, err := session.StdinPipe()
	if err == nil {
		var stdout, stderr io.Reader
		stdout, err = session.StdoutPipe()
		if err == nil {
			stderr, err = session.StderrPipe()
			if err == nil {
				err = session.Shell()
			}
		}
		if err == nil {
			pr, pw := io.Pipe()
			var wg sync.WaitGroup
			for _, r := range []io.Reader{stdout, stderr} {
				wg.Add(1)
				go func(r io.Reader) {
					defer wg.Done()
					_, _ = io.Copy(pw, r)
				}(r)
			}
			go func() {
				wg.Wait()
				_ = pw.Close()
			}()

			stop := make(chan struct{})
			go c.keepalive(client, stop)

			c.mu.Lock()
			c.client = client
			c.session = session
			c.stdin = stdin
			c.stream = pr
			c.stopKeep = stop
			c.mu.Unlock()

			c.state.Store(int32(StatusConnected))
			logging.Infof("conn: ssh connected to %s (%s %dx%d)", c.Description(), c.cfg.Term, c.cfg.Cols, c.cfg.Rows)
			return nil
		}
	}

	_ = session.Close()
	_ = client.Close()
	c.state.Store(int32(StatusDisconnected))
	return WrapErr(ErrorHandshakeFailed, fmt.Errorf("starting shell on %s: %w", c.cfg.Addr(), err))
}

// keepalive pings the server on a fixed cadence. Three consecutive
// failures tear the session down through the I/O error path.
func (c *SSHConn) keepalive(client *ssh.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	strikes := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@wireline", true, nil); err != nil {
				strikes++
				logging.Warnf("conn: keepalive to %s failed (%d/%d): %v", c.cfg.Addr(), strikes, keepaliveMaxStrikes, err)
				if strikes >= keepaliveMaxStrikes {
					c.keepaliveDead.Store(true)
					_ = client.Close()
					return
				}
			} else {
				strikes = 0
			}
		}
	}
}

// Disconnect closes the session and the client. Idempotent; closing
// unblocks an in-flight Read.
func (c *SSHConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		c.state.Store(int32(StatusDisconnected))
		return nil
	}
	c.state.Store(int32(StatusClosing))

	close(c.stopKeep)
	c.stopKeep = nil
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
	err := c.client.Close()
	c.client = nil
	c.stdin = nil
	c.stream = nil

	c.state.Store(int32(StatusDisconnected))
	logging.Infof("conn: ssh disconnected from %s (sent %d, received %d)",
		c.cfg.Addr(), c.sent.Load(), c.recvd.Load())
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return WrapErr(ErrorIO, fmt.Errorf("closing %s: %w", c.cfg.Addr(), err))
	}
	return nil
}

// Send writes bytes into the session's stdin.
func (c *SSHConn) Send(data []byte) (int, error) {
	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()
	if stdin == nil {
		return 0, Errf(ErrorIO, "not connected to %s", c.cfg.Addr())
	}
	n, err := stdin.Write(data)
	c.sent.Add(uint64(n))
	if err != nil {
		return n, WrapErr(ErrorIO, fmt.Errorf("writing to %s: %w", c.cfg.Addr(), err))
	}
	return n, nil
}

// Read blocks until the session produces bytes. Remote EOF reads as
// io.EOF (orderly close); a keepalive-declared death reads as an I/O
// fault so the actor reports it instead of a silent hang.
func (c *SSHConn) Read() ([]byte, error) {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil, io.EOF
	}

	buf := make([]byte, sshReadBufSize)
	n, err := stream.Read(buf)
	if n > 0 {
		c.recvd.Add(uint64(n))
		return buf[:n], nil
	}
	if err == nil {
		return nil, io.EOF
	}
	if c.keepaliveDead.Load() {
		return nil, Errf(ErrorIO, "session to %s lost (keepalive failed %d times)", c.cfg.Addr(), keepaliveMaxStrikes)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return nil, io.EOF
	}
	if s := Status(c.state.Load()); s == StatusClosing || s == StatusDisconnected {
		return nil, io.EOF
	}
	return nil, WrapErr(ErrorIO, fmt.Errorf("reading from %s: %w", c.cfg.Addr(), err))
}

// Resize forwards a window size change to the remote PTY.
func (c *SSHConn) Resize(cols, rows int) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return Errf(ErrorIO, "not connected to %s", c.cfg.Addr())
	}
	if err := session.WindowChange(rows, cols); err != nil {
		return WrapErr(ErrorIO, fmt.Errorf("resizing session on %s: %w", c.cfg.Addr(), err))
	}
	return nil
}

// State returns the current lifecycle state.
func (c *SSHConn) State() Status { return Status(c.state.Load()) }

// Kind returns KindSSH.
func (c *SSHConn) Kind() Kind { return KindSSH }

// Description renders the target like "user@host:22".
func (c *SSHConn) Description() string {
	return fmt.Sprintf("%s@%s:%d", c.cfg.Username, c.cfg.Host, c.cfg.Port)
}

// BytesSent returns the cumulative byte count written on this instance.
func (c *SSHConn) BytesSent() uint64 { return c.sent.Load() }

// BytesReceived returns the cumulative byte count read on this instance.
func (c *SSHConn) BytesReceived() uint64 { return c.recvd.Load() }

// NewSSHClient dials and authenticates per cfg with TOFU verification
// against store, prompting through p for unknown or changed keys. It is
// the shared dial path for the interactive transport, host probing, and
// file transfer.
func NewSSHClient(ctx context.Context, cfg SSHConfig, store HostKeyStore, p TrustPrompter) (*ssh.Client, error) {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	v := newHostKeyVerifier(store, cfg.PromptTimeout)
	v.setPrompter(p)
	client, cerr := sshDial(ctx, cfg, v)
	if cerr != nil {
		return nil, cerr
	}
	return client, nil
}

// sshDial performs the TCP dial, host-key verification and authentication
// for cfg. Trust faults recorded by the verifier take precedence over the
// opaque handshake error x/crypto wraps them in.
func sshDial(ctx context.Context, cfg SSHConfig, v *hostKeyVerifier) (*ssh.Client, *ConnError) {
	auth, cerr := authMethods(cfg.Auth)
	if cerr != nil {
		return nil, cerr
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: v.callback(),
		Timeout:         cfg.ConnectTimeout,
	}

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	tcp, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, WrapErr(ErrorNetwork, fmt.Errorf("dialing %s: %w", cfg.Addr(), err))
	}

	// The handshake itself is not context-aware; closing the socket on
	// cancellation makes a local Disconnect win against an in-flight
	// connect, including one suspended on a host-key prompt.
	v.setCancel(ctx.Done())
	handshakeDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = tcp.Close()
		case <-handshakeDone:
		}
	}()

	sshConn, chans, reqs, err := ssh.NewClientConn(tcp, cfg.Addr(), clientCfg)
	close(handshakeDone)
	if err != nil {
		_ = tcp.Close()
		if trustErr := v.takeErr(); trustErr != nil {
			return nil, trustErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, WrapErr(ErrorNetwork, fmt.Errorf("connect to %s canceled: %w", cfg.Addr(), ctxErr))
		}
		return nil, classifyDialErr(err)
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// authMethods builds the ssh auth chain for the configured method, with
// the SSH agent as a fallback when one is reachable.
func authMethods(cfg AuthConfig) ([]ssh.AuthMethod, *ConnError) {
	var methods []ssh.AuthMethod

	switch cfg.Method {
	case AuthPassword:
		password := cfg.Password
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			return string(password.Bytes()), nil
		}))
	case AuthPrivateKey:
		pem, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, classifyKeyErr(fmt.Errorf("reading private key %s: %w", cfg.KeyPath, err))
		}
		var signer ssh.Signer
		if cfg.Passphrase.Empty() {
			signer, err = ssh.ParsePrivateKey(pem)
			var missing *ssh.PassphraseMissingError
			if errors.As(err, &missing) {
				return nil, Errf(ErrorPassphraseInvalid, "private key %s is passphrase protected", cfg.KeyPath)
			}
		} else {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, cfg.Passphrase.Bytes())
		}
		if err != nil {
			return nil, classifyKeyErr(fmt.Errorf("parsing private key %s: %w", cfg.KeyPath, err))
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if agentClient := getSSHAgent(); agentClient != nil {
		methods = append(methods, ssh.PublicKeysCallback(agentClient.Signers))
	}

	if len(methods) == 0 {
		return nil, Errf(ErrorAuthFailed, "no authentication method available")
	}
	return methods, nil
}

// ProbeHostKey connects to a host just far enough to retrieve its public
// key, then aborts the handshake. Used to pre-seed trust without a full
// session.
func ProbeHostKey(host string, port int) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)
	const sentinel = "wireline: host key retrieved"

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	config := &ssh.ClientConfig{
		User: "wireline-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			return errors.New(sentinel)
		},
		Timeout: 5 * time.Second,
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if len(keyChan) == 1 {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	_ = client.Close()
	return nil, fmt.Errorf("handshake with %s succeeded unexpectedly", addr)
}
