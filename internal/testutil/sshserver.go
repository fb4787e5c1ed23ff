// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"golang.org/x/crypto/ssh"
)

// SSHServer is a minimal in-process SSH daemon for exercising the real
// handshake path: password auth, one session channel with a shell that
// echoes its input, and keepalive requests answered.
type SSHServer struct {
	Host string
	Port int

	password string
	listener net.Listener

	mu          sync.Mutex
	config      *ssh.ServerConfig
	fingerprint string
	algorithm   string

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewSSHServer starts a server on a loopback port that accepts the given
// password for any username.
func NewSSHServer(password string) (*SSHServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		ln.Close()
		return nil, err
	}
	port, _ := strconv.Atoi(portStr)

	s := &SSHServer{
		Host:     "127.0.0.1",
		Port:     port,
		password: password,
		listener: ln,
		quit:     make(chan struct{}),
	}
	if err := s.RotateHostKey(); err != nil {
		ln.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// RotateHostKey generates and installs a fresh host key, as a real server
// would present after a reinstall. Safe between connections only.
func (s *SSHServer) RotateHostKey() error {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return err
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == s.password {
				return nil, nil
			}
			return nil, fmt.Errorf("wrong password for %q", meta.User())
		},
	}
	cfg.AddHostKey(signer)

	s.mu.Lock()
	s.config = cfg
	s.fingerprint = ssh.FingerprintSHA256(signer.PublicKey())
	s.algorithm = signer.PublicKey().Type()
	s.mu.Unlock()
	return nil
}

// Fingerprint returns the SHA256 fingerprint of the current host key.
func (s *SSHServer) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fingerprint
}

// Algorithm returns the current host key algorithm name.
func (s *SSHServer) Algorithm() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.algorithm
}

// Close stops the listener and waits for connection handlers to finish.
func (s *SSHServer) Close() {
	close(s.quit)
	s.listener.Close()
	s.wg.Wait()
}

func (s *SSHServer) acceptLoop() {
	defer s.wg.Done()
	for {
		tcp, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(tcp)
		}()
	}
}

func (s *SSHServer) handleConn(tcp net.Conn) {
	defer tcp.Close()

	s.mu.Lock()
	cfg := s.config
	s.mu.Unlock()

	sconn, chans, reqs, err := ssh.NewServerConn(tcp, cfg)
	if err != nil {
		return
	}
	defer sconn.Close()

	go func() {
		for req := range reqs {
			if req.WantReply {
				req.Reply(req.Type == "keepalive@wireline", nil)
			}
		}
	}()

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range chReqs {
				switch req.Type {
				case "pty-req", "shell", "env", "window-change":
					if req.WantReply {
						req.Reply(true, nil)
					}
				default:
					if req.WantReply {
						req.Reply(false, nil)
					}
				}
			}
		}()
		go func() {
			io.Copy(ch, ch)
			ch.Close()
		}()
	}
}
