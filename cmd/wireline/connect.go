// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/i18n"
	"github.com/toeirei/wireline/internal/logging"
	"github.com/toeirei/wireline/internal/model"
	"github.com/toeirei/wireline/internal/security"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// detachByte ends the interactive session (ctrl+]).
const detachByte = 0x1d

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect <user@host[:port] | /dev/device>",
		Short: "Open an interactive session to a serial device or SSH host",
		Long: `Opens a raw-mode terminal session in the current console.
A target containing '@' is treated as an SSH destination, anything
else as a serial device path. Detach with Ctrl+].`,
		Args: cobra.ExactArgs(1),
		RunE: runConnect,
	}

	cmd.Flags().Int("baud", 0, "serial baud rate (default from config)")
	cmd.Flags().Int("data-bits", 8, "serial data bits")
	cmd.Flags().String("parity", "none", "serial parity (none, odd, even)")
	cmd.Flags().Int("stop-bits", 1, "serial stop bits (1 or 2)")
	cmd.Flags().String("flow", "none", "serial flow control (none, hardware)")
	cmd.Flags().String("key", "", "SSH private key file")
	cmd.Flags().String("log", "", "append received bytes to a transcript file")
	return cmd
}

// parseTarget turns the positional argument and flags into an engine config.
func parseTarget(cmd *cobra.Command, target string) (conn.Config, error) {
	if !strings.Contains(target, "@") {
		sc := conn.DefaultSerialConfig()
		sc.Path = target
		if cfg.Serial.Baud > 0 {
			sc.Baud = cfg.Serial.Baud
		}
		if v, _ := cmd.Flags().GetInt("baud"); v > 0 {
			sc.Baud = v
		}
		if v, _ := cmd.Flags().GetInt("data-bits"); v > 0 {
			sc.DataBits = v
		}
		if v, _ := cmd.Flags().GetString("parity"); v != "" {
			sc.Parity = v
		}
		if v, _ := cmd.Flags().GetInt("stop-bits"); v > 0 {
			sc.StopBits = v
		}
		if v, _ := cmd.Flags().GetString("flow"); v != "" {
			sc.FlowControl = v
		}
		return conn.Config{Serial: &sc}, nil
	}

	user, rest, _ := strings.Cut(target, "@")
	host := rest
	port := 22
	if h, p, ok := cutHostPort(rest); ok {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return conn.Config{}, fmt.Errorf("invalid port in target %q", target)
		}
		host, port = h, n
	}
	if user == "" || host == "" {
		return conn.Config{}, fmt.Errorf("invalid target %q, want user@host[:port]", target)
	}

	auth := conn.AuthConfig{Method: conn.AuthPassword}
	if keyPath, _ := cmd.Flags().GetString("key"); keyPath != "" {
		auth.Method = conn.AuthPrivateKey
		auth.KeyPath = keyPath
	}

	sc := conn.SSHConfig{
		Host:           host,
		Port:           port,
		Username:       user,
		Auth:           auth,
		ConnectTimeout: time.Duration(cfg.SSH.ConnectTimeout) * time.Second,
		PromptTimeout:  time.Duration(cfg.Trust.PromptTimeout) * time.Second,
	}
	return conn.Config{SSH: &sc}, nil
}

// cutHostPort splits host:port, leaving bracketed IPv6 literals intact.
func cutHostPort(s string) (host, port string, ok bool) {
	if strings.HasPrefix(s, "[") {
		end := strings.LastIndex(s, "]")
		if end < 0 {
			return "", "", false
		}
		if end+1 < len(s) && s[end+1] == ':' {
			return s[1:end], s[end+2:], true
		}
		return "", "", false
	}
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

func runConnect(cmd *cobra.Command, args []string) error {
	target, err := parseTarget(cmd, args[0])
	if err != nil {
		return err
	}

	if target.SSH != nil {
		// Resolve trust in cooked mode before the session starts, so the
		// raw-mode loop never has to prompt.
		if err := ensureHostTrusted(target.SSH.Host, target.SSH.Port); err != nil {
			return err
		}
		if err := fillSecrets(target.SSH); err != nil {
			return err
		}
	}

	var transcript *os.File
	if path, _ := cmd.Flags().GetString("log"); path != "" {
		transcript, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening transcript: %w", err)
		}
		defer transcript.Close()
	}

	fd := int(os.Stdin.Fd())
	if target.SSH != nil && term.IsTerminal(fd) {
		if cols, rows, err := term.GetSize(fd); err == nil {
			target.SSH.Cols, target.SSH.Rows = cols, rows
		}
	}

	c, err := conn.New(target, db.DefaultStore())
	if err != nil {
		return err
	}
	actor := conn.NewActor(c)
	defer actor.Close()

	bridge := conn.NewBridge()
	bridge.Register(actor)

	fmt.Fprintf(os.Stderr, "%s\r\n", i18n.T("cli.connect.opening", target.Description()))

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	actor.Connect()

	// Stdin pump. Ctrl+] detaches.
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if i := indexByte(buf[:n], detachByte); i >= 0 {
					if i > 0 {
						actor.Send(append([]byte(nil), buf[:i]...))
					}
					actor.Disconnect()
					return
				}
				actor.Send(append([]byte(nil), buf[:n]...))
			}
			if err != nil {
				actor.Disconnect()
				return
			}
		}
	}()

	var sessionErr *conn.ConnError
	bridge.Run(ctx, conn.DefaultDrainInterval, func(_ *conn.Actor, ev conn.Event) {
		switch ev := ev.(type) {
		case conn.DataEvent:
			os.Stdout.Write(ev.Bytes)
			if transcript != nil {
				if _, err := transcript.Write(ev.Bytes); err != nil {
					logging.Warnf("transcript write failed: %v", err)
				}
			}
		case conn.ErrorEvent:
			sessionErr = ev.Err
		case conn.ClosedEvent:
			cancel()
		}
	})

	term.Restore(fd, oldState)
	fmt.Fprintf(os.Stderr, "\n%s\n", i18n.T("cli.connect.closed"))
	if sessionErr != nil {
		return sessionErr
	}
	return nil
}

func indexByte(b []byte, c byte) int {
	for i := range b {
		if b[i] == c {
			return i
		}
	}
	return -1
}

// fillSecrets prompts for whatever credential the auth method needs.
func fillSecrets(sc *conn.SSHConfig) error {
	fd := int(os.Stdin.Fd())
	switch sc.Auth.Method {
	case conn.AuthPrivateKey:
		fmt.Print(i18n.T("cli.connect.passphrase_prompt", sc.Auth.KeyPath))
		pw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return err
		}
		sc.Auth.Passphrase = security.FromBytes(pw)
	default:
		fmt.Print(i18n.T("cli.connect.password_prompt", sc.Username, sc.Host))
		pw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return err
		}
		sc.Auth.Password = security.FromBytes(pw)
	}
	return nil
}

// ensureHostTrusted runs the trust-on-first-use flow in cooked mode: probe
// the host's key, compare with the stored record, and ask before recording
// anything new. A changed key requires typing "yes" in full.
func ensureHostTrusted(host string, port int) error {
	fmt.Println(i18n.T("trust_host.retrieving_key", host, port))
	key, err := conn.ProbeHostKey(host, port)
	if err != nil {
		return fmt.Errorf("%s", i18n.T("trust_host.error_get_key", err))
	}
	fingerprint := ssh.FingerprintSHA256(key)
	algorithm := key.Type()

	rec, err := db.GetKnownHost(host, port)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	switch {
	case rec == nil:
		fmt.Println(i18n.T("trust_host.authenticity_warning_1", host, port))
		fmt.Println(i18n.T("trust_host.authenticity_warning_2", algorithm, fingerprint))
		if !confirm(i18n.T("trust_host.confirm_prompt"), "y") {
			return fmt.Errorf("%s", i18n.T("trust_host.not_trusted_abort"))
		}
	case rec.Fingerprint == fingerprint:
		return db.TouchKnownHost(host, port, now)
	default:
		fmt.Println(i18n.T("trust_host.changed_warning", host, port))
		fmt.Println(i18n.T("trust.old_key", rec.Algorithm, rec.Fingerprint))
		fmt.Println(i18n.T("trust.new_key", algorithm, fingerprint))
		if !confirm(i18n.T("trust_host.override_prompt"), "yes") {
			return fmt.Errorf("%s", i18n.T("trust_host.not_trusted_abort"))
		}
	}

	err = db.RecordKnownHost(model.HostKeyRecord{
		Host:          host,
		Port:          port,
		Algorithm:     algorithm,
		Fingerprint:   fingerprint,
		FirstSeen:     now,
		LastConfirmed: now,
	})
	if err != nil {
		return fmt.Errorf("%s", i18n.T("trust_host.error_save_key", err))
	}
	fmt.Println(i18n.T("trust_host.added_success", host, port))
	return nil
}

// confirm reads one line and compares it to the expected answer.
func confirm(prompt, expected string) bool {
	fmt.Printf("%s ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), expected)
}
