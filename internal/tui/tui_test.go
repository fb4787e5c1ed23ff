// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/viper"
	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/model"
)

func TestAlignFooter(t *testing.T) {
	got := AlignFooter("left", "right", 20)
	if len([]rune(got)) != 20 {
		t.Errorf("expected width 20, got %d (%q)", len([]rune(got)), got)
	}
	if got[:4] != "left" || got[len(got)-5:] != "right" {
		t.Errorf("tokens misplaced: %q", got)
	}

	// Too narrow still separates with one space.
	got = AlignFooter("left", "right", 3)
	if got != "left right" {
		t.Errorf("expected single-space separation, got %q", got)
	}
}

func TestKeyToBytes(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want []byte
	}{
		{"runes", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ls")}, []byte("ls")},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, []byte{'\r'}},
		{"space", tea.KeyMsg{Type: tea.KeySpace}, []byte{' '}},
		{"backspace", tea.KeyMsg{Type: tea.KeyBackspace}, []byte{0x7f}},
		{"esc", tea.KeyMsg{Type: tea.KeyEsc}, []byte{0x1b}},
		{"up", tea.KeyMsg{Type: tea.KeyUp}, []byte("\x1b[A")},
		{"ctrl+a", tea.KeyMsg{Type: tea.KeyCtrlA}, []byte{0x01}},
		{"ctrl+z", tea.KeyMsg{Type: tea.KeyCtrlZ}, []byte{0x1a}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keyToBytes(tt.msg)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("keyToBytes(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestConnectFormValidation(t *testing.T) {
	m := newConnectFormModel()

	// SSH with no host must fail.
	if _, err := m.buildConfig(); err == nil {
		t.Fatal("expected error for empty host")
	}

	m.ssh[sshFieldHost].SetValue("example.net")
	m.ssh[sshFieldUser].SetValue("admin")
	cfg, err := m.buildConfig()
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.SSH == nil {
		t.Fatal("expected ssh config")
	}
	if cfg.SSH.Port != 22 {
		t.Errorf("default port = %d, want 22", cfg.SSH.Port)
	}
	if cfg.SSH.Auth.Method != conn.AuthPassword {
		t.Errorf("auth method = %v, want password", cfg.SSH.Auth.Method)
	}

	// A key path switches the auth method.
	m.ssh[sshFieldKeyPath].SetValue("/home/u/.ssh/id_ed25519")
	cfg, err = m.buildConfig()
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.SSH.Auth.Method != conn.AuthPrivateKey {
		t.Errorf("auth method = %v, want private key", cfg.SSH.Auth.Method)
	}

	// Garbage port is rejected.
	m.ssh[sshFieldPort].SetValue("not-a-port")
	if _, err := m.buildConfig(); err == nil {
		t.Fatal("expected error for bad port")
	}
}

func TestConnectFormSerialValidation(t *testing.T) {
	m := newConnectFormModel()
	m.kind = conn.KindSerial

	if _, err := m.buildConfig(); err == nil {
		t.Fatal("expected error for empty device path")
	}

	m.serial[serialFieldPath].SetValue("/dev/ttyUSB0")
	cfg, err := m.buildConfig()
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Serial == nil {
		t.Fatal("expected serial config")
	}
	if cfg.Serial.Baud != 115200 {
		t.Errorf("default baud = %d, want 115200", cfg.Serial.Baud)
	}

	m.serial[serialFieldBaud].SetValue("0")
	if _, err := m.buildConfig(); err == nil {
		t.Fatal("expected error for zero baud")
	}
}

func TestConnectFormKindToggle(t *testing.T) {
	m := newConnectFormModel()
	if m.kind != conn.KindSSH {
		t.Fatalf("initial kind = %v, want ssh", m.kind)
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = updated.(*connectFormModel)
	if m.kind != conn.KindSerial {
		t.Errorf("after toggle kind = %v, want serial", m.kind)
	}
}

func TestSessionPromptFromEvents(t *testing.T) {
	m := &sessionModel{}

	m.apply(conn.StateChangedEvent{State: conn.StatusConnecting})
	if m.status != conn.StatusConnecting {
		t.Errorf("status = %v, want connecting", m.status)
	}

	m.apply(conn.HostKeyPromptEvent{
		Host: "h", Port: 22, Algorithm: "ssh-ed25519", Fingerprint: "SHA256:xyz",
	})
	if m.prompt == nil {
		t.Fatal("expected prompt state")
	}
	if m.prompt.mismatch {
		t.Error("first contact should not be a mismatch")
	}
	if m.prompt.button != 0 {
		t.Error("first contact should default to accept")
	}

	m.prompt = nil
	m.apply(conn.HostKeyMismatchEvent{
		Host: "h", Port: 22,
		OldAlgorithm: "ssh-ed25519", OldFingerprint: "SHA256:old",
		NewAlgorithm: "ssh-ed25519", NewFingerprint: "SHA256:new",
	})
	if m.prompt == nil || !m.prompt.mismatch {
		t.Fatal("expected mismatch prompt")
	}
	if m.prompt.button != 1 {
		t.Error("mismatch should default to reject")
	}

	m.apply(conn.ClosedEvent{})
	if !m.closed {
		t.Error("expected closed after ClosedEvent")
	}
}

func TestSessionDataAppends(t *testing.T) {
	m := &sessionModel{}
	if !m.apply(conn.DataEvent{Bytes: []byte("hello ")}) {
		t.Error("data event should mark the view dirty")
	}
	m.apply(conn.DataEvent{Bytes: []byte("world")})
	if string(m.output) != "hello world" {
		t.Errorf("output = %q", m.output)
	}
}

func TestHostsViewFilter(t *testing.T) {
	if err := db.InitDB("sqlite", "file:tui_hosts_test?mode=memory&cache=shared"); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	now := time.Now().UTC()
	for _, h := range []string{"alpha.example.net", "beta.example.net"} {
		rec := model.HostKeyRecord{
			Host: h, Port: 22, Algorithm: "ssh-ed25519",
			Fingerprint: "SHA256:" + h, FirstSeen: now, LastConfirmed: now,
		}
		if err := db.RecordKnownHost(rec); err != nil {
			t.Fatalf("RecordKnownHost: %v", err)
		}
	}

	m := newHostsViewModel()
	if len(m.visible) != 2 {
		t.Fatalf("visible = %d, want 2", len(m.visible))
	}

	m.filter = "alpha"
	m.rebuildVisible()
	if len(m.visible) != 1 || m.visible[0].Host != "alpha.example.net" {
		t.Errorf("filter result wrong: %+v", m.visible)
	}

	m.filter = "nomatch"
	m.rebuildVisible()
	if len(m.visible) != 0 {
		t.Errorf("expected no matches, got %d", len(m.visible))
	}
}

func TestFavoriteConfigRoundTrip(t *testing.T) {
	f := model.Favorite{
		Label: "lab router", Kind: "serial",
		SerialPath: "/dev/ttyUSB1", Baud: 9600, Parity: "even",
	}
	cfg := configFor(f)
	if cfg.Serial == nil {
		t.Fatal("expected serial config")
	}
	if cfg.Serial.Path != "/dev/ttyUSB1" || cfg.Serial.Baud != 9600 || cfg.Serial.Parity != "even" {
		t.Errorf("serial config wrong: %+v", cfg.Serial)
	}
	// Unset fields fall back to line defaults.
	if cfg.Serial.DataBits != 8 || cfg.Serial.StopBits != 1 {
		t.Errorf("defaults not applied: %+v", cfg.Serial)
	}

	f = model.Favorite{
		Label: "edge", Kind: "ssh",
		Host: "edge.example.net", Port: 2200, Username: "ops",
		AuthMethod: "key", KeyPath: "/home/ops/.ssh/id_ed25519",
	}
	cfg = configFor(f)
	if cfg.SSH == nil {
		t.Fatal("expected ssh config")
	}
	if cfg.SSH.Auth.Method != conn.AuthPrivateKey || cfg.SSH.Auth.KeyPath != f.KeyPath {
		t.Errorf("ssh auth wrong: %+v", cfg.SSH.Auth)
	}
	if !cfg.SSH.Auth.Password.Empty() || !cfg.SSH.Auth.Passphrase.Empty() {
		t.Error("favorite must not carry secrets")
	}
}

func TestAuditActionStyleCovers(t *testing.T) {
	for _, action := range []string{
		"TRUST_HOST", "TRUST_OVERRIDE", "FORGET_HOST",
		"ADD_FAVORITE", "DELETE_FAVORITE", "RESTORE_BACKUP", "SOMETHING_ELSE",
	} {
		// Must not panic and must return a usable style.
		_ = auditActionStyle(action).Render(action)
	}
}

func TestLastTargetRoundTrip(t *testing.T) {
	viper.Reset()
	if got := lastTargetConfig(); got != nil {
		t.Fatalf("expected no last target, got %+v", got)
	}

	rememberLastTarget(conn.Config{Serial: &conn.SerialConfig{Path: "/dev/ttyUSB0", Baud: 9600}})
	got := lastTargetConfig()
	if got == nil || got.Serial == nil {
		t.Fatal("expected serial last target")
	}
	if got.Serial.Path != "/dev/ttyUSB0" || got.Serial.Baud != 9600 {
		t.Errorf("serial target wrong: %+v", got.Serial)
	}
	if got.Serial.DataBits != 8 || got.Serial.Parity != "none" {
		t.Errorf("line defaults not backfilled: %+v", got.Serial)
	}

	rememberLastTarget(conn.Config{SSH: &conn.SSHConfig{
		Host:     "router.example.net",
		Port:     2022,
		Username: "admin",
		Auth:     conn.AuthConfig{KeyPath: "/home/admin/.ssh/id_ed25519"},
	}})
	got = lastTargetConfig()
	if got == nil || got.SSH == nil {
		t.Fatal("expected ssh last target")
	}
	if got.SSH.Host != "router.example.net" || got.SSH.Port != 2022 ||
		got.SSH.Username != "admin" || got.SSH.Auth.KeyPath != "/home/admin/.ssh/id_ed25519" {
		t.Errorf("ssh target wrong: %+v", got.SSH)
	}
	if !got.SSH.Auth.Password.Empty() {
		t.Error("last target must not carry secrets")
	}
}
