// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"testing"

	"github.com/toeirei/wireline/internal/conn"
)

func TestParseTargetSSH(t *testing.T) {
	cmd := newConnectCmd()

	tests := []struct {
		target string
		host   string
		port   int
		user   string
	}{
		{"admin@router.example.net", "router.example.net", 22, "admin"},
		{"ops@edge.example.net:2200", "edge.example.net", 2200, "ops"},
		{"root@[::1]:2022", "::1", 2022, "root"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := parseTarget(cmd, tt.target)
			if err != nil {
				t.Fatalf("parseTarget(%q): %v", tt.target, err)
			}
			if got.SSH == nil {
				t.Fatal("expected ssh config")
			}
			if got.SSH.Host != tt.host || got.SSH.Port != tt.port || got.SSH.Username != tt.user {
				t.Errorf("got %s@%s:%d, want %s@%s:%d",
					got.SSH.Username, got.SSH.Host, got.SSH.Port, tt.user, tt.host, tt.port)
			}
		})
	}
}

func TestParseTargetSSHInvalid(t *testing.T) {
	cmd := newConnectCmd()
	for _, target := range []string{"@host", "user@", "user@host:notaport", "user@host:0"} {
		if _, err := parseTarget(cmd, target); err == nil {
			t.Errorf("parseTarget(%q) expected error", target)
		}
	}
}

func TestParseTargetSerial(t *testing.T) {
	cmd := newConnectCmd()
	if err := cmd.Flags().Set("baud", "9600"); err != nil {
		t.Fatal(err)
	}
	got, err := parseTarget(cmd, "/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("parseTarget: %v", err)
	}
	if got.Serial == nil {
		t.Fatal("expected serial config")
	}
	if got.Serial.Path != "/dev/ttyUSB0" || got.Serial.Baud != 9600 {
		t.Errorf("serial config wrong: %+v", got.Serial)
	}
	// Unset line parameters keep their defaults.
	def := conn.DefaultSerialConfig()
	if got.Serial.DataBits != def.DataBits || got.Serial.Parity != def.Parity {
		t.Errorf("defaults not applied: %+v", got.Serial)
	}
}

func TestHostPortArg(t *testing.T) {
	tests := []struct {
		in      string
		host    string
		port    int
		wantErr bool
	}{
		{"example.net", "example.net", 22, false},
		{"example.net:2200", "example.net", 2200, false},
		{"[::1]:2022", "::1", 2022, false},
		{"example.net:zero", "", 0, true},
		{"", "", 0, true},
	}
	for _, tt := range tests {
		host, port, err := hostPortArg(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("hostPortArg(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("hostPortArg(%q): %v", tt.in, err)
			continue
		}
		if host != tt.host || port != tt.port {
			t.Errorf("hostPortArg(%q) = %s:%d, want %s:%d", tt.in, host, port, tt.host, tt.port)
		}
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	want := []string{
		"connect", "ports", "trust-host", "hosts", "favorites",
		"backup", "restore", "maintenance", "push", "fetch",
	}
	have := map[string]bool{}
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}
