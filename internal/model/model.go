// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the persistence-facing records shared between the
// database layer and the user interfaces. Engine-internal types (events,
// configs, states) live with the engine; these are the rows.
package model

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// HostKeyRecord is one remembered SSH host identity, keyed by (host, port).
// Once accepted it is only ever replaced through an explicit, user-authorized
// override, never silently.
type HostKeyRecord struct {
	Host          string    `json:"host"`
	Port          int       `json:"port"`
	Algorithm     string    `json:"algorithm"`
	Fingerprint   string    `json:"fingerprint"`
	FirstSeen     time.Time `json:"first_seen"`
	LastConfirmed time.Time `json:"last_confirmed"`
}

// Address returns the host:port form used for display and lookups.
func (r HostKeyRecord) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Favorite is a saved connection target. Secrets are never part of a
// favorite; they are prompted for (or fetched from the OS keyring by an
// outer layer) at connect time.
type Favorite struct {
	ID        int       `json:"id"`
	Label     string    `json:"label"`
	Kind      string    `json:"kind"` // "serial" or "ssh"
	CreatedAt time.Time `json:"created_at"`

	// SSH fields.
	Host       string `json:"host,omitempty"`
	Port       int    `json:"port,omitempty"`
	Username   string `json:"username,omitempty"`
	AuthMethod string `json:"auth_method,omitempty"` // "password" or "key"
	KeyPath    string `json:"key_path,omitempty"`

	// Serial fields.
	SerialPath  string `json:"serial_path,omitempty"`
	Baud        int    `json:"baud,omitempty"`
	DataBits    int    `json:"data_bits,omitempty"`
	Parity      string `json:"parity,omitempty"`
	StopBits    int    `json:"stop_bits,omitempty"`
	FlowControl string `json:"flow_control,omitempty"`
}

// String renders the favorite the way pickers show it.
func (f Favorite) String() string {
	switch f.Kind {
	case "serial":
		return fmt.Sprintf("%s (%s @ %d)", f.Label, f.SerialPath, f.Baud)
	default:
		return fmt.Sprintf("%s (%s@%s:%d)", f.Label, f.Username, f.Host, f.Port)
	}
}

// AuditLogEntry records a mutation of the trust store or favorites.
type AuditLogEntry struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// BackupData is a container for all data exported in a backup.
type BackupData struct {
	// SchemaVersion helps in handling migrations during restore.
	SchemaVersion int       `json:"schema_version"`
	ExportedAt    time.Time `json:"exported_at"`

	KnownHosts      []HostKeyRecord `json:"known_hosts"`
	Favorites       []Favorite      `json:"favorites"`
	AuditLogEntries []AuditLogEntry `json:"audit_log_entries"`
}
