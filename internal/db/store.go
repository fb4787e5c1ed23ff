// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"time"

	"github.com/toeirei/wireline/internal/model"
)

// Store defines the interface for all database operations in Wireline.
// This allows for multiple database backends to be implemented.
type Store interface {
	// Known host methods. GetKnownHost returns (nil, nil) when no record
	// exists for (host, port).
	GetKnownHost(host string, port int) (*model.HostKeyRecord, error)
	RecordKnownHost(rec model.HostKeyRecord) error
	TouchKnownHost(host string, port int, when time.Time) error
	ForgetKnownHost(host string, port int) error
	GetAllKnownHosts() ([]model.HostKeyRecord, error)

	// Favorite methods
	AddFavorite(f model.Favorite) (int, error)
	GetAllFavorites() ([]model.Favorite, error)
	DeleteFavorite(id int) error

	// Audit log methods
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)
	LogAction(action, details string) error

	// Backup methods
	ExportDataForBackup() (*model.BackupData, error)
	ImportDataFromBackup(backup *model.BackupData) error

	Close() error
}

// AuditWriter records audit trail events. The default writer is the store
// itself; tests can inject their own.
type AuditWriter interface {
	LogAction(action, details string) error
}

var auditWriter AuditWriter

// SetAuditWriter installs w as the preferred audit sink. Passing nil reverts
// to the store.
func SetAuditWriter(w AuditWriter) { auditWriter = w }

// DefaultAuditWriter returns the injected audit sink, or nil if none is set.
func DefaultAuditWriter() AuditWriter { return auditWriter }
