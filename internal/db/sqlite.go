// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for Wireline.
// This file contains the SQLite implementation of the database store.
package db // import "github.com/toeirei/wireline/internal/db"

import (
	"fmt"
	"time"

	"github.com/toeirei/wireline/internal/model"
	"github.com/uptrace/bun"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SqliteStore is the SQLite implementation of the Store interface.
type SqliteStore struct {
	bun *bun.DB
}

// GetKnownHost retrieves the trust record for (host, port), or nil if unknown.
func (s *SqliteStore) GetKnownHost(host string, port int) (*model.HostKeyRecord, error) {
	return GetKnownHostBun(s.bun, host, port)
}

// RecordKnownHost creates or overwrites a trust record. An overwrite is a
// trust override and is logged as such.
func (s *SqliteStore) RecordKnownHost(rec model.HostKeyRecord) error {
	replaced, err := RecordKnownHostBun(s.bun, rec)
	if err == nil {
		action := "TRUST_HOST"
		if replaced {
			action = "TRUST_OVERRIDE"
		}
		_ = s.LogAction(action, fmt.Sprintf("host: %s, algorithm: %s, fingerprint: %s", rec.Address(), rec.Algorithm, rec.Fingerprint))
	}
	return err
}

// TouchKnownHost bumps last_confirmed for an existing trust record.
func (s *SqliteStore) TouchKnownHost(host string, port int, when time.Time) error {
	return TouchKnownHostBun(s.bun, host, port, when)
}

// ForgetKnownHost removes a trust record.
func (s *SqliteStore) ForgetKnownHost(host string, port int) error {
	err := ForgetKnownHostBun(s.bun, host, port)
	if err == nil {
		_ = s.LogAction("FORGET_HOST", fmt.Sprintf("host: %s:%d", host, port))
	}
	return err
}

// GetAllKnownHosts lists all trust records.
func (s *SqliteStore) GetAllKnownHosts() ([]model.HostKeyRecord, error) {
	return GetAllKnownHostsBun(s.bun)
}

// AddFavorite stores a saved connection profile and returns its id.
func (s *SqliteStore) AddFavorite(f model.Favorite) (int, error) {
	id, err := AddFavoriteBun(s.bun, f)
	if err == nil {
		_ = s.LogAction("ADD_FAVORITE", fmt.Sprintf("label: '%s'", f.Label))
	}
	return id, err
}

// GetAllFavorites lists all saved connection profiles.
func (s *SqliteStore) GetAllFavorites() ([]model.Favorite, error) {
	return GetAllFavoritesBun(s.bun)
}

// DeleteFavorite removes a saved connection profile by id.
func (s *SqliteStore) DeleteFavorite(id int) error {
	// Get the label before deleting for logging.
	details := fmt.Sprintf("id: %d", id)
	if f, err := GetFavoriteBun(s.bun, id); err == nil && f != nil {
		details = fmt.Sprintf("label: '%s'", f.Label)
	}
	err := DeleteFavoriteBun(s.bun, id)
	if err == nil {
		_ = s.LogAction("DELETE_FAVORITE", details)
	}
	return err
}

// GetAllAuditLogEntries retrieves all entries from the audit log, most recent first.
func (s *SqliteStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

// LogAction records an audit trail event.
func (s *SqliteStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

// ExportDataForBackup retrieves all data from the database for a backup.
// It uses a transaction to ensure a consistent snapshot of the data.
func (s *SqliteStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

// ImportDataFromBackup restores the database from a backup data structure.
// It performs a full wipe-and-replace within a single transaction.
func (s *SqliteStore) ImportDataFromBackup(backup *model.BackupData) error {
	err := ImportDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("RESTORE_BACKUP", fmt.Sprintf("known_hosts: %d, favorites: %d", len(backup.KnownHosts), len(backup.Favorites)))
	}
	return err
}

// Close releases the underlying database handle.
func (s *SqliteStore) Close() error {
	return s.bun.Close()
}
