// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for Wireline.
// This file contains the PostgreSQL implementation of the database store.
// Note: This implementation is considered experimental.
package db // import "github.com/toeirei/wireline/internal/db"

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/toeirei/wireline/internal/model"
	"github.com/uptrace/bun"
)

// PostgresStore is the PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	bun *bun.DB
}

func (s *PostgresStore) GetKnownHost(host string, port int) (*model.HostKeyRecord, error) {
	return GetKnownHostBun(s.bun, host, port)
}

func (s *PostgresStore) RecordKnownHost(rec model.HostKeyRecord) error {
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

func (s *PostgresStore) TouchKnownHost(host string, port int, when time.Time) error {
	return TouchKnownHostBun(s.bun, host, port, when)
}

func (s *PostgresStore) ForgetKnownHost(host string, port int) error {
	err := ForgetKnownHostBun(s.bun, host, port)
	if err == nil {
		_ = s.LogAction("FORGET_HOST", fmt.Sprintf("host: %s:%d", host, port))
	}
	return err
}

func (s *PostgresStore) GetAllKnownHosts() ([]model.HostKeyRecord, error) {
	return GetAllKnownHostsBun(s.bun)
}

func (s *PostgresStore) AddFavorite(f model.Favorite) (int, error) {
	id, err := AddFavoriteBun(s.bun, f)
	if err == nil {
		_ = s.LogAction("ADD_FAVORITE", fmt.Sprintf("label: '%s'", f.Label))
	}
	return id, err
}

func (s *PostgresStore) GetAllFavorites() ([]model.Favorite, error) {
	return GetAllFavoritesBun(s.bun)
}

func (s *PostgresStore) DeleteFavorite(id int) error {
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

func (s *PostgresStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

func (s *PostgresStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

func (s *PostgresStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

func (s *PostgresStore) ImportDataFromBackup(backup *model.BackupData) error {
	err := ImportDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("RESTORE_BACKUP", fmt.Sprintf("known_hosts: %d, favorites: %d", len(backup.KnownHosts), len(backup.Favorites)))
	}
	return err
}

func (s *PostgresStore) Close() error {
	return s.bun.Close()
}
