package db

import (
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/toeirei/wireline/internal/model"
	"github.com/uptrace/bun"
)

// MySQLStore is the MySQL implementation of the Store interface.
// The DSN format is "user:password@tcp(host:port)/dbname"; append
// `?parseTime=true` so DATETIME columns scan into time.Time.
type MySQLStore struct {
	bun *bun.DB
}

func (s *MySQLStore) GetKnownHost(host string, port int) (*model.HostKeyRecord, error) {
	return GetKnownHostBun(s.bun, host, port)
}

func (s *MySQLStore) RecordKnownHost(rec model.HostKeyRecord) error {
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

func (s *MySQLStore) TouchKnownHost(host string, port int, when time.Time) error {
	return TouchKnownHostBun(s.bun, host, port, when)
}

func (s *MySQLStore) ForgetKnownHost(host string, port int) error {
	err := ForgetKnownHostBun(s.bun, host, port)
	if err == nil {
		_ = s.LogAction("FORGET_HOST", fmt.Sprintf("host: %s:%d", host, port))
	}
	return err
}

func (s *MySQLStore) GetAllKnownHosts() ([]model.HostKeyRecord, error) {
	return GetAllKnownHostsBun(s.bun)
}

func (s *MySQLStore) AddFavorite(f model.Favorite) (int, error) {
	id, err := AddFavoriteBun(s.bun, f)
	if err == nil {
		_ = s.LogAction("ADD_FAVORITE", fmt.Sprintf("label: '%s'", f.Label))
	}
	return id, err
}

func (s *MySQLStore) GetAllFavorites() ([]model.Favorite, error) {
	return GetAllFavoritesBun(s.bun)
}

func (s *MySQLStore) DeleteFavorite(id int) error {
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

func (s *MySQLStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

func (s *MySQLStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

func (s *MySQLStore) ExportDataForBackup() (*model.BackupData, error) {
	return ExportDataForBackupBun(s.bun)
}

func (s *MySQLStore) ImportDataFromBackup(backup *model.BackupData) error {
	err := ImportDataFromBackupBun(s.bun, backup)
	if err == nil {
		_ = s.LogAction("RESTORE_BACKUP", fmt.Sprintf("known_hosts: %d, favorites: %d", len(backup.KnownHosts), len(backup.Favorites)))
	}
	return err
}

func (s *MySQLStore) Close() error {
	return s.bun.Close()
}
