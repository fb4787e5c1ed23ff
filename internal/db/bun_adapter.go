// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"os/user"
	"strings"
	"time"

	"github.com/toeirei/wireline/internal/model"
	"github.com/uptrace/bun"
)

// KnownHostModel maps the known_hosts table for Bun queries.
type KnownHostModel struct {
	bun.BaseModel `bun:"table:known_hosts"`
	Host          string    `bun:"host,pk"`
	Port          int       `bun:"port,pk"`
	Algorithm     string    `bun:"algorithm"`
	Fingerprint   string    `bun:"fingerprint"`
	FirstSeen     time.Time `bun:"first_seen"`
	LastConfirmed time.Time `bun:"last_confirmed"`
}

// FavoriteModel maps the favorites table.
type FavoriteModel struct {
	bun.BaseModel `bun:"table:favorites"`
	ID            int       `bun:"id,pk,autoincrement"`
	Label         string    `bun:"label"`
	Kind          string    `bun:"kind"`
	Host          string    `bun:"host"`
	Port          int       `bun:"port"`
	Username      string    `bun:"username"`
	AuthMethod    string    `bun:"auth_method"`
	KeyPath       string    `bun:"key_path"`
	SerialPath    string    `bun:"serial_path"`
	Baud          int       `bun:"baud"`
	DataBits      int       `bun:"data_bits"`
	Parity        string    `bun:"parity"`
	StopBits      int       `bun:"stop_bits"`
	FlowControl   string    `bun:"flow_control"`
	CreatedAt     time.Time `bun:"created_at"`
}

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int       `bun:"id,pk,autoincrement"`
	Timestamp     time.Time `bun:"timestamp"`
	Username      string    `bun:"username"`
	Action        string    `bun:"action"`
	Details       string    `bun:"details"`
}

func knownHostModelToModel(m KnownHostModel) model.HostKeyRecord {
	return model.HostKeyRecord{
		Host:          m.Host,
		Port:          m.Port,
		Algorithm:     m.Algorithm,
		Fingerprint:   m.Fingerprint,
		FirstSeen:     m.FirstSeen,
		LastConfirmed: m.LastConfirmed,
	}
}

func modelToKnownHostModel(r model.HostKeyRecord) KnownHostModel {
	return KnownHostModel{
		Host:          r.Host,
		Port:          r.Port,
		Algorithm:     r.Algorithm,
		Fingerprint:   r.Fingerprint,
		FirstSeen:     r.FirstSeen,
		LastConfirmed: r.LastConfirmed,
	}
}

func favoriteModelToModel(m FavoriteModel) model.Favorite {
	return model.Favorite{
		ID:          m.ID,
		Label:       m.Label,
		Kind:        m.Kind,
		Host:        m.Host,
		Port:        m.Port,
		Username:    m.Username,
		AuthMethod:  m.AuthMethod,
		KeyPath:     m.KeyPath,
		SerialPath:  m.SerialPath,
		Baud:        m.Baud,
		DataBits:    m.DataBits,
		Parity:      m.Parity,
		StopBits:    m.StopBits,
		FlowControl: m.FlowControl,
		CreatedAt:   m.CreatedAt,
	}
}

func modelToFavoriteModel(f model.Favorite) FavoriteModel {
	return FavoriteModel{
		ID:          f.ID,
		Label:       f.Label,
		Kind:        f.Kind,
		Host:        f.Host,
		Port:        f.Port,
		Username:    f.Username,
		AuthMethod:  f.AuthMethod,
		KeyPath:     f.KeyPath,
		SerialPath:  f.SerialPath,
		Baud:        f.Baud,
		DataBits:    f.DataBits,
		Parity:      f.Parity,
		StopBits:    f.StopBits,
		FlowControl: f.FlowControl,
		CreatedAt:   f.CreatedAt,
	}
}

// GetKnownHostBun returns the record for (host, port), or nil if absent.
func GetKnownHostBun(bdb *bun.DB, host string, port int) (*model.HostKeyRecord, error) {
	ctx := context.Background()
	var kh KnownHostModel
	err := bdb.NewSelect().Model(&kh).Where("host = ?", host).Where("port = ?", port).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m := knownHostModelToModel(kh)
	return &m, nil
}

// GetAllKnownHostsBun lists all trust records ordered by host, port.
func GetAllKnownHostsBun(bdb *bun.DB) ([]model.HostKeyRecord, error) {
	ctx := context.Background()
	var khs []KnownHostModel
	if err := bdb.NewSelect().Model(&khs).OrderExpr("host ASC, port ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.HostKeyRecord, 0, len(khs))
	for _, kh := range khs {
		out = append(out, knownHostModelToModel(kh))
	}
	return out, nil
}

// RecordKnownHostBun creates or overwrites the trust record for the
// record's (host, port). The update-then-insert dance is portable across
// all three dialects; the transaction keeps it atomic. It reports whether
// an existing record was replaced.
func RecordKnownHostBun(bdb *bun.DB, rec model.HostKeyRecord) (bool, error) {
	ctx := context.Background()
	m := modelToKnownHostModel(rec)
	replaced := false
	err := WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(&m).WherePK().Exec(ctx)
		if err != nil {
			return MapDBError(err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			replaced = true
			return nil
		}
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			// MySQL reports zero affected rows for updates that change
			// nothing, so an identical re-record lands here.
			mapped := MapDBError(err)
			if errors.Is(mapped, ErrDuplicate) {
				replaced = true
				return nil
			}
			return mapped
		}
		return nil
	})
	return replaced, err
}

// TouchKnownHostBun bumps last_confirmed for an existing record. Missing
// records are left alone (no error): a touch races only against forget.
func TouchKnownHostBun(bdb *bun.DB, host string, port int, when time.Time) error {
	ctx := context.Background()
	_, err := ExecRaw(ctx, bdb, "UPDATE known_hosts SET last_confirmed = ? WHERE host = ? AND port = ?", when.UTC(), host, port)
	return MapDBError(err)
}

// ForgetKnownHostBun removes the record for (host, port).
func ForgetKnownHostBun(bdb *bun.DB, host string, port int) error {
	ctx := context.Background()
	_, err := ExecRaw(ctx, bdb, "DELETE FROM known_hosts WHERE host = ? AND port = ?", host, port)
	return MapDBError(err)
}

// AddFavoriteBun inserts a favorite and returns its id. Bun fills the model's
// primary key on insert for all three dialects.
func AddFavoriteBun(bdb *bun.DB, f model.Favorite) (int, error) {
	ctx := context.Background()
	m := modelToFavoriteModel(f)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.ID = 0
	if _, err := bdb.NewInsert().Model(&m).Exec(ctx); err != nil {
		return 0, MapDBError(err)
	}
	return m.ID, nil
}

// GetFavoriteBun returns the favorite with the given id, or nil if absent.
func GetFavoriteBun(bdb *bun.DB, id int) (*model.Favorite, error) {
	ctx := context.Background()
	var m FavoriteModel
	err := bdb.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	f := favoriteModelToModel(m)
	return &f, nil
}

// GetAllFavoritesBun lists favorites ordered by label.
func GetAllFavoritesBun(bdb *bun.DB) ([]model.Favorite, error) {
	ctx := context.Background()
	var fs []FavoriteModel
	if err := bdb.NewSelect().Model(&fs).OrderExpr("label ASC, id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Favorite, 0, len(fs))
	for _, f := range fs {
		out = append(out, favoriteModelToModel(f))
	}
	return out, nil
}

// DeleteFavoriteBun removes a favorite by id.
func DeleteFavoriteBun(bdb *bun.DB, id int) error {
	ctx := context.Background()
	_, err := ExecRaw(ctx, bdb, "DELETE FROM favorites WHERE id = ?", id)
	return MapDBError(err)
}

// GetAllAuditLogEntriesBun returns the audit trail, most recent first.
func GetAllAuditLogEntriesBun(bdb *bun.DB) ([]model.AuditLogEntry, error) {
	ctx := context.Background()
	var am []AuditLogModel
	if err := bdb.NewSelect().Model(&am).OrderExpr("timestamp DESC, id DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(am))
	for _, a := range am {
		out = append(out, model.AuditLogEntry{ID: a.ID, Timestamp: a.Timestamp, Username: a.Username, Action: a.Action, Details: a.Details})
	}
	return out, nil
}

// LogActionBun inserts an audit log entry with the current OS user.
func LogActionBun(bdb *bun.DB, action string, details string) error {
	ctx := context.Background()
	curUser, err := user.Current()
	username := "unknown"
	if err == nil {
		if parts := strings.Split(curUser.Username, `\`); len(parts) > 1 {
			username = parts[1]
		} else {
			username = curUser.Username
		}
	}
	m := AuditLogModel{
		Timestamp: time.Now().UTC(),
		Username:  username,
		Action:    action,
		Details:   details,
	}
	_, err = bdb.NewInsert().Model(&m).Exec(ctx)
	return MapDBError(err)
}

// ExportDataForBackupBun exports all tables' data into a model.BackupData
// using a Bun transaction so the snapshot is consistent.
func ExportDataForBackupBun(bdb *bun.DB) (*model.BackupData, error) {
	ctx := context.Background()
	var backup *model.BackupData
	err := WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
		backup = &model.BackupData{SchemaVersion: 1, ExportedAt: time.Now().UTC()}

		var khs []KnownHostModel
		if err := tx.NewSelect().Model(&khs).Scan(ctx); err != nil {
			return err
		}
		for _, kh := range khs {
			backup.KnownHosts = append(backup.KnownHosts, knownHostModelToModel(kh))
		}

		var fs []FavoriteModel
		if err := tx.NewSelect().Model(&fs).Scan(ctx); err != nil {
			return err
		}
		for _, f := range fs {
			backup.Favorites = append(backup.Favorites, favoriteModelToModel(f))
		}

		var am []AuditLogModel
		if err := tx.NewSelect().Model(&am).Scan(ctx); err != nil {
			return err
		}
		for _, a := range am {
			backup.AuditLogEntries = append(backup.AuditLogEntries, model.AuditLogEntry{
				ID: a.ID, Timestamp: a.Timestamp, Username: a.Username, Action: a.Action, Details: a.Details,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return backup, nil
}

// ImportDataFromBackupBun replaces known hosts and favorites with the backup
// contents inside one transaction. The existing audit trail is preserved.
func ImportDataFromBackupBun(bdb *bun.DB, backup *model.BackupData) error {
	ctx := context.Background()
	return WithTx(ctx, bdb, func(ctx context.Context, tx bun.Tx) error {
		if _, err := ExecRaw(ctx, tx, "DELETE FROM known_hosts"); err != nil {
			return err
		}
		if _, err := ExecRaw(ctx, tx, "DELETE FROM favorites"); err != nil {
			return err
		}
		for _, r := range backup.KnownHosts {
			m := modelToKnownHostModel(r)
			if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}
		for _, f := range backup.Favorites {
			m := modelToFavoriteModel(f)
			m.ID = 0
			if m.CreatedAt.IsZero() {
				m.CreatedAt = time.Now().UTC()
			}
			if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}
		return nil
	})
}
