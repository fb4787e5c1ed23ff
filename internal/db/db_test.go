package db

import (
	"bytes"
	"database/sql"
	"testing"
	"time"

	"github.com/toeirei/wireline/internal/model"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	dsn := "file:test_" + t.Name() + "?mode=memory&cache=shared"
	if err := InitDB("sqlite", dsn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	return dsn
}

func testRecord(host string, port int) model.HostKeyRecord {
	now := time.Now().UTC().Truncate(time.Second)
	return model.HostKeyRecord{
		Host:          host,
		Port:          port,
		Algorithm:     "ssh-ed25519",
		Fingerprint:   "SHA256:abcdefghijklmnopqrstuvwxyz0123456789ABCDEFG",
		FirstSeen:     now,
		LastConfirmed: now,
	}
}

func TestInitDB_Migrations_Applied(t *testing.T) {
	dsn := newTestDB(t)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sql.DB for inspection: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	for _, table := range []string{"known_hosts", "favorites", "audit_log", "schema_migrations"} {
		var name string
		err := sqlDB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s to exist after migrations: %v", table, err)
		}
	}
}

func TestKnownHost_RecordAndGet(t *testing.T) {
	newTestDB(t)

	if rec, err := GetKnownHost("nohost", 22); err != nil || rec != nil {
		t.Fatalf("expected (nil, nil) for unknown host, got (%v, %v)", rec, err)
	}

	want := testRecord("router.local", 22)
	if err := RecordKnownHost(want); err != nil {
		t.Fatalf("RecordKnownHost failed: %v", err)
	}

	got, err := GetKnownHost("router.local", 22)
	if err != nil {
		t.Fatalf("GetKnownHost failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record, got nil")
	}
	if got.Fingerprint != want.Fingerprint || got.Algorithm != want.Algorithm {
		t.Errorf("record mismatch: got %+v want %+v", got, want)
	}

	// Different port is a different identity.
	if rec, err := GetKnownHost("router.local", 2222); err != nil || rec != nil {
		t.Fatalf("expected (nil, nil) for other port, got (%v, %v)", rec, err)
	}
}

func TestKnownHost_RecordOverwrite(t *testing.T) {
	newTestDB(t)

	first := testRecord("gw.example.com", 22)
	if err := RecordKnownHost(first); err != nil {
		t.Fatalf("first RecordKnownHost failed: %v", err)
	}

	second := testRecord("gw.example.com", 22)
	second.Fingerprint = "SHA256:replacementfingerprintafterreinstall00000000"
	second.FirstSeen = first.FirstSeen.Add(time.Hour)
	second.LastConfirmed = second.FirstSeen
	if err := RecordKnownHost(second); err != nil {
		t.Fatalf("overwrite RecordKnownHost failed: %v", err)
	}

	got, err := GetKnownHost("gw.example.com", 22)
	if err != nil || got == nil {
		t.Fatalf("GetKnownHost after overwrite: (%v, %v)", got, err)
	}
	if got.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprint not replaced: got %s", got.Fingerprint)
	}
	if !got.FirstSeen.Equal(second.FirstSeen) {
		t.Errorf("first_seen not reset on overwrite: got %v want %v", got.FirstSeen, second.FirstSeen)
	}

	// The overwrite must be distinguishable from a first trust in the audit trail.
	entries, err := GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("GetAllAuditLogEntries failed: %v", err)
	}
	var sawTrust, sawOverride bool
	for _, e := range entries {
		switch e.Action {
		case "TRUST_HOST":
			sawTrust = true
		case "TRUST_OVERRIDE":
			sawOverride = true
		}
	}
	if !sawTrust || !sawOverride {
		t.Errorf("expected TRUST_HOST and TRUST_OVERRIDE audit entries, got trust=%t override=%t", sawTrust, sawOverride)
	}
}

func TestKnownHost_TouchAndForget(t *testing.T) {
	newTestDB(t)

	rec := testRecord("switch.lab", 22)
	if err := RecordKnownHost(rec); err != nil {
		t.Fatalf("RecordKnownHost failed: %v", err)
	}

	later := rec.LastConfirmed.Add(30 * time.Minute)
	if err := TouchKnownHost("switch.lab", 22, later); err != nil {
		t.Fatalf("TouchKnownHost failed: %v", err)
	}
	got, err := GetKnownHost("switch.lab", 22)
	if err != nil || got == nil {
		t.Fatalf("GetKnownHost after touch: (%v, %v)", got, err)
	}
	if !got.LastConfirmed.Equal(later) {
		t.Errorf("last_confirmed not updated: got %v want %v", got.LastConfirmed, later)
	}
	if !got.FirstSeen.Equal(rec.FirstSeen) {
		t.Errorf("first_seen changed by touch: got %v want %v", got.FirstSeen, rec.FirstSeen)
	}

	// Touching a missing record is a no-op, not an error.
	if err := TouchKnownHost("ghost.lab", 22, later); err != nil {
		t.Fatalf("touch of missing record errored: %v", err)
	}

	if err := ForgetKnownHost("switch.lab", 22); err != nil {
		t.Fatalf("ForgetKnownHost failed: %v", err)
	}
	if rec, err := GetKnownHost("switch.lab", 22); err != nil || rec != nil {
		t.Fatalf("expected (nil, nil) after forget, got (%v, %v)", rec, err)
	}
}

func TestFavorites_AddListDelete(t *testing.T) {
	newTestDB(t)

	id, err := AddFavorite(model.Favorite{
		Label:      "core router",
		Kind:       "ssh",
		Host:       "10.0.0.1",
		Port:       22,
		Username:   "admin",
		AuthMethod: "password",
	})
	if err != nil {
		t.Fatalf("AddFavorite failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive favorite id, got %d", id)
	}

	id2, err := AddFavorite(model.Favorite{
		Label:      "bench console",
		Kind:       "serial",
		SerialPath: "/dev/ttyUSB0",
		Baud:       115200,
		DataBits:   8,
		Parity:     "none",
		StopBits:   1,
	})
	if err != nil {
		t.Fatalf("AddFavorite (serial) failed: %v", err)
	}

	favs, err := GetAllFavorites()
	if err != nil {
		t.Fatalf("GetAllFavorites failed: %v", err)
	}
	if len(favs) != 2 {
		t.Fatalf("expected 2 favorites, got %d", len(favs))
	}
	// Ordered by label.
	if favs[0].Label != "bench console" || favs[1].Label != "core router" {
		t.Errorf("unexpected ordering: %q, %q", favs[0].Label, favs[1].Label)
	}

	if err := DeleteFavorite(id); err != nil {
		t.Fatalf("DeleteFavorite failed: %v", err)
	}
	favs, err = GetAllFavorites()
	if err != nil {
		t.Fatalf("GetAllFavorites after delete failed: %v", err)
	}
	if len(favs) != 1 || favs[0].ID != id2 {
		t.Fatalf("expected only favorite %d to remain, got %+v", id2, favs)
	}
}

func TestBackup_RoundTrip(t *testing.T) {
	newTestDB(t)

	if err := RecordKnownHost(testRecord("backup.me", 22)); err != nil {
		t.Fatalf("RecordKnownHost failed: %v", err)
	}
	if _, err := AddFavorite(model.Favorite{Label: "kept", Kind: "ssh", Host: "backup.me", Port: 22}); err != nil {
		t.Fatalf("AddFavorite failed: %v", err)
	}

	data, err := ExportDataForBackup()
	if err != nil {
		t.Fatalf("ExportDataForBackup failed: %v", err)
	}
	if len(data.KnownHosts) != 1 || len(data.Favorites) != 1 {
		t.Fatalf("unexpected export contents: %d hosts, %d favorites", len(data.KnownHosts), len(data.Favorites))
	}

	var buf bytes.Buffer
	if err := WriteBackup(data, &buf); err != nil {
		t.Fatalf("WriteBackup failed: %v", err)
	}
	restored, err := ReadBackup(&buf)
	if err != nil {
		t.Fatalf("ReadBackup failed: %v", err)
	}
	if len(restored.KnownHosts) != 1 || restored.KnownHosts[0].Host != "backup.me" {
		t.Fatalf("backup did not survive the round trip: %+v", restored)
	}

	// Mutate the live data, then import the snapshot back.
	if err := ForgetKnownHost("backup.me", 22); err != nil {
		t.Fatalf("ForgetKnownHost failed: %v", err)
	}
	if err := ImportDataFromBackup(restored); err != nil {
		t.Fatalf("ImportDataFromBackup failed: %v", err)
	}
	rec, err := GetKnownHost("backup.me", 22)
	if err != nil || rec == nil {
		t.Fatalf("record missing after restore: (%v, %v)", rec, err)
	}
}

func TestAuditLog_MostRecentFirst(t *testing.T) {
	newTestDB(t)

	if err := LogAction("TEST_ONE", "first"); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}
	if err := LogAction("TEST_TWO", "second"); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}

	entries, err := GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("GetAllAuditLogEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != "TEST_TWO" {
		t.Errorf("expected most recent entry first, got %s", entries[0].Action)
	}
	if entries[0].Username == "" {
		t.Error("expected audit entry to carry a username")
	}
}

func TestNewStoreFromDSN_UnsupportedType(t *testing.T) {
	if _, err := NewStoreFromDSN("oracle", "dsn"); err == nil {
		t.Fatal("expected error for unsupported database type")
	}
}
