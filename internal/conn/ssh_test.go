package conn_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/model"
	"github.com/toeirei/wireline/internal/security"
	"github.com/toeirei/wireline/internal/testutil"
)

const testPassword = "correct horse"

func startServer(t *testing.T) *testutil.SSHServer {
	t.Helper()
	srv, err := testutil.NewSSHServer(testPassword)
	if err != nil {
		t.Fatalf("starting ssh server: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func sshConfig(srv *testutil.SSHServer) conn.SSHConfig {
	return conn.SSHConfig{
		Host:     srv.Host,
		Port:     srv.Port,
		Username: "tester",
		Auth: conn.AuthConfig{
			Method:   conn.AuthPassword,
			Password: security.FromString(testPassword),
		},
		ConnectTimeout: 5 * time.Second,
		PromptTimeout:  5 * time.Second,
	}
}

// preTrust seeds the store with the server's current identity.
func preTrust(t *testing.T, store *testutil.FakeHostKeyStore, srv *testutil.SSHServer) {
	t.Helper()
	now := time.Now().UTC()
	err := store.RecordKnownHost(model.HostKeyRecord{
		Host:          srv.Host,
		Port:          srv.Port,
		Algorithm:     srv.Algorithm(),
		Fingerprint:   srv.Fingerprint(),
		FirstSeen:     now,
		LastConfirmed: now,
	})
	if err != nil {
		t.Fatalf("seeding trust store: %v", err)
	}
}

func connectOrFail(t *testing.T, c *conn.SSHConn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
}

func TestSSHTrustOnFirstUse(t *testing.T) {
	srv := startServer(t)
	store := testutil.NewFakeHostKeyStore()

	// First contact: exactly one prompt, acceptance records the identity.
	prompter := testutil.NewScriptedPrompter(conn.TrustAccept)
	c := conn.NewSSHConn(sshConfig(srv), store)
	c.SetTrustPrompter(prompter)
	connectOrFail(t, c)
	_ = c.Disconnect()

	if prompter.PromptCount() != 1 {
		t.Fatalf("prompt count = %d, want 1", prompter.PromptCount())
	}
	rec, err := store.GetKnownHost(srv.Host, srv.Port)
	if err != nil || rec == nil {
		t.Fatalf("identity not recorded: (%v, %v)", rec, err)
	}
	if rec.Fingerprint != srv.Fingerprint() {
		t.Errorf("recorded fingerprint %s, server has %s", rec.Fingerprint, srv.Fingerprint())
	}
	firstConfirmed := rec.LastConfirmed

	// Second contact: silent, no prompt, last_confirmed bumped.
	silent := testutil.NewScriptedPrompter() // answers nothing but reject
	c2 := conn.NewSSHConn(sshConfig(srv), store)
	c2.SetTrustPrompter(silent)
	connectOrFail(t, c2)
	_ = c2.Disconnect()

	if silent.PromptCount() != 0 {
		t.Fatalf("known host prompted again (%d prompts)", silent.PromptCount())
	}
	rec2, _ := store.GetKnownHost(srv.Host, srv.Port)
	if rec2 == nil || rec2.LastConfirmed.Before(firstConfirmed) {
		t.Errorf("last_confirmed not bumped on silent verification")
	}
	if !rec2.FirstSeen.Equal(rec.FirstSeen) {
		t.Errorf("first_seen changed by a silent verification")
	}
}

func TestSSHRejectUnknownKey(t *testing.T) {
	srv := startServer(t)
	store := testutil.NewFakeHostKeyStore()

	prompter := testutil.NewScriptedPrompter(conn.TrustReject)
	c := conn.NewSSHConn(sshConfig(srv), store)
	c.SetTrustPrompter(prompter)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := c.Connect(ctx)
	if err == nil {
		_ = c.Disconnect()
		t.Fatal("connect succeeded despite rejected host key")
	}
	if kind := conn.KindOf(err); kind != conn.ErrorHostKeyRejected {
		t.Errorf("error kind = %v, want HOST_KEY_REJECTED (%v)", kind, err)
	}
	if store.Count() != 0 {
		t.Errorf("rejection must not record anything, store has %d records", store.Count())
	}
}

func TestSSHNoPrompterRejects(t *testing.T) {
	srv := startServer(t)
	store := testutil.NewFakeHostKeyStore()
	c := conn.NewSSHConn(sshConfig(srv), store)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := c.Connect(ctx)
	if err == nil {
		_ = c.Disconnect()
		t.Fatal("connect succeeded with no way to approve the key")
	}
	if kind := conn.KindOf(err); kind != conn.ErrorHostKeyRejected {
		t.Errorf("error kind = %v, want HOST_KEY_REJECTED (%v)", kind, err)
	}
}

func TestSSHPromptTimeout(t *testing.T) {
	srv := startServer(t)
	store := testutil.NewFakeHostKeyStore()

	cfg := sshConfig(srv)
	cfg.PromptTimeout = 200 * time.Millisecond
	c := conn.NewSSHConn(cfg, store)
	c.SetTrustPrompter(&testutil.SilentPrompter{})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	start := time.Now()
	err := c.Connect(ctx)
	if err == nil {
		_ = c.Disconnect()
		t.Fatal("connect succeeded despite unanswered prompt")
	}
	if kind := conn.KindOf(err); kind != conn.ErrorPromptTimeout {
		t.Errorf("error kind = %v, want PROMPT_TIMEOUT (%v)", kind, err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("timeout took %s, deadline not applied", elapsed)
	}
	if store.Count() != 0 {
		t.Errorf("expired prompt must not record anything, store has %d records", store.Count())
	}
}

func TestSSHKeyMismatch(t *testing.T) {
	srv := startServer(t)
	store := testutil.NewFakeHostKeyStore()
	preTrust(t, store, srv)
	oldFingerprint := srv.Fingerprint()

	if err := srv.RotateHostKey(); err != nil {
		t.Fatalf("rotating host key: %v", err)
	}

	// A plain accept is not enough to cross a mismatch.
	prompter := testutil.NewScriptedPrompter(conn.TrustAccept)
	c := conn.NewSSHConn(sshConfig(srv), store)
	c.SetTrustPrompter(prompter)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := c.Connect(ctx)
	if err == nil {
		_ = c.Disconnect()
		t.Fatal("plain accept crossed a host key mismatch")
	}
	if kind := conn.KindOf(err); kind != conn.ErrorHostKeyRejected {
		t.Errorf("error kind = %v, want HOST_KEY_REJECTED (%v)", kind, err)
	}
	if prompter.PromptCount() != 1 {
		t.Fatalf("prompt count = %d, want 1", prompter.PromptCount())
	}
	if len(prompter.Requests) == 1 && !prompter.Requests[0].Mismatch() {
		t.Error("prompt did not carry the mismatch context")
	}
	rec, _ := store.GetKnownHost(srv.Host, srv.Port)
	if rec == nil || rec.Fingerprint != oldFingerprint {
		t.Fatalf("record changed by a rejected mismatch: %+v", rec)
	}

	// The explicit override replaces the record and proceeds.
	override := testutil.NewScriptedPrompter(conn.TrustAcceptAndRemember)
	c2 := conn.NewSSHConn(sshConfig(srv), store)
	c2.SetTrustPrompter(override)
	connectOrFail(t, c2)
	_ = c2.Disconnect()

	rec, _ = store.GetKnownHost(srv.Host, srv.Port)
	if rec == nil || rec.Fingerprint != srv.Fingerprint() {
		t.Fatalf("override did not replace the record: %+v", rec)
	}
}

func TestSSHAuthFailure(t *testing.T) {
	srv := startServer(t)
	store := testutil.NewFakeHostKeyStore()
	preTrust(t, store, srv)

	cfg := sshConfig(srv)
	cfg.Auth.Password = security.FromString("wrong")
	c := conn.NewSSHConn(cfg, store)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := c.Connect(ctx)
	if err == nil {
		_ = c.Disconnect()
		t.Fatal("connect succeeded with a wrong password")
	}
	if kind := conn.KindOf(err); kind != conn.ErrorAuthFailed {
		t.Errorf("error kind = %v, want AUTH_FAILED (%v)", kind, err)
	}
}

func TestSSHEchoSession(t *testing.T) {
	srv := startServer(t)
	store := testutil.NewFakeHostKeyStore()
	preTrust(t, store, srv)

	c := conn.NewSSHConn(sshConfig(srv), store)
	connectOrFail(t, c)
	defer func() { _ = c.Disconnect() }()

	payload := []byte("wireline probe\n")
	if _, err := c.Send(payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var got bytes.Buffer
	deadline := time.Now().Add(10 * time.Second)
	for !bytes.Contains(got.Bytes(), []byte("wireline probe")) {
		if time.Now().After(deadline) {
			t.Fatalf("echo never arrived, got %q", got.String())
		}
		chunk, err := c.Read()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		got.Write(chunk)
	}

	if c.BytesSent() != uint64(len(payload)) {
		t.Errorf("BytesSent = %d, want %d", c.BytesSent(), len(payload))
	}
	if c.BytesReceived() == 0 {
		t.Error("BytesReceived = 0 after echo")
	}
	if c.State() != conn.StatusConnected {
		t.Errorf("state = %v, want CONNECTED", c.State())
	}
}

func TestActorSSHPromptFlow(t *testing.T) {
	srv := startServer(t)
	store := testutil.NewFakeHostKeyStore()

	a := conn.NewActor(conn.NewSSHConn(sshConfig(srv), store))
	defer a.Close()

	a.Connect()
	events := collectUntil(t, a, func(ev conn.Event) bool {
		_, ok := ev.(conn.HostKeyPromptEvent)
		return ok
	})
	prompt := events[len(events)-1].(conn.HostKeyPromptEvent)
	if prompt.Host != srv.Host || prompt.Port != srv.Port {
		t.Fatalf("prompt for %s:%d, want %s:%d", prompt.Host, prompt.Port, srv.Host, srv.Port)
	}
	if prompt.Fingerprint != srv.Fingerprint() {
		t.Errorf("prompt fingerprint %s, server has %s", prompt.Fingerprint, srv.Fingerprint())
	}

	a.RespondTrust(conn.TrustAccept)
	expectConnected(t, a)

	if store.Count() != 1 {
		t.Errorf("store has %d records after acceptance, want 1", store.Count())
	}

	a.Disconnect()
	collectUntil(t, a, isClosed)
}

func TestActorSSHDisconnectDuringPrompt(t *testing.T) {
	srv := startServer(t)
	store := testutil.NewFakeHostKeyStore()

	a := conn.NewActor(conn.NewSSHConn(sshConfig(srv), store))
	defer a.Close()

	a.Connect()
	collectUntil(t, a, func(ev conn.Event) bool {
		_, ok := ev.(conn.HostKeyPromptEvent)
		return ok
	})

	// The user walks away: disconnect must win against the suspended
	// handshake without waiting for the prompt deadline.
	start := time.Now()
	a.Disconnect()
	events := collectUntil(t, a, isClosed)
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("disconnect took %s against a suspended handshake", elapsed)
	}
	for _, ev := range events {
		if sc, ok := ev.(conn.StateChangedEvent); ok && sc.State == conn.StatusConnected {
			t.Fatal("reached CONNECTED after a local disconnect")
		}
	}
	if store.Count() != 0 {
		t.Errorf("abandoned prompt recorded a key: %d records", store.Count())
	}
}
