// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package state

import (
	"sync"
	"testing"
)

func TestSecretCache_SetGetClear(t *testing.T) {
	Secrets.ClearAll()

	key := PasswordKey("pilot", "host.example", 22)
	if got := Secrets.Get(key); got != nil {
		t.Fatalf("expected nil on empty cache, got %v", got)
	}

	pass := []byte("s3cr3t")
	Secrets.Set(key, pass)

	got := Secrets.Get(key)
	if got == nil {
		t.Fatalf("expected value after Set, got nil")
	}
	if string(got) != string(pass) {
		t.Fatalf("expected %s, got %s", pass, got)
	}

	// Mutating the returned slice shouldn't mutate the internal value.
	got[0] = 'X'
	got2 := Secrets.Get(key)
	if got2 == nil || got2[0] == 'X' {
		t.Fatalf("cache should return a copy; mutation leaked")
	}

	Secrets.Clear(key)
	if got := Secrets.Get(key); got != nil {
		t.Fatalf("expected nil after Clear, got %v", got)
	}
}

func TestSecretCache_KeysAreIndependent(t *testing.T) {
	Secrets.ClearAll()

	k1 := PasswordKey("a", "h", 22)
	k2 := PassphraseKey("a", "h", 22, "/home/a/.ssh/id_ed25519")
	Secrets.Set(k1, []byte("one"))
	Secrets.Set(k2, []byte("two"))

	if string(Secrets.Get(k1)) != "one" || string(Secrets.Get(k2)) != "two" {
		t.Fatalf("entries interfered: %q %q", Secrets.Get(k1), Secrets.Get(k2))
	}
	Secrets.Clear(k1)
	if Secrets.Get(k1) != nil {
		t.Fatal("k1 survived Clear")
	}
	if string(Secrets.Get(k2)) != "two" {
		t.Fatal("clearing k1 disturbed k2")
	}
}

func TestSecretCache_KeyFormats(t *testing.T) {
	if got := PasswordKey("pilot", "box", 2222); got != "ssh-password:pilot@box:2222" {
		t.Fatalf("unexpected password key: %q", got)
	}
	if got := PassphraseKey("pilot", "box", 22, "/k"); got != "ssh-passphrase:pilot@box:22:/k" {
		t.Fatalf("unexpected passphrase key: %q", got)
	}
}

func TestSecretCache_ConcurrentAccess(t *testing.T) {
	Secrets.ClearAll()

	key := PasswordKey("race", "host", 22)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Secrets.Set(key, []byte("value"))
			_ = Secrets.Get(key)
		}()
	}
	wg.Wait()

	if got := Secrets.Get(key); string(got) != "value" {
		t.Fatalf("expected value after concurrent access, got %q", got)
	}
	Secrets.ClearAll()
}
