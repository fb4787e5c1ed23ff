// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.
package security

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
)

func TestSecretRedaction(t *testing.T) {
	s := FromString("hunter2")
	if got := fmt.Sprintf("%v", s); got != "[SECRET]" {
		t.Fatalf("unexpected fmt output: %q", got)
	}
	if got := fmt.Sprintf("%s", s); got != "[SECRET]" {
		t.Fatalf("unexpected fmt %%s output: %q", got)
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	if string(b) != "\"[SECRET]\"" {
		t.Fatalf("unexpected json marshal: %s", string(b))
	}
	txt, err := s.MarshalText()
	if err != nil || string(txt) != "[SECRET]" {
		t.Fatalf("unexpected text marshal: %q, %v", string(txt), err)
	}
}

func TestSecretZero(t *testing.T) {
	s := FromString("abc123")
	(&s).Zero()
	if err := s.Use(func(b []byte) error {
		for i := range b {
			if b[i] != 0 {
				t.Fatalf("expected zeroed byte at index %d, got %d", i, b[i])
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("s.Use failed: %v", err)
	}
	// Zeroing leaves length intact, so the secret is still non-empty.
	if s.Empty() {
		t.Fatal("zeroed secret reported empty")
	}
}

func TestSecretBytesIsACopy(t *testing.T) {
	s := Secret([]byte("sensitive"))

	copy1 := s.Bytes()
	if !bytes.Equal(copy1, []byte("sensitive")) {
		t.Fatalf("copy doesn't match original: %v", copy1)
	}

	copy1[0] = 'X'
	if s[0] != 's' {
		t.Fatalf("modifying copy affected original: %v", []byte(s))
	}

	copy2 := s.Bytes()
	copy2[1] = 'Y'
	if copy1[1] != 'e' || copy2[1] != 'Y' {
		t.Fatalf("copies are not independent: copy1=%v, copy2=%v", copy1, copy2)
	}
}

func TestSecretEmpty(t *testing.T) {
	var s Secret
	if !s.Empty() {
		t.Fatal("nil secret should be empty")
	}
	if !FromString("").Empty() {
		t.Fatal("empty-string secret should be empty")
	}
	if FromBytes([]byte{0}).Empty() {
		t.Fatal("single-byte secret should not be empty")
	}
}

func TestFromBytesCopies(t *testing.T) {
	src := []byte("tok")
	s := FromBytes(src)
	src[0] = 'X'
	if s[0] != 't' {
		t.Fatalf("FromBytes did not copy: %v", []byte(s))
	}
}
