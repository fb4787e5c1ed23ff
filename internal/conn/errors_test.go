package conn

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyDialErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"refused", errors.New("dial tcp 127.0.0.1:22: connect: connection refused"), ErrorNetwork},
		{"auth", errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]"), ErrorAuthFailed},
		{"no methods", errors.New("ssh: handshake failed: ssh: unable to authenticate, no supported methods remain"), ErrorAuthFailed},
		{"algorithm", errors.New("ssh: handshake failed: ssh: no common algorithm for key exchange"), ErrorUnsupportedAlgorithm},
		{"handshake", errors.New("ssh: handshake failed: EOF"), ErrorHandshakeFailed},
		{"unreachable", errors.New("dial tcp: connect: network is unreachable"), ErrorNetwork},
		{"dns", errors.New("dial tcp: lookup nowhere.invalid: no such host"), ErrorNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyDialErr(tc.err)
			if got.Kind != tc.want {
				t.Errorf("classifyDialErr(%q) = %v, want %v", tc.err, got.Kind, tc.want)
			}
		})
	}
}

func TestClassifyDialErrKeepsConnError(t *testing.T) {
	orig := Errf(ErrorPromptTimeout, "prompt expired")
	got := classifyDialErr(fmt.Errorf("wrapped: %w", orig))
	if got.Kind != ErrorPromptTimeout {
		t.Errorf("existing classification lost: %v", got.Kind)
	}
}

func TestClassifyKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"bad passphrase", errors.New("x509: decryption password incorrect"), ErrorPassphraseInvalid},
		{"openssh passphrase", errors.New("ssh: incorrect passphrase supplied to decrypt key"), ErrorPassphraseInvalid},
		{"missing file", errors.New("open /tmp/id: no such file or directory"), ErrorDeviceNotFound},
		{"unreadable", errors.New("open /root/id: permission denied"), ErrorPermissionDenied},
		{"garbage", errors.New("ssh: no key found"), ErrorAuthFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyKeyErr(tc.err)
			if got.Kind != tc.want {
				t.Errorf("classifyKeyErr(%q) = %v, want %v", tc.err, got.Kind, tc.want)
			}
		})
	}
}

func TestWrapErr(t *testing.T) {
	if WrapErr(ErrorIO, nil) != nil {
		t.Error("WrapErr(nil) must be nil")
	}

	orig := Errf(ErrorAuthFailed, "nope")
	if got := WrapErr(ErrorIO, orig); got.Kind != ErrorAuthFailed {
		t.Errorf("WrapErr reclassified an already classified error: %v", got.Kind)
	}
	if got := WrapErr(ErrorIO, fmt.Errorf("ctx: %w", orig)); got.Kind != ErrorAuthFailed {
		t.Errorf("WrapErr reclassified through wrapping: %v", got.Kind)
	}

	plain := errors.New("boom")
	got := WrapErr(ErrorNetwork, plain)
	if got.Kind != ErrorNetwork {
		t.Errorf("Kind = %v, want %v", got.Kind, ErrorNetwork)
	}
	if !errors.Is(got, plain) {
		t.Error("cause lost through WrapErr")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(errors.New("anonymous")); got != ErrorUnknown {
		t.Errorf("KindOf(plain) = %v, want UNKNOWN", got)
	}
	err := fmt.Errorf("outer: %w", Errf(ErrorHostKeyRejected, "rejected"))
	if got := KindOf(err); got != ErrorHostKeyRejected {
		t.Errorf("KindOf = %v, want HOST_KEY_REJECTED", got)
	}
}

func TestErrorKindString(t *testing.T) {
	cases := map[ErrorKind]string{
		ErrorUnknown:         "UNKNOWN",
		ErrorDeviceNotFound:  "DEVICE_NOT_FOUND",
		ErrorHostKeyRejected: "HOST_KEY_REJECTED",
		ErrorPromptTimeout:   "PROMPT_TIMEOUT",
		ErrorKind(999):       "UNKNOWN",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
