// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package conn

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies connection faults so the presentation layer can
// render an actionable message (a changed host key is not a refused
// connection). Every fault surfaces as an ErrorEvent plus a transition to
// StatusDisconnected; none is process-fatal.
type ErrorKind int

const (
	// ErrorUnknown is the fallback for unclassified faults.
	ErrorUnknown ErrorKind = iota

	// Transport faults.
	ErrorDeviceNotFound
	ErrorPermissionDenied
	ErrorIO
	ErrorNetwork

	// Authentication faults.
	ErrorAuthFailed
	ErrorPassphraseInvalid

	// Trust faults.
	ErrorHostKeyRejected
	ErrorHostKeyMismatch
	ErrorPromptTimeout

	// Protocol faults.
	ErrorHandshakeFailed
	ErrorUnsupportedAlgorithm
)

// String returns the kind name used in logs and events.
func (k ErrorKind) String() string {
	switch k {
	case ErrorDeviceNotFound:
		return "DEVICE_NOT_FOUND"
	case ErrorPermissionDenied:
		return "PERMISSION_DENIED"
	case ErrorIO:
		return "IO_ERROR"
	case ErrorNetwork:
		return "NETWORK_ERROR"
	case ErrorAuthFailed:
		return "AUTH_FAILED"
	case ErrorPassphraseInvalid:
		return "PASSPHRASE_INVALID"
	case ErrorHostKeyRejected:
		return "HOST_KEY_REJECTED"
	case ErrorHostKeyMismatch:
		return "HOST_KEY_MISMATCH"
	case ErrorPromptTimeout:
		return "PROMPT_TIMEOUT"
	case ErrorHandshakeFailed:
		return "HANDSHAKE_FAILED"
	case ErrorUnsupportedAlgorithm:
		return "UNSUPPORTED_ALGORITHM"
	default:
		return "UNKNOWN"
	}
}

// ConnError is a classified connection fault. It wraps the underlying
// cause so errors.Is/As keep working across the event boundary.
type ConnError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *ConnError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConnError) Unwrap() error { return e.Err }

// Errf builds a ConnError with a formatted cause.
func Errf(kind ErrorKind, format string, args ...interface{}) *ConnError {
	return &ConnError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WrapErr attaches a kind to an existing error. A nil cause yields nil.
func WrapErr(kind ErrorKind, err error) *ConnError {
	if err == nil {
		return nil
	}
	var ce *ConnError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConnError{Kind: kind, Err: err}
}

// KindOf extracts the ErrorKind from an error chain, or ErrorUnknown.
func KindOf(err error) ErrorKind {
	var ce *ConnError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrorUnknown
}

// classifyDialErr maps errors from the TCP dial and SSH handshake into the
// taxonomy. The x/crypto/ssh package reports auth failures only through
// error strings, so this matches on them the same way everybody else does.
func classifyDialErr(err error) *ConnError {
	if err == nil {
		return nil
	}
	var ce *ConnError
	if errors.As(err, &ce) {
		return ce
	}
	var netErr net.Error
	if errors.As(err, &netErr) || strings.Contains(err.Error(), "connection refused") {
		return &ConnError{Kind: ErrorNetwork, Err: err}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"):
		return &ConnError{Kind: ErrorAuthFailed, Err: err}
	case strings.Contains(msg, "no common algorithm"),
		strings.Contains(msg, "unsupported key type"):
		return &ConnError{Kind: ErrorUnsupportedAlgorithm, Err: err}
	case strings.Contains(msg, "ssh: handshake failed"):
		return &ConnError{Kind: ErrorHandshakeFailed, Err: err}
	case strings.Contains(msg, "no route to host"),
		strings.Contains(msg, "network is unreachable"),
		strings.Contains(msg, "no such host"):
		return &ConnError{Kind: ErrorNetwork, Err: err}
	default:
		return &ConnError{Kind: ErrorNetwork, Err: err}
	}
}

// classifyKeyErr maps private key loading and decryption failures.
func classifyKeyErr(err error) *ConnError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "decryption password incorrect"),
		strings.Contains(msg, "incorrect passphrase"):
		return &ConnError{Kind: ErrorPassphraseInvalid, Err: err}
	case strings.Contains(msg, "no such file"):
		return &ConnError{Kind: ErrorDeviceNotFound, Err: err}
	case strings.Contains(msg, "permission denied"):
		return &ConnError{Kind: ErrorPermissionDenied, Err: err}
	default:
		return &ConnError{Kind: ErrorAuthFailed, Err: err}
	}
}
