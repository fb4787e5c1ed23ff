// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// package state provides a secure, in-memory cache for transient application
// state, such as passwords or passphrases, that need to be shared between
// different parts of the application (e.g., CLI prompts and the connection
// engine). Nothing here ever touches disk; OS keyring integration, if any,
// happens outside and feeds this cache before a connection is made.
package state

import (
	"fmt"
	"sync"
)

// Secrets is a concurrency-safe, in-memory "mailbox" for temporarily storing
// secrets keyed by account. It uses byte slices instead of strings so that
// the sensitive data can be explicitly zeroed out after use.
var Secrets = &secretCache{
	values: make(map[string][]byte),
}

type secretCache struct {
	values map[string][]byte
	mu     sync.RWMutex
}

// PasswordKey builds the cache key for an SSH password.
func PasswordKey(user, host string, port int) string {
	return fmt.Sprintf("ssh-password:%s@%s:%d", user, host, port)
}

// PassphraseKey builds the cache key for a private key passphrase.
func PassphraseKey(user, host string, port int, keyPath string) string {
	return fmt.Sprintf("ssh-passphrase:%s@%s:%d:%s", user, host, port, keyPath)
}

// Set stores a copy of the secret under key. It overwrites (and wipes) any
// existing value for that key.
func (c *secretCache) Set(key string, secret []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.values[key]; ok {
		for i := range old {
			old[i] = 0
		}
	}
	if secret == nil {
		delete(c.values, key)
		return
	}
	// Store a copy so the caller's original slice isn't held by the cache.
	v := make([]byte, len(secret))
	copy(v, secret)
	c.values[key] = v
}

// Get retrieves a copy of the secret stored under key, or nil if absent.
// The caller is responsible for zeroing out the returned byte slice after use.
// This method is safe for concurrent use by multiple goroutines.
func (c *secretCache) Get(key string) []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[key]
	if !ok {
		return nil
	}
	// Return a copy so that multiple goroutines can get the secret and one
	// wiping its copy doesn't affect others.
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Clear securely wipes a single entry from the cache memory.
func (c *secretCache) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.values[key]; ok {
		for i := range v {
			v[i] = 0
		}
		delete(c.values, key)
	}
}

// ClearAll securely wipes every entry.
func (c *secretCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.values {
		for i := range v {
			v[i] = 0
		}
		delete(c.values, k)
	}
}
