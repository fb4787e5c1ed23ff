// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db contains shared database errors and helpers.
package db

import (
	"errors"
	"strings"
)

// ErrDuplicate is returned when an insert collides with an existing row,
// typically a known-host address or favorite that is already recorded.
var ErrDuplicate = errors.New("duplicate record")

// Constraint-violation markers across the three supported backends:
// SQLite reports "unique constraint", Postgres uses SQLSTATE 23505 and
// MySQL error 1062 ("duplicate entry").
var duplicateMarkers = []string{"duplicate", "unique", "23505", "1062"}

// MapDBError maps low-level driver errors onto package sentinels so callers
// can test with errors.Is instead of matching driver types. Matching is
// string-based to keep this file free of per-backend driver imports.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range duplicateMarkers {
		if strings.Contains(msg, marker) {
			return ErrDuplicate
		}
	}
	return err
}
