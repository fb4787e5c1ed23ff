// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/toeirei/wireline/internal/logging"

func dbLogf(format string, v ...any) {
	logging.Debugf(format, v...)
}
