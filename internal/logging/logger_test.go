// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestSetLevelAndOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer func() {
		SetOutput(os.Stderr)
		_ = SetLevel("info")
	}()

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel(debug) failed: %v", err)
	}
	Debugf("probe %d", 1)
	if !strings.Contains(buf.String(), "probe 1") {
		t.Fatalf("debug output missing, got %q", buf.String())
	}

	buf.Reset()
	if err := SetLevel("error"); err != nil {
		t.Fatalf("SetLevel(error) failed: %v", err)
	}
	Infof("should be suppressed")
	if strings.Contains(buf.String(), "suppressed") {
		t.Fatalf("info leaked at error level: %q", buf.String())
	}
	Errorf("boom %s", "now")
	if !strings.Contains(buf.String(), "boom now") {
		t.Fatalf("error output missing, got %q", buf.String())
	}
}

func TestSetLevelRejectsNonsense(t *testing.T) {
	if err := SetLevel("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
