// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/i18n"
	"github.com/toeirei/wireline/internal/transfer"
)

// sshTargetConfig builds the SSH config for a transfer target, resolving
// trust and credentials in cooked mode first.
func sshTargetConfig(cmd *cobra.Command, target string) (conn.SSHConfig, error) {
	tc, err := parseTarget(cmd, target)
	if err != nil {
		return conn.SSHConfig{}, err
	}
	if tc.SSH == nil {
		return conn.SSHConfig{}, fmt.Errorf("%s", i18n.T("cli.transfer.ssh_only", target))
	}
	if err := ensureHostTrusted(tc.SSH.Host, tc.SSH.Port); err != nil {
		return conn.SSHConfig{}, err
	}
	if err := fillSecrets(tc.SSH); err != nil {
		return conn.SSHConfig{}, err
	}
	return *tc.SSH, nil
}

// printProgress renders transfer progress on one line.
func printProgress(what string) transfer.Progress {
	start := time.Now()
	return func(written, total int64) {
		if total > 0 {
			fmt.Printf("\r%s %d/%d (%d%%)", what, written, total, written*100/total)
		} else {
			fmt.Printf("\r%s %d", what, written)
		}
		if written == total && total > 0 {
			fmt.Printf("  %.1fs\n", time.Since(start).Seconds())
		}
	}
}

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push <local> <user@host[:port]> <remote>",
		Short: "Upload a file over SFTP",
		Long: `Uploads a local file to the remote path. The transfer shares the
connect path's host verification and agent fallback, and writes
through a temporary name so an interrupted upload never leaves a
half-written file at the target path.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := sshTargetConfig(cmd, args[1])
			if err != nil {
				return err
			}
			t, err := transfer.New(cmd.Context(), sc, db.DefaultStore(), nil)
			if err != nil {
				return err
			}
			defer t.Close()
			if err := t.Push(args[0], args[2], printProgress(args[0])); err != nil {
				return err
			}
			fmt.Println(i18n.T("cli.transfer.push_done", args[0], args[2]))
			return nil
		},
	}
	cmd.Flags().String("key", "", "SSH private key file")
	return cmd
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <user@host[:port]> <remote> <local>",
		Short: "Download a file over SFTP",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := sshTargetConfig(cmd, args[0])
			if err != nil {
				return err
			}
			t, err := transfer.New(cmd.Context(), sc, db.DefaultStore(), nil)
			if err != nil {
				return err
			}
			defer t.Close()
			if err := t.Fetch(args[1], args[2], printProgress(args[1])); err != nil {
				return err
			}
			fmt.Println(i18n.T("cli.transfer.fetch_done", args[1], args[2]))
			return nil
		},
	}
	cmd.Flags().String("key", "", "SSH private key file")
	return cmd
}
