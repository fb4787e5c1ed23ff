// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// store.go holds the subcommands that manage the persistent state: known
// hosts, favorites, backups and database maintenance.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/toeirei/wireline/internal/conn"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/i18n"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports detected on this system",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := conn.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println(i18n.T("ports.empty"))
				return nil
			}
			for _, p := range ports {
				if p.IsUSB {
					fmt.Printf("%-20s %s [%s:%s]\n", p.Device, p.Product, p.VID, p.PID)
				} else {
					fmt.Println(p.Device)
				}
			}
			return nil
		},
	}
}

func newTrustHostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trust-host <host[:port]>",
		Short: "Probe a host's SSH key and record it in the trust store",
		Long: `Fetches the host's public key without authenticating, shows its
fingerprint and, after confirmation, records it. This pre-seeds
trust so a later connect verifies silently.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := hostPortArg(args[0])
			if err != nil {
				return err
			}
			return ensureHostTrusted(host, port)
		},
	}
}

// hostPortArg parses host[:port] with 22 as the default port.
func hostPortArg(s string) (string, int, error) {
	if h, p, ok := cutHostPort(s); ok {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return "", 0, fmt.Errorf("invalid port in %q", s)
		}
		return h, n, nil
	}
	if s == "" {
		return "", 0, fmt.Errorf("empty host")
	}
	return s, 22, nil
}

func newHostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "List remembered host identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			hosts, err := db.GetAllKnownHosts()
			if err != nil {
				return err
			}
			if len(hosts) == 0 {
				fmt.Println(i18n.T("hosts.empty"))
				return nil
			}
			for _, h := range hosts {
				fmt.Printf("%-28s %-12s %s  %s\n",
					h.Address(), h.Algorithm, h.Fingerprint,
					h.LastConfirmed.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "forget <host[:port]>",
		Short: "Remove a host identity from the trust store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := hostPortArg(args[0])
			if err != nil {
				return err
			}
			if err := db.ForgetKnownHost(host, port); err != nil {
				return err
			}
			fmt.Println(i18n.T("cli.hosts.forgotten", args[0]))
			return nil
		},
	})

	return cmd
}

func newFavoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "List saved connection targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			favorites, err := db.GetAllFavorites()
			if err != nil {
				return err
			}
			if len(favorites) == 0 {
				fmt.Println(i18n.T("favorites.empty"))
				return nil
			}
			for _, f := range favorites {
				fmt.Printf("%4d  %s\n", f.ID, f.String())
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a saved connection target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid favorite id %q", args[0])
			}
			if err := db.DeleteFavorite(id); err != nil {
				return err
			}
			fmt.Println(i18n.T("cli.favorites.removed", id))
			return nil
		},
	})

	return cmd
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup <file>",
		Short: "Export known hosts, favorites and the audit trail",
		Long:  `Writes a zstd-compressed JSON export of the database to a file.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.WriteBackupFile(db.DefaultStore(), args[0]); err != nil {
				return err
			}
			fmt.Println(i18n.T("cli.backup.done", args[0]))
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Import a backup into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RestoreBackupFile(db.DefaultStore(), args[0]); err != nil {
				return err
			}
			fmt.Println(i18n.T("cli.restore.done", args[0]))
			return nil
		},
	}
}

func newMaintenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maintenance",
		Short: "Run database maintenance for the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.RunDBMaintenance(cfg.Database.Type, cfg.Database.DSN); err != nil {
				return err
			}
			fmt.Println(i18n.T("cli.maintenance.done"))
			return nil
		},
	}
}
