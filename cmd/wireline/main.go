// Copyright (c) 2026 ToeiRei
// Wireline - serial and SSH terminal client
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for Wireline using the
// Cobra library. It defines the root command, subcommands (like connect,
// ports, trust-host), flags, and the main entry point for execution.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/toeirei/wireline/buildvars"
	"github.com/toeirei/wireline/internal/config"
	"github.com/toeirei/wireline/internal/db"
	"github.com/toeirei/wireline/internal/i18n"
	"github.com/toeirei/wireline/internal/logging"
	"github.com/toeirei/wireline/internal/tui"
)

var cfgFile string

// cfg is the loaded configuration, available to all subcommands after
// PersistentPreRunE has run.
var cfg config.Config

// main is the entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// newRootCmd creates and configures a new root cobra command.
// This function is used to create the main application command as well as
// fresh instances for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wireline",
		Short: "Wireline is a terminal client for serial lines and SSH.",
		Long: `Wireline speaks to the things on the other end of a wire: serial
consoles and SSH hosts, through one connection engine with
trust-on-first-use host verification backed by a database.

Running without a subcommand will launch the interactive TUI.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig[config.Config](cmd.Root(), config.Defaults(), &cfgFile)
			if err != nil {
				return err
			}

			// Explicit flags win over everything the config loader saw.
			flags := cmd.Root().PersistentFlags()
			if flags.Changed("db-type") {
				cfg.Database.Type, _ = flags.GetString("db-type")
			}
			if flags.Changed("db-dsn") {
				cfg.Database.DSN, _ = flags.GetString("db-dsn")
			}
			if flags.Changed("lang") {
				cfg.Language, _ = flags.GetString("lang")
			}
			if flags.Changed("log-level") {
				cfg.Log.Level, _ = flags.GetString("log-level")
			}

			i18n.Init(cfg.Language)

			if err := logging.SetLevel(cfg.Log.Level); err != nil {
				return err
			}
			if cfg.Log.File != "" {
				f, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				logging.SetOutput(f)
			}

			if err := db.InitDB(cfg.Database.Type, cfg.Database.DSN); err != nil {
				return fmt.Errorf("%s", i18n.T("config.error_init_db", err))
			}

			// Seed the global viper the TUI reads its runtime knobs from.
			viper.Set("language", cfg.Language)
			viper.Set("serial.baud", cfg.Serial.Baud)
			viper.Set("ssh.connect_timeout", time.Duration(cfg.SSH.ConnectTimeout)*time.Second)
			viper.Set("trust.prompt_timeout", time.Duration(cfg.Trust.PromptTimeout)*time.Second)

			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			// The database is already initialized by PersistentPreRunE.
			tui.Run()
		},
	}

	// Add subcommands to the newly created root command.
	cmd.AddCommand(newConnectCmd())
	cmd.AddCommand(newPortsCmd())
	cmd.AddCommand(newTrustHostCmd())
	cmd.AddCommand(newHostsCmd())
	cmd.AddCommand(newFavoritesCmd())
	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newRestoreCmd())
	cmd.AddCommand(newMaintenanceCmd())
	cmd.AddCommand(newPushCmd())
	cmd.AddCommand(newFetchCmd())

	// Set version
	cmd.Version = buildvars.VersionOrDefault("dev")

	// Define flags
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the user config dir or ./wireline.yaml)")
	cmd.PersistentFlags().String("db-type", "sqlite", "Database type (sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("db-dsn", "./wireline.db", "Database connection string (DSN)")
	cmd.PersistentFlags().String("lang", "en", `UI language ("en", "de")`)
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}
