// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
	"github.com/Kurisu21/webeenthere-sub006/internal/config"
	"github.com/Kurisu21/webeenthere-sub006/internal/dump"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// backupService is the part of backup.Manager the commands drive.
type backupService interface {
	CreateBackup(ctx context.Context, backupType backup.BackupType, opts backup.CreateOptions) (*backup.Backup, error)
	ListBackups(opts backup.ListOptions) (*backup.ListResult, error)
	GetBackup(backupID string) (*backup.Backup, error)
	DeleteBackup(ctx context.Context, backupID string) error
	ValidateBackup(ctx context.Context, backupID string) (*backup.ValidationResult, error)
	RestoreBackup(ctx context.Context, backupID string, opts backup.RestoreOptions) (*backup.RestoreResult, error)
	GetStats() (*backup.Stats, error)
	GetSchedule() (backup.ScheduleConfig, error)
	UpdateSchedule(ctx context.Context, patch backup.SchedulePatch) (backup.ScheduleConfig, error)
	ApplyRetention(ctx context.Context) (*backup.RetentionResult, error)
}

// deps are the seams between the commands and the real stores.
type deps struct {
	loadConfig func() (*config.Config, error)
	open       func(cfg *config.Config) (backupService, func() error, error)
}

func defaultDeps() deps {
	return deps{
		loadConfig: config.Load,
		open:       openManager,
	}
}

// openManager opens the metadata store and the database and builds a
// manager over them. The returned func closes both.
func openManager(cfg *config.Config) (backupService, func() error, error) {
	store, err := backup.OpenBadgerStore(cfg.Metadata.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open metadata store %s (is the server running?): %w", cfg.Metadata.Dir, err)
	}

	dumper, err := dump.Open(cfg.DumpConfig())
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	closeAll := func() error {
		dbErr := dumper.Close()
		if err := store.Close(); err != nil {
			return err
		}
		return dbErr
	}

	manager, err := backup.NewManager(cfg.BackupManagerConfig(), store, dumper)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	return manager, closeAll, nil
}

// cli carries state shared by all commands of one invocation.
type cli struct {
	deps       deps
	out        io.Writer
	configPath string
	logLevel   string
}

func newRootCmd(d deps, out io.Writer) *cobra.Command {
	c := &cli{deps: d, out: out}

	root := &cobra.Command{
		Use:           "backupctl",
		Short:         "Create, inspect and restore backups",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.configPath != "" {
				_ = os.Setenv(config.ConfigPathEnvVar, c.configPath)
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to the YAML config file (overrides CONFIG_PATH)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		c.createCmd(),
		c.listCmd(),
		c.getCmd(),
		c.validateCmd(),
		c.restoreCmd(),
		c.deleteCmd(),
		c.statsCmd(),
		c.scheduleCmd(),
		c.retentionCmd(),
	)
	return root
}

// withService loads config, opens the manager, runs fn and closes
// everything again.
func (c *cli) withService(fn func(svc backupService) error) error {
	cfg, err := c.deps.loadConfig()
	if err != nil {
		return err
	}

	lc := cfg.LoggingInitConfig()
	lc.Level = c.logLevel
	lc.Format = "console"
	lc.Output = os.Stderr
	logging.Init(lc)

	svc, closeFn, err := c.deps.open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logging.Error().Err(err).Msg("Error closing stores")
		}
	}()

	return fn(svc)
}

// printJSON writes v as indented JSON.
func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
