// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package main

import (
	"github.com/spf13/cobra"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
)

func (c *cli) createCmd() *cobra.Command {
	var (
		backupType string
		opts       backup.CreateOptions
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(svc backupService) error {
				b, err := svc.CreateBackup(cmd.Context(), backup.BackupType(backupType), opts)
				if b != nil {
					// A failed attempt still leaves a record worth printing
					if perr := c.printJSON(b); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&backupType, "type", string(backup.TypeFull), "backup type: full, database, files, incremental")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-text description")
	cmd.Flags().BoolVar(&opts.Encrypt, "encrypt", false, "encrypt the artifact with a password")
	cmd.Flags().StringVar(&opts.Password, "password", "", "encryption password")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var (
		backupType, status string
		opts               backup.ListOptions
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if backupType != "" {
				t := backup.BackupType(backupType)
				opts.Type = &t
			}
			if status != "" {
				s := backup.BackupStatus(status)
				opts.Status = &s
			}
			return c.withService(func(svc backupService) error {
				result, err := svc.ListBackups(opts)
				if err != nil {
					return err
				}
				return c.printJSON(result)
			})
		},
	}
	cmd.Flags().StringVar(&backupType, "type", "", "filter by type")
	cmd.Flags().StringVar(&status, "status", "", "filter by status: in_progress, completed, failed")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number, 1-based")
	cmd.Flags().IntVar(&opts.Limit, "limit", backup.DefaultPageLimit, "page size, at most 100")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one backup record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(svc backupService) error {
				b, err := svc.GetBackup(args[0])
				if err != nil {
					return err
				}
				return c.printJSON(b)
			})
		},
	}
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <id>",
		Short: "Re-verify the size and hash of a backup artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(svc backupService) error {
				result, err := svc.ValidateBackup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.printJSON(result)
			})
		},
	}
}

func (c *cli) restoreCmd() *cobra.Command {
	var opts backup.RestoreOptions
	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a backup over the live database and files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(svc backupService) error {
				result, err := svc.RestoreBackup(cmd.Context(), args[0], opts)
				if result != nil {
					if perr := c.printJSON(result); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Confirm, "confirm", false, "confirm that live data will be overwritten")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password of an encrypted backup")
	cmd.Flags().BoolVar(&opts.SkipDatabase, "skip-database", false, "do not replay the database script")
	cmd.Flags().BoolVar(&opts.SkipFiles, "skip-files", false, "do not copy data, uploads and config files back")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a backup record and its artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(svc backupService) error {
				if err := svc.DeleteBackup(cmd.Context(), args[0]); err != nil {
					return err
				}
				return c.printJSON(map[string]string{"deleted": args[0]})
			})
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show backup statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(svc backupService) error {
				stats, err := svc.GetStats()
				if err != nil {
					return err
				}
				return c.printJSON(stats)
			})
		},
	}
}

func (c *cli) scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show or change the backup schedule",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the backup schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(svc backupService) error {
				sc, err := svc.GetSchedule()
				if err != nil {
					return err
				}
				return c.printJSON(sc)
			})
		},
	}

	var (
		enabled, autoDelete               bool
		frequency, clock                  string
		dayOfWeek, dayOfMonth, retainDays int
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the backup schedule; unset flags keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch backup.SchedulePatch
			if flags.Changed("enabled") {
				patch.Enabled = &enabled
			}
			if flags.Changed("frequency") {
				f := backup.Frequency(frequency)
				patch.Frequency = &f
			}
			if flags.Changed("time") {
				patch.Time = &clock
			}
			if flags.Changed("day-of-week") {
				patch.DayOfWeek = &dayOfWeek
			}
			if flags.Changed("day-of-month") {
				patch.DayOfMonth = &dayOfMonth
			}
			if flags.Changed("retention-days") {
				patch.RetentionDays = &retainDays
			}
			if flags.Changed("auto-delete") {
				patch.AutoDelete = &autoDelete
			}

			return c.withService(func(svc backupService) error {
				sc, err := svc.UpdateSchedule(cmd.Context(), patch)
				if err != nil {
					return err
				}
				return c.printJSON(sc)
			})
		},
	}
	set.Flags().BoolVar(&enabled, "enabled", false, "run scheduled backups")
	set.Flags().StringVar(&frequency, "frequency", "", "daily, weekly or monthly")
	set.Flags().StringVar(&clock, "time", "", "time of day, HH:MM local time")
	set.Flags().IntVar(&dayOfWeek, "day-of-week", 0, "0 (Sunday) to 6, weekly schedules")
	set.Flags().IntVar(&dayOfMonth, "day-of-month", 1, "1 to 28, monthly schedules")
	set.Flags().IntVar(&retainDays, "retention-days", 30, "days to keep backups")
	set.Flags().BoolVar(&autoDelete, "auto-delete", false, "apply retention after each scheduled backup")

	cmd.AddCommand(get, set)
	return cmd
}

func (c *cli) retentionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Retention policy operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Delete backups older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(func(svc backupService) error {
				result, err := svc.ApplyRetention(cmd.Context())
				if err != nil {
					return err
				}
				return c.printJSON(result)
			})
		},
	})
	return cmd
}
