// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

// Package main is backupctl, the operator CLI of the backup service.
//
// backupctl loads the same configuration as the server and drives the backup
// manager directly. Every command prints JSON on stdout; errors go to stderr
// with a non-zero exit status.
//
//	backupctl create --type full --description "before upgrade"
//	backupctl list --status completed --limit 10
//	backupctl restore 3f2a... --confirm
//	backupctl schedule set --enabled --frequency weekly --day-of-week 0 --time 03:30
//
// The metadata store is locked while the server runs, so backupctl is meant
// for maintenance windows and disaster recovery.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(defaultDeps(), os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
