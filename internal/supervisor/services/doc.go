// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
Package services provides suture.Service wrappers for backup service components.

Each wrapper implements suture.Service and fmt.Stringer:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the ListenAndServe pattern to Serve

Backup Scheduler (BackupSchedulerService):
  - Wraps backup.Manager.RunScheduler
  - Treats context cancellation as a clean stop

events.LogSubscriber already implements suture.Service and is added to the
tree directly.

# Error Handling

A returned error tells suture to restart the service with backoff.
Returning ctx.Err() after cancellation is the normal shutdown path.
*/
package services
