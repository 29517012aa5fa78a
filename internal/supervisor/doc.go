// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
Package supervisor provides process supervision for the backup service using
suture v4.

# Overview

Services are grouped into three layers for failure isolation:

	RootSupervisor ("backupd")
	├── SchedulingSupervisor ("scheduling-layer")
	│   └── BackupSchedulerService
	├── EventsSupervisor ("events-layer")
	│   └── events.LogSubscriber
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted by its own layer with suture's backoff.
Supervision events (start, failure, backoff, restart) are logged through
sutureslog into the zerolog-backed slog logger.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddSchedulingService(services.NewBackupSchedulerService(manager))
	tree.AddEventService(events.NewLogSubscriber(bus, nil))
	tree.AddAPIService(services.NewHTTPServerService(server, 15*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return tree.Serve(ctx)

# See Also

  - internal/supervisor/services: suture.Service wrappers
  - github.com/thejerf/suture/v4
*/
package supervisor
