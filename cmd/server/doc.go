// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
Package main is the entry point for the backup service.

The service exposes the backup HTTP API, runs the backup schedule and logs
backup lifecycle events, all under a Suture v4 supervisor tree:

	RootSupervisor ("backupd")
	├── SchedulingSupervisor ("scheduling-layer")
	│   └── backup-scheduler
	├── EventsSupervisor ("events-layer")
	│   └── backup-event-log
	└── APISupervisor ("api-layer")
	    └── http-server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Metadata store: BadgerDB under METADATA_DIR (records and schedule)
 4. Database dumper: sqlite or duckdb, opened lazily behind a circuit breaker
 5. Event bus: Watermill GoChannel
 6. Backup manager: marks interrupted backups failed on startup
 7. Supervisor tree and HTTP server

# Configuration

	DB_DRIVER=sqlite             # sqlite or duckdb
	DB_PATH=/data/db/app.db      # must be outside the data and uploads dirs
	BACKUP_DIR=/data/backups
	BACKUP_DATA_DIR=/data/app
	BACKUP_UPLOADS_DIR=/data/uploads
	METADATA_DIR=/data/metadata
	HTTP_PORT=8080
	LOG_LEVEL=info

See internal/config for the full list.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains within
HTTP_SHUTDOWN_TIMEOUT, the scheduler stops waiting for its next run and the
stores are closed last.

The metadata store holds an exclusive directory lock, so backupctl cannot
run against the same METADATA_DIR while the service is up; use the HTTP API
instead.
*/
package main
