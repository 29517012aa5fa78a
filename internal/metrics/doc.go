// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
Package metrics provides Prometheus metrics for the backup service.

All collectors are registered with the default registry through promauto
and are exposed by the HTTP server at /metrics:

	curl http://localhost:8080/metrics

# Available Metrics

Backup Metrics:
  - backup_operations_total: Backup attempts (counter)
    Labels: type, status
  - backup_duration_seconds: Attempt duration (histogram)
    Labels: type
  - backup_size_bytes: Size of the latest completed artifact (gauge)
    Labels: type
  - backup_in_progress: 1 while a backup runs (gauge)
  - restore_operations_total: Restore attempts (counter)
    Labels: status (success, failure)
  - backup_validations_total: Artifact validations (counter)
    Labels: result (valid, invalid)
  - backup_retention_deleted_total: Backups removed by retention (counter)

API Metrics:
  - api_requests_total: Requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Latency (histogram)
    Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)

# Usage

	start := time.Now()
	// ... produce artifact ...
	metrics.RecordBackup("full", "completed", time.Since(start), size)
*/
package metrics
