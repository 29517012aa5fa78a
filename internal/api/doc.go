// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
Package api provides the HTTP control surface for the backup service.

Every operation of the backup manager is exposed as a JSON endpoint under
/api/v1. Handlers decode and validate the request, call the manager, and
write the standard envelope.

Routes:

	POST   /api/v1/backups                 create
	GET    /api/v1/backups                 list (type, status, start_date, end_date, page, limit)
	GET    /api/v1/backups/stats           statistics
	GET    /api/v1/backups/{id}            get
	GET    /api/v1/backups/{id}/download   artifact download
	POST   /api/v1/backups/{id}/restore    restore
	POST   /api/v1/backups/{id}/validate   integrity check
	DELETE /api/v1/backups/{id}            delete
	GET    /api/v1/backup/schedule         schedule
	PUT    /api/v1/backup/schedule         partial schedule update
	POST   /api/v1/backup/retention/apply  retention pass
	GET    /api/v1/backup/retention/preview retention dry run
	GET    /health                         liveness
	GET    /metrics                        Prometheus

Response Envelope:

	{"success": true,  "data": {...}, "meta": {...}}
	{"success": false, "error": {"code": "...", "message": "...", "details": ...}}

A failed backup still answers with the persisted failed record in data, so
clients can show what went wrong without a second request.

Error Mapping:

Handlers map manager errors with errors.Is:

	backup.ErrValidation       400 VALIDATION_ERROR
	backup.ErrNotFound         404 NOT_FOUND
	backup.ErrBackupInProgress 409 BACKUP_IN_PROGRESS
	backup.ErrIntegrity        422 INTEGRITY_ERROR
	backup.ErrTimeout          504 TIMEOUT
	anything else              500

Middleware:

The stack is chi's RealIP and Recoverer, request IDs carried into the
logging context, security headers, Prometheus request metrics and per-IP
rate limiting through go-chi/httprate. Mutating routes get a stricter
limit than reads.
*/
package api
