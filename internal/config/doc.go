// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
Package config provides centralized configuration management for the backup
service and the backupctl operator CLI.

# Configuration Sources

Configuration is layered with Koanf v2, later layers overriding earlier ones:
  - Built-in defaults (defaultConfig)
  - Optional YAML file: CONFIG_PATH, else the first existing of config.yaml,
    config.yml, /etc/backupd/config.yaml
  - Environment variables, mapped through an explicit table

# Configuration Structure

  - ServerConfig: HTTP listener, timeouts and per-IP rate limiting
  - DatabaseConfig: source database driver (sqlite or duckdb) and path
  - BackupConfig: artifact root, archived trees, compression, encryption cost
  - MetadataConfig: directory of the metadata and schedule store
  - LoggingConfig: zerolog level and format

# Environment Variables

HTTP Server:
  - HTTP_HOST, HTTP_PORT (default: 0.0.0.0:8080)
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_SHUTDOWN_TIMEOUT
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Database:
  - DB_DRIVER: sqlite or duckdb (default: sqlite)
  - DB_PATH: database file
  - DB_CONNECT_TIMEOUT, DB_BREAKER_THRESHOLD, DB_BREAKER_TIMEOUT, DB_BATCH_SIZE

Backup:
  - BACKUP_DIR, BACKUP_DATA_DIR, BACKUP_UPLOADS_DIR, BACKUP_CONFIG_FILES
  - BACKUP_COMPRESSION, BACKUP_COMPRESSION_LEVEL
  - BACKUP_TIMEOUT, BACKUP_SCRYPT_WORK_FACTOR, BACKUP_MAX_ENTRY_SIZE
  - BACKUP_PRE_RESTORE, BACKUP_INCREMENTAL_FALLBACK
  - METADATA_DIR

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Validation

Struct tags are checked with go-playground/validator through the shared
validation package. Cross-field rules follow: the compression level must fit
the chosen algorithm, and neither the archived trees nor the metadata store
may contain the artifact root.

# Usage Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	logging.Init(cfg.LoggingInitConfig())
	mgr, err := backup.NewManager(cfg.BackupManagerConfig(), store, dumper)
*/
package config
