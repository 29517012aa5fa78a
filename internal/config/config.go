// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package config

import (
	"fmt"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/archive"
	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
	"github.com/Kurisu21/webeenthere-sub006/internal/dump"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// Config holds all configuration of the backup service and the operator CLI.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	dumper, err := dump.Open(cfg.DumpConfig())
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Backup   BackupConfig   `koanf:"backup"`
	Metadata MetadataConfig `koanf:"metadata"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// Per-IP API rate limiting
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig describes the source database that is dumped and restored.
type DatabaseConfig struct {
	Driver           string        `koanf:"driver" validate:"oneof=sqlite duckdb"`
	Path             string        `koanf:"path" validate:"required"`
	ConnectTimeout   time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	BreakerThreshold uint32        `koanf:"breaker_threshold" validate:"min=1"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BatchSize        int           `koanf:"batch_size" validate:"min=0"` // 0 = one INSERT per table
}

// BackupConfig holds artifact and source tree settings.
//
// Environment Variables:
//   - BACKUP_DIR: artifact root (default: /data/backups)
//   - BACKUP_DATA_DIR: tree archived as data/ (default: /data/app)
//   - BACKUP_UPLOADS_DIR: tree archived as uploads/ (default: /data/uploads)
//   - BACKUP_CONFIG_FILES: comma-separated files archived under config/
//   - BACKUP_COMPRESSION: gzip, zstd, none (default: gzip)
//   - BACKUP_TIMEOUT: overall deadline of one operation (default: 30m)
type BackupConfig struct {
	Dir              string   `koanf:"dir" validate:"required"`
	DataDir          string   `koanf:"data_dir"`
	UploadsDir       string   `koanf:"uploads_dir"`
	ConfigFiles      []string `koanf:"config_files"`
	Compression      string   `koanf:"compression" validate:"oneof=gzip zstd none"`
	CompressionLevel int      `koanf:"compression_level"`

	Timeout             time.Duration `koanf:"timeout" validate:"gt=0"`
	ScryptWorkFactor    int           `koanf:"scrypt_work_factor" validate:"min=10,max=22"`
	MaxEntrySize        int64         `koanf:"max_entry_size" validate:"gt=0"`
	PreRestoreBackup    bool          `koanf:"pre_restore_backup"`
	IncrementalFallback time.Duration `koanf:"incremental_fallback" validate:"gt=0"`
}

// MetadataConfig locates the metadata and schedule store.
type MetadataConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is the output format: json or console.
	// Console is human-readable for development.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// BackupManagerConfig converts the backup section for backup.NewManager.
func (c *Config) BackupManagerConfig() backup.Config {
	return backup.Config{
		BackupDir:           c.Backup.Dir,
		DataDir:             c.Backup.DataDir,
		UploadsDir:          c.Backup.UploadsDir,
		ConfigFiles:         append([]string(nil), c.Backup.ConfigFiles...),
		Compression:         archive.Algorithm(c.Backup.Compression),
		CompressionLevel:    c.Backup.CompressionLevel,
		MaxEntrySize:        c.Backup.MaxEntrySize,
		Timeout:             c.Backup.Timeout,
		ScryptWorkFactor:    c.Backup.ScryptWorkFactor,
		PreRestoreBackup:    c.Backup.PreRestoreBackup,
		IncrementalFallback: c.Backup.IncrementalFallback,
	}
}

// DumpConfig converts the database section for dump.Open.
func (c *Config) DumpConfig() dump.Config {
	return dump.Config{
		Driver:           c.Database.Driver,
		Path:             c.Database.Path,
		ConnectTimeout:   c.Database.ConnectTimeout,
		BatchSize:        c.Database.BatchSize,
		BreakerThreshold: c.Database.BreakerThreshold,
		BreakerTimeout:   c.Database.BreakerTimeout,
	}
}

// LoggingInitConfig converts the logging section for logging.Init.
func (c *Config) LoggingInitConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.Format = c.Logging.Format
	lc.Caller = c.Logging.Caller
	return lc
}

// Load loads configuration using a layered approach:
//  1. Built-in defaults
//  2. Config file (config.yaml if exists, or path specified in CONFIG_PATH env var)
//  3. Environment variables
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
