// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/archive"
)

// Config holds all backup-related configuration
type Config struct {
	// Directory to store artifacts, grouped by date folder
	BackupDir string

	// Directory tree archived as data/
	DataDir string

	// Directory tree archived as uploads/
	UploadsDir string

	// Top-level config files archived under config/ by full and files backups
	ConfigFiles []string

	// Compression applied to archive artifacts
	Compression      archive.Algorithm
	CompressionLevel int

	// MaxEntrySize caps a single entry on unpack
	MaxEntrySize int64

	// Timeout is the overall deadline of one backup or restore
	Timeout time.Duration

	// ScryptWorkFactor is the log2 scrypt cost for encrypted artifacts
	ScryptWorkFactor int

	// PreRestoreBackup takes a full safety backup before every restore
	PreRestoreBackup bool

	// IncrementalFallback is how far back the first incremental backup looks
	// when no completed backup exists
	IncrementalFallback time.Duration
}

// DefaultConfig returns the defaults used when no configuration is given.
func DefaultConfig() Config {
	return Config{
		BackupDir:           "/data/backups",
		DataDir:             "/data/app",
		UploadsDir:          "/data/uploads",
		Compression:         archive.Gzip,
		CompressionLevel:    6,
		MaxEntrySize:        archive.DefaultMaxEntrySize,
		Timeout:             30 * time.Minute,
		ScryptWorkFactor:    18,
		PreRestoreBackup:    true,
		IncrementalFallback: 24 * time.Hour,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.BackupDir == "" {
		return fmt.Errorf("backup dir is required")
	}
	if !filepath.IsAbs(c.BackupDir) {
		return fmt.Errorf("backup dir must be an absolute path, got: %s", c.BackupDir)
	}
	if _, err := archive.ParseAlgorithm(string(c.Compression)); err != nil {
		return err
	}
	if c.Compression != archive.None && (c.CompressionLevel < 1 || c.CompressionLevel > 9) {
		return fmt.Errorf("compression level must be between 1 and 9, got: %d", c.CompressionLevel)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("backup timeout must be positive, got: %s", c.Timeout)
	}
	if c.ScryptWorkFactor < 10 || c.ScryptWorkFactor > 22 {
		return fmt.Errorf("scrypt work factor must be between 10 and 22, got: %d", c.ScryptWorkFactor)
	}
	return nil
}

// EnsureBackupDir creates the backup directory if it doesn't exist
func (c *Config) EnsureBackupDir() error {
	if err := os.MkdirAll(c.BackupDir, 0o750); err != nil {
		return fmt.Errorf("failed to create backup directory %s: %w", c.BackupDir, err)
	}
	return nil
}

func (c *Config) archiveBuilder() *archive.Builder {
	return &archive.Builder{
		Algorithm:    c.Compression,
		Level:        c.CompressionLevel,
		MaxEntrySize: c.MaxEntrySize,
	}
}

// fileSources lists the trees and config files shared by full and files
// backups.
func (c *Config) fileSources() []archive.Source {
	var sources []archive.Source
	if c.DataDir != "" {
		sources = append(sources, archive.Source{Path: c.DataDir, Name: "data"})
	}
	if c.UploadsDir != "" {
		sources = append(sources, archive.Source{Path: c.UploadsDir, Name: "uploads"})
	}
	for _, f := range c.ConfigFiles {
		sources = append(sources, archive.Source{Path: f, Name: "config/" + filepath.Base(f)})
	}
	return sources
}
