// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Kurisu21/webeenthere-sub006/internal/validation"
)

// Validate checks struct tag constraints first, then the rules that span
// more than one field.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateBackup(); err != nil {
		return err
	}

	return c.validatePaths()
}

// validateBackup validates settings whose meaning depends on the compression choice
func (c *Config) validateBackup() error {
	if c.Backup.Compression == "none" {
		return nil
	}
	if c.Backup.CompressionLevel < 1 || c.Backup.CompressionLevel > 9 {
		return fmt.Errorf("BACKUP_COMPRESSION_LEVEL must be between 1 and 9 for %s, got %d",
			c.Backup.Compression, c.Backup.CompressionLevel)
	}
	return nil
}

// validatePaths rejects layouts where a backup would archive its own output,
// where the metadata store shares the artifact tree, or where the live
// database file sits inside an archived tree. A restore copies archived
// trees back verbatim, which would overwrite the replayed database.
func (c *Config) validatePaths() error {
	if !filepath.IsAbs(c.Backup.Dir) {
		return fmt.Errorf("BACKUP_DIR must be an absolute path, got: %s", c.Backup.Dir)
	}

	backupDir := filepath.Clean(c.Backup.Dir)
	for name, dir := range map[string]string{
		"BACKUP_DATA_DIR":    c.Backup.DataDir,
		"BACKUP_UPLOADS_DIR": c.Backup.UploadsDir,
	} {
		if dir == "" {
			continue
		}
		if isWithin(backupDir, filepath.Clean(dir)) {
			return fmt.Errorf("%s must not contain BACKUP_DIR (%s)", name, c.Backup.Dir)
		}
		if c.Database.Path != "" && isWithin(filepath.Clean(c.Database.Path), filepath.Clean(dir)) {
			return fmt.Errorf("DB_PATH (%s) must be outside %s (%s); the database is backed up by its dump",
				c.Database.Path, name, dir)
		}
	}

	if isWithin(filepath.Clean(c.Metadata.Dir), backupDir) || isWithin(backupDir, filepath.Clean(c.Metadata.Dir)) {
		return fmt.Errorf("METADATA_DIR must be outside BACKUP_DIR")
	}
	return nil
}

// isWithin reports whether path equals root or lies below it.
func isWithin(path, root string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
