// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/archive"
)

// isolate runs the test from an empty directory with no config path set,
// so neither a stray config.yaml nor CONFIG_PATH leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(ConfigPathEnvVar, "")
	return dir
}

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.RateLimitReqs != 100 || cfg.Server.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %d/%v, want 100/1m", cfg.Server.RateLimitReqs, cfg.Server.RateLimitWindow)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "/data/db/app.db" {
		t.Errorf("Database.Path = %q, want /data/db/app.db", cfg.Database.Path)
	}
	if cfg.Backup.Dir != "/data/backups" {
		t.Errorf("Backup.Dir = %q, want /data/backups", cfg.Backup.Dir)
	}
	if cfg.Backup.Compression != "gzip" {
		t.Errorf("Backup.Compression = %q, want gzip", cfg.Backup.Compression)
	}
	if cfg.Backup.Timeout != 30*time.Minute {
		t.Errorf("Backup.Timeout = %v, want 30m", cfg.Backup.Timeout)
	}
	if !cfg.Backup.PreRestoreBackup {
		t.Error("Backup.PreRestoreBackup should be true by default")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"DISABLE_RATE_LIMIT", "server.rate_limit_disabled"},
		{"DB_DRIVER", "database.driver"},
		{"DB_PATH", "database.path"},
		{"BACKUP_DIR", "backup.dir"},
		{"BACKUP_CONFIG_FILES", "backup.config_files"},
		{"BACKUP_PRE_RESTORE", "backup.pre_restore_backup"},
		{"METADATA_DIR", "metadata.dir"},
		{"LOG_LEVEL", "logging.level"},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := envTransformFunc(tt.input); result != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// TestFindConfigFile verifies config file discovery
func TestFindConfigFile(t *testing.T) {
	dir := isolate(t)

	t.Run("no config file exists", func(t *testing.T) {
		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("logging:\n  level: debug\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if result := findConfigFile(); result != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", result)
		}
	})

	t.Run("CONFIG_PATH wins", func(t *testing.T) {
		custom := filepath.Join(dir, "custom.yaml")
		if err := os.WriteFile(custom, []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv(ConfigPathEnvVar, custom)
		if result := findConfigFile(); result != custom {
			t.Errorf("findConfigFile() = %q, want %q", result, custom)
		}
	})

	t.Run("missing CONFIG_PATH falls back", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "nope.yaml"))
		if result := findConfigFile(); result != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", result)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DB_DRIVER", "duckdb")
	t.Setenv("DB_PATH", "/srv/app.duckdb")
	t.Setenv("BACKUP_DIR", "/srv/backups")
	t.Setenv("BACKUP_TIMEOUT", "5m")
	t.Setenv("BACKUP_COMPRESSION", "zstd")
	t.Setenv("BACKUP_CONFIG_FILES", "/etc/app/app.env, /etc/app/site.yaml,")
	t.Setenv("BACKUP_PRE_RESTORE", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != "duckdb" || cfg.Database.Path != "/srv/app.duckdb" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Backup.Timeout != 5*time.Minute {
		t.Errorf("Backup.Timeout = %v, want 5m", cfg.Backup.Timeout)
	}
	want := []string{"/etc/app/app.env", "/etc/app/site.yaml"}
	if strings.Join(cfg.Backup.ConfigFiles, "|") != strings.Join(want, "|") {
		t.Errorf("Backup.ConfigFiles = %v, want %v", cfg.Backup.ConfigFiles, want)
	}
	if cfg.Backup.PreRestoreBackup {
		t.Error("Backup.PreRestoreBackup should be overridden to false")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	dir := isolate(t)
	content := `
server:
  port: 7000
database:
  path: /srv/data.db
  batch_size: 500
backup:
  dir: /srv/backups
  compression: none
  config_files:
    - /etc/app/a.conf
metadata:
  dir: /srv/meta
`
	path := filepath.Join(dir, "backupd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Database.BatchSize != 500 {
		t.Errorf("Database.BatchSize = %d, want 500", cfg.Database.BatchSize)
	}
	if cfg.Backup.Compression != "none" {
		t.Errorf("Backup.Compression = %q, want none", cfg.Backup.Compression)
	}
	if len(cfg.Backup.ConfigFiles) != 1 || cfg.Backup.ConfigFiles[0] != "/etc/app/a.conf" {
		t.Errorf("Backup.ConfigFiles = %v", cfg.Backup.ConfigFiles)
	}
	// Untouched sections keep their defaults
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HTTP_PORT", "7100")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("Server.Port = %d, want 7100 (env over file)", cfg.Server.Port)
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad driver", map[string]string{"DB_DRIVER": "postgres"}, "Driver"},
		{"bad compression", map[string]string{"BACKUP_COMPRESSION": "lz4"}, "Compression"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "Level"},
		{"port out of range", map[string]string{"HTTP_PORT": "70000"}, "Port"},
		{"relative backup dir", map[string]string{"BACKUP_DIR": "backups"}, "BACKUP_DIR must be an absolute path"},
		{"level out of range", map[string]string{"BACKUP_COMPRESSION_LEVEL": "12"}, "BACKUP_COMPRESSION_LEVEL"},
		{"data dir contains backups", map[string]string{"BACKUP_DATA_DIR": "/data"}, "BACKUP_DATA_DIR"},
		{"metadata inside backups", map[string]string{"METADATA_DIR": "/data/backups/meta"}, "METADATA_DIR"},
		{"database inside data dir", map[string]string{"DB_PATH": "/data/app/app.db"}, "DB_PATH"},
		{"database inside uploads dir", map[string]string{"DB_PATH": "/data/uploads/db/app.db"}, "DB_PATH"},
		{"data dir contains database", map[string]string{"BACKUP_DATA_DIR": "/data/db"}, "BACKUP_DATA_DIR"},
		{"weak scrypt", map[string]string{"BACKUP_SCRYPT_WORK_FACTOR": "4"}, "ScryptWorkFactor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NoCompressionIgnoresLevel(t *testing.T) {
	cfg := defaultConfig()
	cfg.Backup.Compression = "none"
	cfg.Backup.CompressionLevel = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConversions(t *testing.T) {
	cfg := defaultConfig()
	cfg.Backup.Compression = "zstd"
	cfg.Backup.ConfigFiles = []string{"/etc/app/app.env"}
	cfg.Database.BatchSize = 250
	cfg.Logging.Format = "console"

	bc := cfg.BackupManagerConfig()
	if bc.BackupDir != cfg.Backup.Dir || bc.Compression != archive.Zstd {
		t.Errorf("BackupManagerConfig() = %+v", bc)
	}
	if err := bc.Validate(); err != nil {
		t.Errorf("converted backup config should validate: %v", err)
	}
	cfg.Backup.ConfigFiles[0] = "/changed"
	if bc.ConfigFiles[0] != "/etc/app/app.env" {
		t.Error("BackupManagerConfig() must copy ConfigFiles")
	}

	dc := cfg.DumpConfig()
	if dc.Driver != "sqlite" || dc.BatchSize != 250 || dc.BreakerThreshold != 3 {
		t.Errorf("DumpConfig() = %+v", dc)
	}

	lc := cfg.LoggingInitConfig()
	if lc.Format != "console" || !lc.Timestamp {
		t.Errorf("LoggingInitConfig() = %+v", lc)
	}

	if got := cfg.Server.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", got)
	}
}
