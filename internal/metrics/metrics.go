// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the backup service:
// - Backup creation outcome, duration and artifact size
// - Restore and validation outcomes
// - Retention deletions
// - API endpoint latency and throughput

var (
	// Backup Metrics
	BackupOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_operations_total",
			Help: "Total number of backup attempts by type and final status",
		},
		[]string{"type", "status"},
	)

	BackupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_duration_seconds",
			Help:    "Duration of backup attempts in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800}, // Dumps of small DBs up to the 30m deadline
		},
		[]string{"type"},
	)

	BackupSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backup_size_bytes",
			Help: "Size of the most recent completed artifact per backup type",
		},
		[]string{"type"},
	)

	BackupInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backup_in_progress",
			Help: "1 while a backup is being produced",
		},
	)

	RestoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restore_operations_total",
			Help: "Total number of restore attempts by status",
		},
		[]string{"status"},
	)

	BackupValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_validations_total",
			Help: "Total number of artifact validations by result",
		},
		[]string{"result"}, // "valid", "invalid"
	)

	BackupRetentionDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backup_retention_deleted_total",
			Help: "Total number of backups removed by the retention policy",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordBackup records the outcome of one backup attempt.
func RecordBackup(backupType, status string, duration time.Duration, size int64) {
	BackupOperationsTotal.WithLabelValues(backupType, status).Inc()
	BackupDuration.WithLabelValues(backupType).Observe(duration.Seconds())
	if status == "completed" {
		BackupSizeBytes.WithLabelValues(backupType).Set(float64(size))
	}
}

// SetBackupInProgress flips the in-progress gauge.
func SetBackupInProgress(active bool) {
	if active {
		BackupInProgress.Set(1)
	} else {
		BackupInProgress.Set(0)
	}
}

func RecordRestore(success bool) {
	if success {
		RestoreOperationsTotal.WithLabelValues("success").Inc()
	} else {
		RestoreOperationsTotal.WithLabelValues("failure").Inc()
	}
}

func RecordValidation(valid bool) {
	if valid {
		BackupValidationsTotal.WithLabelValues("valid").Inc()
	} else {
		BackupValidationsTotal.WithLabelValues("invalid").Inc()
	}
}

func RecordRetentionDeleted(n int) {
	BackupRetentionDeletedTotal.Add(float64(n))
}

func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
