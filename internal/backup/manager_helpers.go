// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import "time"

// GetStats returns statistics computed from the current record set.
func (m *Manager) GetStats() (*Stats, error) {
	backups, err := m.store.ListBackups()
	if err != nil {
		return nil, classify(err)
	}
	return ComputeStats(backups), nil
}

// ComputeStats derives Stats from records. In-progress records count toward
// neither side of the success rate.
func ComputeStats(backups []*Backup) *Stats {
	stats := &Stats{BackupsByType: make(map[BackupType]int)}

	var last time.Time
	for _, b := range backups {
		switch b.Status {
		case StatusCompleted:
			stats.TotalBackups++
			stats.TotalSize += b.Size
			stats.BackupsByType[b.Type]++
			if b.Created.After(last) {
				last = b.Created
			}
		case StatusFailed:
			stats.FailedBackups++
		}
	}

	if !last.IsZero() {
		stats.LastBackupDate = &last
	}
	if finished := stats.TotalBackups + stats.FailedBackups; finished > 0 {
		stats.SuccessRate = float64(stats.TotalBackups) / float64(finished) * 100
	}
	return stats
}
