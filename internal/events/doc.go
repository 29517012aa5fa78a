// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
Package events carries backup lifecycle events over an in-process
Watermill pub/sub.

The backup manager publishes through the backup.EventSink interface. Bus
implements it on a gochannel Pub/Sub, with one topic per event type:

	backup.completed
	backup.failed
	backup.deleted
	restore.completed
	restore.failed

Payloads are the JSON encoding of backup.Event. The metadata of each
message carries backup_id and event_type so subscribers can route without
decoding.

LogSubscriber is a supervised service that writes every event to the
structured log. Further consumers (webhooks, notifications) subscribe to
the same Bus.

Delivery is at-most-once: events published while no subscriber is
listening are dropped, and nothing survives a restart. The metadata store
remains the source of truth.
*/
package events
