// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, string(backup.EventBackupFailed))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	event := backup.Event{
		Type:     backup.EventBackupFailed,
		BackupID: "b-1",
		Backup:   &backup.Backup{ID: "b-1", Type: backup.TypeDatabase, Status: backup.StatusFailed, Error: "connection refused"},
		Error:    "connection refused",
		Time:     time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC),
	}
	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-ch:
		defer msg.Ack()
		if got := msg.Metadata.Get(MetadataBackupID); got != "b-1" {
			t.Errorf("backup_id metadata = %q", got)
		}
		if got := msg.Metadata.Get(MetadataEventType); got != string(backup.EventBackupFailed) {
			t.Errorf("event_type metadata = %q", got)
		}
		decoded, err := Decode(msg)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if decoded.BackupID != "b-1" || decoded.Backup == nil || decoded.Backup.Status != backup.StatusFailed || !decoded.Time.Equal(event.Time) {
			t.Errorf("decoded = %+v", decoded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestBus_TopicIsolation(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deleted, err := bus.Subscribe(ctx, string(backup.EventBackupDeleted))
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(ctx, backup.Event{Type: backup.EventBackupCompleted, BackupID: "x"}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-deleted:
		t.Errorf("backup.deleted subscriber got %s", msg.Metadata.Get(MetadataEventType))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus(Config{})
	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := bus.Publish(context.Background(), backup.Event{Type: backup.EventBackupCompleted}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after close error = %v, want ErrClosed", err)
	}
	if _, err := bus.Subscribe(context.Background(), "backup.completed"); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() after close error = %v, want ErrClosed", err)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics()
	if len(topics) != 5 {
		t.Fatalf("Topics() = %v, want 5 topics", topics)
	}
	seen := make(map[string]bool)
	for _, topic := range topics {
		if seen[topic] {
			t.Errorf("duplicate topic %s", topic)
		}
		seen[topic] = true
	}
}

func TestLogSubscriber(t *testing.T) {
	bus := NewBus(DefaultConfig())
	defer bus.Close()

	got := make(chan backup.Event, 16)
	sub := NewLogSubscriber(bus, func(_ context.Context, e backup.Event) error {
		got <- e
		return nil
	})
	if sub.String() != "backup-event-log" {
		t.Errorf("String() = %q", sub.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Serve(ctx) }()

	// Subscriptions are set up asynchronously; publish until one lands.
	event := backup.Event{Type: backup.EventRestoreCompleted, BackupID: "r-1", Restore: &backup.RestoreResult{BackupID: "r-1"}}
	deadline := time.After(2 * time.Second)
	var received backup.Event
wait:
	for {
		if err := bus.Publish(context.Background(), event); err != nil {
			t.Fatal(err)
		}
		select {
		case received = <-got:
			break wait
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("subscriber never received an event")
		}
	}
	if received.BackupID != "r-1" || received.Type != backup.EventRestoreCompleted {
		t.Errorf("received = %+v", received)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestLogSubscriber_ReturnsWhenBusCloses(t *testing.T) {
	bus := NewBus(DefaultConfig())
	sub := NewLogSubscriber(bus, nil)

	done := make(chan error, 1)
	go func() { done <- sub.Serve(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Serve() error = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after Close")
	}
}
