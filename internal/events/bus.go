// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// Metadata keys set on every message.
const (
	MetadataBackupID  = "backup_id"
	MetadataEventType = "event_type"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("event bus is closed")

// Topics lists every topic the manager publishes to.
func Topics() []string {
	return []string{
		string(backup.EventBackupCompleted),
		string(backup.EventBackupFailed),
		string(backup.EventBackupDeleted),
		string(backup.EventRestoreCompleted),
		string(backup.EventRestoreFailed),
	}
}

// Config configures the Bus.
type Config struct {
	// OutputChannelBuffer is the per-subscriber buffer.
	OutputChannelBuffer int64
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{OutputChannelBuffer: 64}
}

// Bus is an in-process event bus that implements backup.EventSink.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a Bus backed by a Watermill gochannel Pub/Sub.
func NewBus(cfg Config) *Bus {
	if cfg.OutputChannelBuffer <= 0 {
		cfg.OutputChannelBuffer = DefaultConfig().OutputChannelBuffer
	}
	logger := logging.NewWatermillAdapter()
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.OutputChannelBuffer,
		}, logger),
		logger: logger,
	}
}

// Publish encodes event and publishes it on the topic named by its type.
func (b *Bus) Publish(ctx context.Context, event backup.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetadataBackupID, event.BackupID)
	msg.Metadata.Set(MetadataEventType, string(event.Type))
	msg.SetContext(ctx)

	if err := b.pubsub.Publish(string(event.Type), msg); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Subscribe returns the message channel for topic. The channel closes when
// ctx is canceled or the bus is closed. Each message must be acked.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts down the Pub/Sub and closes every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

// Decode unmarshals a message produced by Publish.
func Decode(msg *message.Message) (backup.Event, error) {
	var event backup.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return backup.Event{}, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return event, nil
}
