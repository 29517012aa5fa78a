// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// HandlerFunc processes one decoded event.
type HandlerFunc func(ctx context.Context, event backup.Event) error

// LogSubscriber consumes every topic and writes each event to the log.
// It implements suture.Service.
type LogSubscriber struct {
	bus     *Bus
	handler HandlerFunc
}

// NewLogSubscriber creates a LogSubscriber. A nil handler only logs.
func NewLogSubscriber(bus *Bus, handler HandlerFunc) *LogSubscriber {
	return &LogSubscriber{bus: bus, handler: handler}
}

// Serve subscribes to all topics and processes messages until ctx is
// canceled or the bus is closed.
func (s *LogSubscriber) Serve(ctx context.Context) error {
	channels := make([]<-chan *message.Message, 0, len(Topics()))
	for _, topic := range Topics() {
		ch, err := s.bus.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		channels = append(channels, ch)
	}

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Go(func() {
			for msg := range ch {
				s.handle(ctx, msg)
			}
		})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrClosed
}

func (s *LogSubscriber) handle(ctx context.Context, msg *message.Message) {
	event, err := Decode(msg)
	if err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable backup event")
		msg.Ack()
		return
	}

	level := zerolog.InfoLevel
	if event.Error != "" {
		level = zerolog.WarnLevel
	}
	entry := logging.Ctx(ctx).WithLevel(level).
		Str("event", string(event.Type)).
		Str("backup_id", event.BackupID).
		Time("event_time", event.Time)
	if event.Error != "" {
		entry = entry.Str("error", event.Error)
	}
	entry.Msg("Backup event")

	if s.handler != nil {
		if err := s.handler(ctx, event); err != nil {
			logging.Error().Err(err).Str("event", string(event.Type)).Msg("Backup event handler failed")
		}
	}
	msg.Ack()
}

// String returns the service name for suture logging.
func (s *LogSubscriber) String() string {
	return "backup-event-log"
}
