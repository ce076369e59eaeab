// Staywatch - Hotel Reservation Sync and Notification Engine
// Copyright 2026 Staywatch Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/staywatch/staywatch

// Package bus carries diff events between the poll engine, the notification
// classifier and the WebSocket forwarder over an in-process Watermill
// Pub/Sub. Consumers treat the streams exactly like a push subscription;
// that the upstream is polling stays encapsulated in the poll package.
package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/staywatch/staywatch/internal/models"
)

// Topics for diff event streams.
const (
	TopicReservationDiffs = "diff.reservations"
	TopicRoomDiffs        = "diff.rooms"
)

// Bus wraps a Watermill gochannel Pub/Sub with typed diff event helpers.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// New creates an in-process bus. The output buffer absorbs short consumer
// stalls; a consistently slow consumer backpressures its own subscription
// only, never the publisher of another topic.
func New(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger),
	}
}

// PublishDiff marshals ev and publishes it on topic.
func (b *Bus) PublishDiff(topic string, ev models.DiffEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal diff event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(ev.Kind))
	msg.Metadata.Set("loop", ev.Loop)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns the message stream for topic. The subscription is
// closed when ctx is canceled.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	ch, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return ch, nil
}

// Close shuts the Pub/Sub down, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// DecodeDiff unmarshals a diff event from a bus message.
func DecodeDiff(msg *message.Message) (models.DiffEvent, error) {
	var ev models.DiffEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return models.DiffEvent{}, fmt.Errorf("decode diff event: %w", err)
	}
	return ev, nil
}
