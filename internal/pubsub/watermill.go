package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// WatermillQueue implements Publisher and Subscriber on top of watermill's
// GoChannel pub/sub. It is an in-process queue: delivery is at-least-once
// for the lifetime of the process, which matches what the presence
// aggregator needs; a missed broadcast self-heals on the next recompute.
type WatermillQueue struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger *slog.Logger
}

// NewWatermillQueue initializes the in-process queue.
func NewWatermillQueue() *WatermillQueue {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewSlogLogger(slog.Default()),
	)

	return &WatermillQueue{
		pub:    goChannel,
		sub:    goChannel,
		logger: slog.Default().With("service", "pubsub"),
	}
}

// Publish implements the Publisher interface.
func (q *WatermillQueue) Publish(ctx context.Context, msg Message) error {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	return q.pub.Publish(msg.Topic, wmMsg)
}

// Subscribe implements the Subscriber interface. The handler runs in a
// background goroutine per topic.
func (q *WatermillQueue) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := q.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wmMsg := range messages {
			msg := Message{
				Topic:    topic,
				Payload:  wmMsg.Payload,
				Metadata: wmMsg.Metadata,
			}
			if err := handler(ctx, msg); err != nil {
				q.logger.Error("failed to handle message",
					"topic", topic, "msg_id", wmMsg.UUID, "error", err)
				wmMsg.Nack()
				continue
			}
			wmMsg.Ack()
		}
		q.logger.Debug("subscription message loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts the queue down and stops all consumption.
func (q *WatermillQueue) Close() error {
	return q.sub.Close()
}
