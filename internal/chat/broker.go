package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/quizbuzz/exam-service/internal/models"
)

// ErrBroadcastTimeout reports that live delivery was abandoned because a
// subscriber did not drain its buffer in time.
var ErrBroadcastTimeout = errors.New("chat broadcast timed out")

// defaultPublishTimeout bounds how long a broadcast waits on subscribers
// whose buffers are full before giving up on live delivery.
const defaultPublishTimeout = 5 * time.Second

// RoomBroker fans room messages out to live subscribers. Persistence happens
// before Broadcast is called; the broker only handles delivery to connected
// clients, so a subscriber joining later reads missed messages from history.
type RoomBroker struct {
	pubsub         *gochannel.GoChannel
	logger         *slog.Logger
	publishTimeout time.Duration
}

// NewRoomBroker creates an in-process broker
func NewRoomBroker(logger *slog.Logger) *RoomBroker {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			// A slow subscriber buffers up to this many messages before
			// blocking the publisher.
			OutputChannelBuffer: 64,
		},
		watermill.NewSlogLogger(logger),
	)

	return &RoomBroker{
		pubsub:         pubsub,
		logger:         logger,
		publishTimeout: defaultPublishTimeout,
	}
}

func roomTopic(roomID string) string {
	return fmt.Sprintf("chat.room.%s", roomID)
}

// Broadcast delivers one persisted message to the room's live subscribers
func (b *RoomBroker) Broadcast(ctx context.Context, msg *models.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	wmMsg := message.NewMessage(msg.ID, payload)
	wmMsg.SetContext(ctx)

	// Publish blocks while any subscriber's buffer is full. The message is
	// already persisted, so a stalled reader costs live delivery only; the
	// sender must not hang on it.
	done := make(chan error, 1)
	go func() {
		done <- b.pubsub.Publish(roomTopic(msg.RoomID), wmMsg)
	}()

	timer := time.NewTimer(b.publishTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to broadcast chat message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		b.logger.WarnContext(ctx, "chat broadcast timed out on a slow subscriber",
			"room_id", msg.RoomID, "message_id", msg.ID)
		return ErrBroadcastTimeout
	}
}

// Join subscribes to a room's live feed. The subscription ends when ctx is
// cancelled; the returned channel closes with it.
func (b *RoomBroker) Join(ctx context.Context, roomID string) (<-chan models.ChatMessage, error) {
	messages, err := b.pubsub.Subscribe(ctx, roomTopic(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to room: %w", err)
	}

	out := make(chan models.ChatMessage)
	go func() {
		defer close(out)
		for wmMsg := range messages {
			var msg models.ChatMessage
			if err := json.Unmarshal(wmMsg.Payload, &msg); err != nil {
				b.logger.ErrorContext(ctx, "failed to unmarshal chat message", "error", err)
				wmMsg.Ack()
				continue
			}
			wmMsg.Ack()

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close shuts the broker down and closes all subscriber channels
func (b *RoomBroker) Close() error {
	return b.pubsub.Close()
}
