package chat

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/quizbuzz/exam-service/internal/models"
)

func newTestBroker(t *testing.T) *RoomBroker {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	broker := NewRoomBroker(logger)
	t.Cleanup(func() { broker.Close() })
	return broker
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	broker := newTestBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed, err := broker.Join(ctx, "room-1")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	sent := &models.ChatMessage{
		ID:         "msg-1",
		RoomID:     "room-1",
		SenderID:   "user-1",
		SenderName: "alice",
		Body:       "hello",
		SentAt:     time.Now().UTC(),
	}
	if err := broker.Broadcast(context.Background(), sent); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	select {
	case got := <-feed:
		if got.ID != "msg-1" || got.Body != "hello" || got.SenderName != "alice" {
			t.Errorf("unexpected message: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	broker := newTestBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedA, err := broker.Join(ctx, "room-a")
	if err != nil {
		t.Fatalf("Join room-a failed: %v", err)
	}
	feedB, err := broker.Join(ctx, "room-b")
	if err != nil {
		t.Fatalf("Join room-b failed: %v", err)
	}

	msg := &models.ChatMessage{ID: "msg-2", RoomID: "room-a", SenderID: "u", SenderName: "n", Body: "only a"}
	if err := broker.Broadcast(context.Background(), msg); err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}

	select {
	case got := <-feedA:
		if got.ID != "msg-2" {
			t.Errorf("unexpected message in room-a: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room-a message")
	}

	select {
	case got := <-feedB:
		t.Errorf("room-b should not receive room-a messages, got %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinEndsWhenContextCancelled(t *testing.T) {
	broker := newTestBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	feed, err := broker.Join(ctx, "room-c")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	cancel()

	select {
	case _, open := <-feed:
		if open {
			t.Error("expected feed to close after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed to close")
	}
}

func TestBroadcastBoundedBySlowSubscriber(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	broker := &RoomBroker{
		pubsub:         gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger)),
		logger:         logger,
		publishTimeout: 50 * time.Millisecond,
	}
	t.Cleanup(func() { broker.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe without ever reading so the unbuffered channel stays full.
	if _, err := broker.pubsub.Subscribe(ctx, roomTopic("room-slow")); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	msg := &models.ChatMessage{ID: "msg-3", RoomID: "room-slow", SenderID: "u", SenderName: "n", Body: "stuck"}

	start := time.Now()
	err := broker.Broadcast(context.Background(), msg)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrBroadcastTimeout) {
		t.Fatalf("Broadcast returned %v, want ErrBroadcastTimeout", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("Broadcast took %v, should return shortly after the timeout", elapsed)
	}
}
