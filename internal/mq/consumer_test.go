package mq

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestConsumerStartWithoutConnection(t *testing.T) {
	// Daemon без брокера создаёт consumer с nil соединением и
	// остаётся на polling. Start обязан вернуть ошибку, а не упасть.
	c := NewConsumer(nil, slog.Default(), ConsumerConfig{
		Queue:   string(QueueJobsReady),
		Handler: func(ctx context.Context, msg *Delivery) error { return nil },
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := c.Start(ctx)
	if err == nil {
		t.Fatal("expected error from Start without connection")
	}
	if !errors.Is(err, ErrNoConnection) {
		t.Errorf("expected ErrNoConnection, got %v", err)
	}
}

func TestParsePayload(t *testing.T) {
	buildID := uuid.New()

	msg := &Message{
		ID:   uuid.NewString(),
		Type: MessageTypeBuildPending,
		// После json.Unmarshal payload приходит как map[string]any
		Payload: map[string]any{"build_id": buildID.String()},
	}

	payload, err := ParsePayload[BuildPendingPayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.BuildID != buildID {
		t.Errorf("expected build_id %s, got %s", buildID, payload.BuildID)
	}
}
