package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"image-variants/internal/domain"

	"github.com/wb-go/wbf/retry"
)

type fakeSender struct {
	key, value []byte
	err        error
	closed     bool
}

func (f *fakeSender) SendWithRetry(_ context.Context, _ retry.Strategy, key, value []byte) error {
	f.key, f.value = key, value
	return f.err
}

func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func TestProducerClient_Publish(t *testing.T) {
	sender := &fakeSender{}
	p := &ProducerClient{producer: sender}

	event := domain.ImageEvent{
		Type:       domain.EventImageUploaded,
		ImageID:    "7b4bb0f4-1cf6-4a8e-9a39-0d7e1f2c8a55",
		OwnerID:    "alice",
		Formats:    []domain.ImageFormat{domain.FormatWebP, domain.FormatPNG},
		OccurredAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if string(sender.key) != event.ImageID {
		t.Errorf("key = %q, want image id", sender.key)
	}

	var got domain.ImageEvent
	if err := json.Unmarshal(sender.value, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Type != event.Type || got.OwnerID != "alice" || len(got.Formats) != 2 {
		t.Errorf("payload = %+v", got)
	}

	if err := p.Close(); err != nil || !sender.closed {
		t.Errorf("Close = %v, closed = %v", err, sender.closed)
	}
}

func TestProducerClient_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	p := &ProducerClient{producer: &fakeSender{err: boom}}

	err := p.Publish(context.Background(), domain.ImageEvent{Type: domain.EventImageDeleted, ImageID: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}
