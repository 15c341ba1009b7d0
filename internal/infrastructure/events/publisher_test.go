package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/example/bookhub/internal/domain/booking"
)

func TestRecorderKeepsOrder(t *testing.T) {
	t.Parallel()

	r := &Recorder{}
	b := booking.Booking{ID: "bk_1", VenueID: "v1", Provider: "demo", Status: booking.StatusConfirmed}
	ctx := context.Background()
	if err := r.PublishJSON(ctx, booking.EventCreated, booking.NewEvent(booking.EventCreated, b, time.Now())); err != nil {
		t.Fatalf("publish: %v", err)
	}
	b.Status = booking.StatusCancelled
	if err := r.PublishJSON(ctx, booking.EventCancelled, booking.NewEvent(booking.EventCancelled, b, time.Now())); err != nil {
		t.Fatalf("publish: %v", err)
	}

	keys := r.Keys()
	if len(keys) != 2 || keys[0] != booking.EventCreated || keys[1] != booking.EventCancelled {
		t.Fatalf("keys = %v", keys)
	}
	var ev booking.Event
	if err := json.Unmarshal(r.Events[1].Payload, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.BookingID != "bk_1" || ev.Status != booking.StatusCancelled {
		t.Fatalf("event = %+v", ev)
	}
}

func TestPublisherAgainstBroker(t *testing.T) {
	url := os.Getenv("BOOKHUB_TEST_AMQP_URL")
	if url == "" {
		t.Skip("BOOKHUB_TEST_AMQP_URL not set")
	}
	p, err := NewPublisher(url, "bookhub.test")
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	defer p.Close()
	if err := p.PublishJSON(context.Background(), booking.EventCreated, map[string]string{"booking_id": "bk_test"}); err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
}
