package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

func TestPubSubQuotePublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "agency-test",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "quote-submitted")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubQuotePublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubQuotePublisher: %v", err)
	}
	defer publisher.Stop()

	event := services.QuoteSubmittedEvent{
		QuoteID:      "qt_01J0",
		Currency:     "VND",
		Total:        10_500_000,
		ItemIDs:      []string{"corporate-site", "blog"},
		PageCount:    6,
		ContactName:  "Lan",
		ContactEmail: "lan@example.vn",
		SubmittedAt:  time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC),
	}

	id, err := publisher.PublishQuoteSubmitted(ctx, event)
	if err != nil {
		t.Fatalf("PublishQuoteSubmitted: %v", err)
	}
	if id == "" {
		t.Fatalf("expected message id")
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.QuoteSubmittedEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.QuoteID != event.QuoteID || payload.Total != event.Total || len(payload.ItemIDs) != 2 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	attrs := messages[0].Attributes
	if attrs["quoteId"] != "qt_01J0" || attrs["total"] != "10500000" || attrs["eventType"] != quoteSubmittedEventType {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if _, ok := attrs["contactEmail"]; ok {
		t.Fatalf("contact details must stay out of attributes")
	}
}

func TestNewPubSubQuotePublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubQuotePublisher(nil); err == nil {
		t.Fatalf("expected error for nil topic")
	}
}
