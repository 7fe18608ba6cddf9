package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/mrpixelvns-oss/vntech-sub000/internal/services"
)

const quoteSubmittedEventType = "configurator.quote.submitted"

// PubSubQuotePublisher publishes submitted quotes to a Pub/Sub topic.
type PubSubQuotePublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.QuotePublisher = (*PubSubQuotePublisher)(nil)

// NewPubSubQuotePublisher constructs a Pub/Sub backed quote publisher.
func NewPubSubQuotePublisher(topic *pubsub.Topic) (*PubSubQuotePublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub quote publisher: topic is required")
	}
	return &PubSubQuotePublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishQuoteSubmitted sends event and waits for the server to acknowledge it. Subscribers
// deduplicate on the quoteId attribute.
func (p *PubSubQuotePublisher) PublishQuoteSubmitted(ctx context.Context, event services.QuoteSubmittedEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub quote publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal quote event: %w", err)
	}

	attrs := map[string]string{"eventType": quoteSubmittedEventType}
	setAttr(attrs, "quoteId", event.QuoteID)
	setAttr(attrs, "currency", event.Currency)
	attrs["total"] = strconv.FormatInt(event.Total, 10)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish quote event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *PubSubQuotePublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
