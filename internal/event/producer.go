package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
	pkgkafka "github.com/pr-poehali-dev/zdrav-project/pkg/kafka"
)

// Topics the storefront publishes to.
var (
	TopicCartUpdated    = pkgkafka.Topic("cart", "updated")
	TopicOrderSubmitted = pkgkafka.Topic("order", "submitted")
)

const (
	AggregateTypeSession = "session"
	SourceStorefront     = "storefront"
)

// Publisher is the storefront's view of the event stream.
type Publisher interface {
	PublishCartUpdated(ctx context.Context, s *domain.Session, operation string) error
	PublishOrderSubmitted(ctx context.Context, o *domain.Order) error
}

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	SessionID  string         `json:"session_id"`
	Operation  string         `json:"operation"`
	Items      []CartItemData `json:"items"`
	ItemCount  int            `json:"item_count"`
	TotalPrice int64          `json:"total_price"`
}

// CartItemData is one cart line inside an event payload.
type CartItemData struct {
	ProductID int    `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// OrderSubmittedData is the payload of an order.submitted event.
type OrderSubmittedData struct {
	SessionID   string              `json:"session_id"`
	Items       []CartItemData      `json:"items"`
	Total       int64               `json:"total"`
	Contact     domain.CheckoutForm `json:"contact"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

func itemData(items []domain.CartItem) []CartItemData {
	out := make([]CartItemData, len(items))
	for i, it := range items {
		out[i] = CartItemData{ProductID: it.ID, Name: it.Name, Price: it.Price, Quantity: it.Quantity}
	}
	return out
}

type kafkaPublisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront events to Kafka.
type Producer struct {
	kafka  kafkaPublisher
	logger *slog.Logger
}

// NewProducer wraps a pkg/kafka producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishCartUpdated publishes the cart contents after a cart mutation.
func (p *Producer) PublishCartUpdated(ctx context.Context, s *domain.Session, operation string) error {
	data := CartUpdatedData{
		SessionID:  s.ID,
		Operation:  operation,
		Items:      itemData(s.Cart.Items),
		ItemCount:  s.Cart.ItemCount(),
		TotalPrice: s.Cart.TotalPrice(),
	}
	if err := p.publish(ctx, TopicCartUpdated, s.ID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session_id", s.ID),
		slog.String("operation", operation),
		slog.Int("item_count", data.ItemCount),
	)
	return nil
}

// PublishOrderSubmitted publishes a placed order.
func (p *Producer) PublishOrderSubmitted(ctx context.Context, o *domain.Order) error {
	data := OrderSubmittedData{
		SessionID:   o.SessionID,
		Items:       itemData(o.Items),
		Total:       o.Total,
		Contact:     o.Contact,
		SubmittedAt: o.SubmittedAt,
	}
	if err := p.publish(ctx, TopicOrderSubmitted, o.SessionID, data); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "published order.submitted event",
		slog.String("session_id", o.SessionID),
		slog.Int64("total", o.Total),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, sessionID string, data any) error {
	ev, err := pkgkafka.NewEventFromContext(ctx, topic, sessionID, AggregateTypeSession, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if err := p.kafka.Publish(ctx, topic, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// NopPublisher drops every event. It is used when no Kafka brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishCartUpdated(context.Context, *domain.Session, string) error { return nil }
func (NopPublisher) PublishOrderSubmitted(context.Context, *domain.Order) error       { return nil }
