// Package events publishes domain events after a sale has committed.
package events

import (
	"context"
	"encoding/json"
	"time"

	"go-pos-ledger/internal/models"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const SaleCreatedType = "sale.created"

// SaleCreatedEvent is the payload of a sale.created message.
type SaleCreatedEvent struct {
	Type          string               `json:"type"`
	SaleID        string               `json:"sale_id"`
	Store         models.Store         `json:"store"`
	SaleDate      time.Time            `json:"sale_date"`
	Total         models.Amounts       `json:"total_amount"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	AmountPaid    decimal.Decimal      `json:"amount_paid"`
	SoldByID      string               `json:"sold_by_id"`
	Items         []SaleCreatedItem    `json:"items"`
}

type SaleCreatedItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// NewSaleCreated builds the event for a committed sale.
func NewSaleCreated(s *models.Sale) SaleCreatedEvent {
	ev := SaleCreatedEvent{
		Type:          SaleCreatedType,
		SaleID:        s.ID,
		Store:         s.Store,
		SaleDate:      s.SaleDate,
		Total:         s.TotalAmount,
		PaymentMethod: s.PaymentMethod,
		AmountPaid:    s.AmountPaid,
		SoldByID:      s.SoldByID,
		Items:         make([]SaleCreatedItem, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		ev.Items = append(ev.Items, SaleCreatedItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return ev
}

// Publisher delivers sale events. Delivery is best effort; the sale is already durable.
type Publisher interface {
	PublishSaleCreated(ctx context.Context, ev SaleCreatedEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishSaleCreated(context.Context, SaleCreatedEvent) error { return nil }
func (NopPublisher) Close() error                                             { return nil }

// KafkaPublisher writes events to one topic, keyed by store so a store's sales stay ordered.
type KafkaPublisher struct {
	writer  *otelkafka.Writer
	timeout time.Duration
}

// PublishTimeout bounds one publish, broker retries included.
const PublishTimeout = 3 * time.Second

// NewKafkaPublisher wraps a kafka-go writer with trace propagation in the message headers.
func NewKafkaPublisher(broker, topic string, tp trace.TracerProvider) (*KafkaPublisher, error) {
	base := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			semconv.MessagingDestinationNameKey.String(topic),
			attribute.String("messaging.kafka.client_id", "pos-ledger"),
		}),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{writer: writer, timeout: PublishTimeout}, nil
}

func (p *KafkaPublisher) PublishSaleCreated(ctx context.Context, ev SaleCreatedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// WriteMessage (singular) keeps the span linked to this message
	return p.writer.WriteMessage(ctx, kafka.Message{
		Key:   []byte(ev.Store),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
