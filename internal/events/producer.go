package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Booking event types published to the event stream.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent is the payload published on booking lifecycle changes.
type BookingEvent struct {
	Type          string    `json:"type"`
	BookingID     string    `json:"booking_id"`
	Reference     string    `json:"reference"`
	UserID        string    `json:"user_id"`
	TourID        string    `json:"tour_id"`
	DepartureID   string    `json:"departure_id"`
	TravelerCount int       `json:"traveler_count"`
	TotalPrice    int64     `json:"total_price"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher emits booking lifecycle events. Publishing is best effort: the
// booking state in the database is the source of truth, consumers only get
// notifications.
type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
	Close() error
}

// KafkaProducer publishes booking events to a Kafka topic.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
	logger *logrus.Logger
}

// NewKafkaProducer creates a producer writing to the given topic.
func NewKafkaProducer(brokers []string, topic string, logger *logrus.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &KafkaProducer{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

// Publish writes one event keyed by booking ID so all events for a booking
// land on the same partition in order.
func (p *KafkaProducer) Publish(ctx context.Context, event BookingEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.BookingID),
		Value: data,
		Time:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to publish booking event: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"type":       event.Type,
		"booking_id": event.BookingID,
		"topic":      p.topic,
	}).Debug("Booking event published")

	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when the event stream is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event BookingEvent) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
