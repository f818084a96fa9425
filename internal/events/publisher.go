// Package events publishes checkout notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rayaadinda/kp-inventory/internal/models"
)

const EventCheckoutCompleted = "checkout.completed"

type Publisher interface {
	PublishCheckout(ctx context.Context, event *models.CheckoutEvent) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
	return &kafkaPublisher{writer: writer}
}

// PublishCheckout writes the event keyed by work order, so every withdrawal
// for one work order lands on the same partition.
func (p *kafkaPublisher) PublishCheckout(ctx context.Context, event *models.CheckoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout event: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, event.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	message := kafka.Message{
		Key:   []byte(event.WorkOrderNumber),
		Value: payload,
		Time:  ts,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(EventCheckoutCompleted)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write checkout event to kafka: %w", err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

func (Nop) PublishCheckout(context.Context, *models.CheckoutEvent) error {
	return nil
}

func (Nop) Close() error {
	return nil
}
