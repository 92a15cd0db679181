package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"

	"github.com/example/eventhub/internal/models"
)

// EventPaymentCompleted is the event_type of messages sent for completed payments.
const EventPaymentCompleted = "payment.completed"

// PaymentCompletedEvent is the message value published to Kafka.
type PaymentCompletedEvent struct {
	EventType string               `json:"event_type"`
	Data      PaymentCompletedData `json:"data"`
}

// PaymentCompletedData carries the completed payment record.
type PaymentCompletedData struct {
	PaymentID     string  `json:"payment_id"`
	UserID        string  `json:"user_id"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
	ReceiptURL    *string `json:"receipt_url"`
	PaymentDate   string  `json:"payment_date"`
}

// Producer publishes payment events to a single topic.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer connects a synchronous producer to brokers.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	var (
		producer sarama.SyncProducer
		err      error
	)
	for attempt := 1; attempt <= 5; attempt++ {
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			log.Printf("[Kafka] producer connected to %v", brokers)
			return NewProducerWith(producer, topic), nil
		}
		log.Printf("[Kafka] connect attempt %d/5 failed: %v", attempt, err)
		time.Sleep(time.Duration(attempt) * time.Second)
	}

	return nil, fmt.Errorf("connect kafka %v: %w", brokers, err)
}

// NewProducerWith wraps an existing sync producer.
func NewProducerWith(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

// PublishPaymentCompleted sends payment keyed by its owner so a user's events stay ordered.
func (p *Producer) PublishPaymentCompleted(ctx context.Context, payment models.Payment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(PaymentCompletedEvent{
		EventType: EventPaymentCompleted,
		Data: PaymentCompletedData{
			PaymentID:     payment.PaymentID.String(),
			UserID:        payment.UserID.String(),
			Amount:        payment.Amount,
			PaymentMethod: string(payment.PaymentMethod),
			Status:        string(payment.Status),
			ReceiptURL:    payment.ReceiptURL,
			PaymentDate:   payment.PaymentDate.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return err
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(payment.UserID.String()),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", EventPaymentCompleted, err)
	}
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	return p.producer.Close()
}
