// Package notify publishes booking notification jobs to the external task
// queue. Delivery (email, push) is the consumer's problem; this side only
// guarantees the job is handed to the broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const eventBookingCreated = "BOOKING_CREATED"

type bookingNotice struct {
	AppointmentID string    `json:"appointment_id"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// KafkaPublisher writes NotifyBooking jobs to a single topic, keyed by
// appointment id so one appointment's notices stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  SplitBrokers(brokers),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) EnqueueBookingNotice(ctx context.Context, appointmentID uuid.UUID) error {
	payload, err := json.Marshal(bookingNotice{
		AppointmentID: appointmentID.String(),
		EnqueuedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal booking notice: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(appointmentID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventBookingCreated)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write booking notice: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Disabled is the publisher used when no brokers are configured; it logs the
// would-be notice and drops it.
type Disabled struct {
	Log zerolog.Logger
}

func (d Disabled) EnqueueBookingNotice(_ context.Context, appointmentID uuid.UUID) error {
	d.Log.Debug().Stringer("appointment_id", appointmentID).Msg("notifications disabled, dropping booking notice")
	return nil
}

// SplitBrokers turns a comma separated broker list into its parts.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
