// Package events publishes appointment lifecycle events for downstream
// consumers (analytics, sync). Publishing is best-effort and never blocks a
// booking from completing.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"terminbuddy/internal/model"
	"terminbuddy/libs/kafkax"
)

const (
	TypeAppointmentCreated   = "terminbuddy.appointment.created.v1"
	TypeAppointmentCancelled = "terminbuddy.appointment.cancelled.v1"
	TypeAppointmentCompleted = "terminbuddy.appointment.completed.v1"
)

type Publisher interface {
	AppointmentEvent(ctx context.Context, eventType string, appt model.Appointment)
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaPublisher(brokers, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(kafkax.SplitBrokers(brokers)...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

func (p *KafkaPublisher) AppointmentEvent(ctx context.Context, eventType string, appt model.Appointment) {
	payload, err := json.Marshal(map[string]any{
		"event_type":     eventType,
		"appointment_id": appt.ID,
		"business_id":    appt.BusinessID,
		"client_id":      appt.ClientID,
		"starts_at":      appt.StartsAt.UTC().Format(time.RFC3339),
		"ends_at":        appt.EndsAt.UTC().Format(time.RFC3339),
		"status":         appt.Status,
		"occurred_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		p.logger.Error("event payload marshal failed", "err", err, "event_type", eventType)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(appt.BusinessID),
		Value: payload,
	})
	if err != nil {
		p.logger.Error("event publish failed", "err", err, "event_type", eventType, "appointment_id", appt.ID)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when KAFKA_BROKERS is not configured.
type NopPublisher struct{}

func (NopPublisher) AppointmentEvent(context.Context, string, model.Appointment) {}
func (NopPublisher) Close() error                                               { return nil }
