package service

import (
	"context"
	"encoding/json"

	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// SessionStream delivers serialized events to clients watching a session.
type SessionStream interface {
	Send(ctx context.Context, sessionID uuid.UUID, data []byte)
}

// BusPublisher forwards events to an external bus (NATS in production).
type BusPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IEventRelay interface {
	Consume(ctx context.Context) error
}

type eventRelay struct {
	subscriber message.Subscriber
	topicName  string
	stream     SessionStream
	bus        BusPublisher
	logger     logger.ILogger
}

// NewEventRelay moves in-process session events to live clients and to the bus.
// bus may be nil when no broker is configured.
func NewEventRelay(
	subscriber message.Subscriber,
	topicName string,
	stream SessionStream,
	bus BusPublisher,
	log logger.ILogger,
) IEventRelay {
	return &eventRelay{
		subscriber: subscriber,
		topicName:  topicName,
		stream:     stream,
		bus:        bus,
		logger:     log,
	}
}

func (r *eventRelay) Consume(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			r.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (r *eventRelay) processMessage(ctx context.Context, msg *message.Message) {
	// Malformed payloads are acked too; redelivery would not fix them.
	defer msg.Ack()

	var evt dto.SessionEventMessage
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		r.logger.Error("EventRelay", "Failed to unmarshal event", map[string]interface{}{"error": err.Error()})
		return
	}

	r.stream.Send(ctx, evt.SessionId, msg.Payload)

	if r.bus != nil {
		busEvt := events.SessionEvent{
			Kind:       evt.Type,
			SessionID:  evt.SessionId.String(),
			Data:       evt.Data,
			OccurredAt: evt.OccurredAt,
		}
		if evt.RunId != nil {
			busEvt.RunID = evt.RunId.String()
		}
		if err := r.bus.Publish(ctx, busEvt); err != nil {
			r.logger.Warn("EventRelay", "Bus publish failed", map[string]interface{}{
				"type":  evt.Type,
				"error": err.Error(),
			})
		}
	}

	r.logger.Info("EventRelay", "Event relayed", map[string]interface{}{
		"type":       evt.Type,
		"session_id": evt.SessionId.String(),
	})
}
