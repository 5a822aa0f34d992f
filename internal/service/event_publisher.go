package service

import (
	"context"
	"encoding/json"
	"time"

	"research-agent-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// NewEventBus returns the in-process session event bus. Publish returns only
// after the relay acked the message, so watchers see events in publish order.
func NewEventBus(log watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: true,
		},
		log,
	)
}

type IEventPublisher interface {
	Publish(ctx context.Context, evt dto.SessionEventMessage) error
}

type eventPublisher struct {
	topicName string
	publisher message.Publisher
}

func NewEventPublisher(topicName string, publisher message.Publisher) IEventPublisher {
	return &eventPublisher{
		topicName: topicName,
		publisher: publisher,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, evt dto.SessionEventMessage) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return p.publisher.Publish(p.topicName, msg)
}

func newEvent(eventType string, sessionID uuid.UUID, runID *uuid.UUID, data map[string]interface{}) dto.SessionEventMessage {
	return dto.SessionEventMessage{
		Type:       eventType,
		SessionId:  sessionID,
		RunId:      runID,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
