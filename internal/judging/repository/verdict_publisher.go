package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"judgeflow/internal/common/mq"
	"judgeflow/internal/judging/model"
	appErr "judgeflow/pkg/errors"
)

const headerEventType = "x-event-type"

// VerdictPublisher announces final submission verdicts.
type VerdictPublisher interface {
	PublishFinal(ctx context.Context, event model.VerdictEvent) error
}

// MQVerdictPublisher publishes verdict events to a message queue.
type MQVerdictPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQVerdictPublisher creates a new MQ verdict publisher.
func NewMQVerdictPublisher(producer mq.Producer, topic string) *MQVerdictPublisher {
	return &MQVerdictPublisher{producer: producer, topic: topic}
}

// PublishFinal publishes a final verdict event keyed by submission id.
func (p *MQVerdictPublisher) PublishFinal(ctx context.Context, event model.VerdictEvent) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("verdict publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("verdict topic is required")
	}
	if event.SubmissionID == "" {
		return appErr.ValidationError("submissionId", "required")
	}
	event.Type = model.VerdictEventFinal
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal verdict event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.Key = event.SubmissionID
	message.Headers[headerEventType] = event.Type
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.MessagePublishFailed, "publish verdict event failed")
	}
	return nil
}
