// Package eventbridge publishes live events to an EventBridge bus so the
// websocket fan-out Lambda can deliver them to API Gateway connections.
package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"askingwho-backend/application/ports"
)

// Source is the event source of every live event
const Source = "askingwho.backend"

// Detail types. newMessage pushes are sent as MessageSent, anything else as LiveEvent.
const (
	DetailTypeMessageSent = "MessageSent"
	DetailTypeLiveEvent   = "LiveEvent"
)

// API is the subset of the EventBridge client used here
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ API = (*eventbridge.Client)(nil)

// Recorder receives push outcomes
type Recorder interface {
	LivePush(event string, err error)
}

// LiveEvent is the detail of a published event
type LiveEvent struct {
	UserID string          `json:"userId"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Publisher implements ports.LivePublisher on top of EventBridge
type Publisher struct {
	client   API
	busName  string
	recorder Recorder
	logger   *zap.Logger
}

var _ ports.LivePublisher = (*Publisher)(nil)

// NewPublisher creates a new EventBridge publisher. recorder may be nil.
func NewPublisher(client API, busName string, recorder Recorder, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, busName: busName, recorder: recorder, logger: logger}
}

func detailType(event string) string {
	if event == ports.EventNewMessage {
		return DetailTypeMessageSent
	}
	return DetailTypeLiveEvent
}

// Publish puts one event on the bus addressed to userID
func (p *Publisher) Publish(ctx context.Context, userID, event string, payload interface{}) error {
	err := p.publish(ctx, userID, event, payload)
	if p.recorder != nil {
		p.recorder.LivePush(event, err)
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, userID, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	detail, err := json.Marshal(LiveEvent{UserID: userID, Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(Source),
			DetailType:   aws.String(detailType(event)),
			Detail:       aws.String(string(detail)),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event, err)
	}
	if out.FailedEntryCount > 0 {
		for _, entry := range out.Entries {
			if entry.ErrorCode != nil {
				p.logger.Error("Failed to publish live event",
					zap.String("event", event),
					zap.String("userID", userID),
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d live events failed to publish", out.FailedEntryCount)
	}

	p.logger.Debug("Live event published",
		zap.String("event", event),
		zap.String("userID", userID),
		zap.String("eventBus", p.busName),
	)
	return nil
}

// ParseDetail decodes the detail of a live event received from the bus
func ParseDetail(detail []byte) (*LiveEvent, error) {
	var ev LiveEvent
	if err := json.Unmarshal(detail, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse live event: %w", err)
	}
	if ev.UserID == "" || ev.Event == "" {
		return nil, errors.New("live event is missing userId or event")
	}
	return &ev, nil
}
