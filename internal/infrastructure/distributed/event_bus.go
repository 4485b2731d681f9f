package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"creatorhub/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	// EventChatMessage carries a direct message whose recipient is not connected locally.
	EventChatMessage EventType = "chat.message"
	// EventUserConnected tells other instances to drop their connection for the user.
	EventUserConnected EventType = "chat.user_connected"
)

const eventsChannel = "creatorhub:events"

// Event represents a distributed event
type Event struct {
	Type       EventType       `json:"type"`
	InstanceID string          `json:"instance_id"`
	Timestamp  time.Time       `json:"timestamp"`
	UserID     domain.UserID   `json:"user_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// EventBus fans chat events out to every instance over Redis pub/sub
type EventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	channel    string
}

func NewEventBus(
	client *redis.Client,
	instanceID string,
	logger *zap.SugaredLogger,
) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
		channel:    eventsChannel,
	}
}

func (eb *EventBus) InstanceID() string {
	return eb.instanceID
}

// Publish publishes an event to the event bus
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"user_id", event.UserID,
	)

	return nil
}

// Subscribe blocks, calling handler for every event published by other
// instances, until ctx is done.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
				)
				continue
			}

			if event.InstanceID == eb.instanceID {
				continue
			}

			if err := handler(&event); err != nil {
				eb.logger.Warnw("error handling event",
					"type", event.Type,
					"error", err,
				)
			}
		}
	}
}

func (eb *EventBus) PublishChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}

	return eb.Publish(ctx, &Event{
		Type:    EventChatMessage,
		UserID:  msg.To,
		Payload: payload,
	})
}

func (eb *EventBus) PublishUserConnected(ctx context.Context, userID domain.UserID) error {
	return eb.Publish(ctx, &Event{
		Type:   EventUserConnected,
		UserID: userID,
	})
}

// DecodeChatMessage returns the message carried by an EventChatMessage.
func (e *Event) DecodeChatMessage() (*domain.ChatMessage, error) {
	if e.Type != EventChatMessage {
		return nil, fmt.Errorf("event %s does not carry a chat message", e.Type)
	}
	var msg domain.ChatMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, fmt.Errorf("invalid chat message payload: %w", err)
	}
	return &msg, nil
}
