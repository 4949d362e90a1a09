package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pricing-api/internal/models"
)

// FeeEventPublisher emits pricing domain events. Publishing is best effort:
// failures are logged and never bubble into the request path.
type FeeEventPublisher interface {
	PublishFeeCreated(ctx context.Context, fee *models.Fee) error
	PublishDiscountRedeemed(ctx context.Context, userID int64, fee *models.Fee) error
	PublishAssignmentGranted(ctx context.Context, userID int64, feeID primitive.ObjectID) error
	PublishAssignmentRemoved(ctx context.Context, userID int64, feeID primitive.ObjectID) error
	Close() error
}

type rabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

type PublisherConfig struct {
	URL      string
	Exchange string
}

func NewRabbitMQPublisher(config *PublisherConfig) (FeeEventPublisher, error) {
	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		config.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &rabbitMQPublisher{
		conn:     conn,
		channel:  channel,
		exchange: config.Exchange,
	}, nil
}

type event struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

func (p *rabbitMQPublisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(event{
		EventID:   uuid.New().String(),
		EventType: routingKey,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		logrus.WithError(err).WithField("routing_key", routingKey).Error("Failed to publish event")
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *rabbitMQPublisher) PublishFeeCreated(ctx context.Context, fee *models.Fee) error {
	return p.publish(ctx, "fee.created", map[string]interface{}{
		"fee_id": fee.ID.Hex(),
		"label":  fee.Label,
		"kind":   fee.Kind,
		"value":  fee.Value,
	})
}

func (p *rabbitMQPublisher) PublishDiscountRedeemed(ctx context.Context, userID int64, fee *models.Fee) error {
	return p.publish(ctx, "discount.redeemed", map[string]interface{}{
		"user_id":       userID,
		"fee_id":        fee.ID.Hex(),
		"discount_code": fee.DiscountCode,
	})
}

func (p *rabbitMQPublisher) PublishAssignmentGranted(ctx context.Context, userID int64, feeID primitive.ObjectID) error {
	return p.publish(ctx, "assignment.granted", map[string]interface{}{
		"user_id": userID,
		"fee_id":  feeID.Hex(),
	})
}

func (p *rabbitMQPublisher) PublishAssignmentRemoved(ctx context.Context, userID int64, feeID primitive.ObjectID) error {
	return p.publish(ctx, "assignment.removed", map[string]interface{}{
		"user_id": userID,
		"fee_id":  feeID.Hex(),
	})
}

func (p *rabbitMQPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
