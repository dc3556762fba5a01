package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MeasureEvent is published after a measure is created or confirmed
type MeasureEvent struct {
	MeasureUUID     string  `json:"measure_uuid"`
	CustomerCode    string  `json:"customer_code"`
	MeasureType     string  `json:"measure_type"`
	MeasureDatetime string  `json:"measure_datetime"`
	MeasureValue    int64   `json:"measure_value"`
	ImageURL        string  `json:"image_url"`
	HasConfirmed    bool    `json:"has_confirmed"`
	AnomalyReason   *string `json:"anomaly_reason,omitempty"`
	OccurredAt      string  `json:"occurred_at"`
}

// Publisher handles measure event publishing to RabbitMQ
type Publisher struct {
	mu                  sync.Mutex
	channel             *amqp.Channel
	exchange            string
	uploadedRoutingKey  string
	confirmedRoutingKey string
	logger              *zap.Logger
}

// PublisherConfig holds publisher configuration
type PublisherConfig struct {
	Connection          *Connection
	Exchange            string
	UploadedRoutingKey  string
	ConfirmedRoutingKey string
	Logger              *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	ch, err := cfg.Connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		channel:             ch,
		exchange:            cfg.Exchange,
		uploadedRoutingKey:  cfg.UploadedRoutingKey,
		confirmedRoutingKey: cfg.ConfirmedRoutingKey,
		logger:              cfg.Logger,
	}, nil
}

// PublishMeasureUploaded publishes the event for a newly created measure
func (p *Publisher) PublishMeasureUploaded(ctx context.Context, event MeasureEvent) error {
	return p.publish(ctx, p.uploadedRoutingKey, event)
}

// PublishMeasureConfirmed publishes the event for a confirmed measure
func (p *Publisher) PublishMeasureConfirmed(ctx context.Context, event MeasureEvent) error {
	return p.publish(ctx, p.confirmedRoutingKey, event)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event MeasureEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    event.MeasureUUID,
		},
	)
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published measure event",
		zap.String("routing_key", routingKey),
		zap.String("measure_uuid", event.MeasureUUID),
		zap.String("customer_code", event.CustomerCode),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

// NopPublisher drops events; used when RabbitMQ is not configured
type NopPublisher struct{}

func (NopPublisher) PublishMeasureUploaded(context.Context, MeasureEvent) error  { return nil }
func (NopPublisher) PublishMeasureConfirmed(context.Context, MeasureEvent) error { return nil }
