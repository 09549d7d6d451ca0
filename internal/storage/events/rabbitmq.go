package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/behzadon/songvote/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *zap.Logger
}

func cleanup(ch *amqp.Channel, conn *amqp.Connection, logger *zap.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("Failed to close RabbitMQ channel", zap.Error(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("Failed to close RabbitMQ connection", zap.Error(err))
		}
	}
}

func dial(host string, port int, user, password, vhost string) (*amqp.Connection, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", user, password, host, port, vhost)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return conn, nil
}

// declareTopology sets up the exchange and the durable vote events queue.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(VoteEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", VoteEventsQueue, err)
	}
	if err := ch.QueueBind(VoteEventsQueue, "vote.*", Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", VoteEventsQueue, err)
	}
	return nil
}

func NewRabbitMQPublisher(host string, port int, user, password, vhost string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	conn, err := dial(host, port, user, password, vhost)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		cleanup(nil, conn, logger)
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		cleanup(ch, conn, logger)
		return nil, err
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: ch,
		logger:  logger,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	var errs []error

	if err := p.channel.Close(); err != nil {
		p.logger.Error("Failed to close RabbitMQ channel", zap.Error(err))
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}

	if err := p.conn.Close(); err != nil {
		p.logger.Error("Failed to close RabbitMQ connection", zap.Error(err))
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %v", errs)
	}
	return nil
}

func (p *RabbitMQPublisher) PublishVoteCast(ctx context.Context, vote *domain.VoteEvent) error {
	return p.publishEvent(ctx, TypeVoteCast, vote)
}

func (p *RabbitMQPublisher) PublishVoteUpdated(ctx context.Context, vote *domain.VoteEvent) error {
	return p.publishEvent(ctx, TypeVoteUpdated, vote)
}

func (p *RabbitMQPublisher) publishEvent(ctx context.Context, eventType string, vote *domain.VoteEvent) error {
	data, err := json.Marshal(envelope{
		Type:      eventType,
		Timestamp: vote.OccurredAt.Format(time.RFC3339),
		Data:      vote,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		Exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.logger.Error("Failed to publish message to RabbitMQ",
			zap.Error(err),
			zap.String("routing_key", eventType),
		)
		return fmt.Errorf("publish message: %w", err)
	}

	return nil
}
