package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/behzadon/songvote/internal/domain"
	"github.com/behzadon/songvote/internal/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type EventHandler interface {
	HandleVoteCast(ctx context.Context, vote *domain.VoteEvent) error
	HandleVoteUpdated(ctx context.Context, vote *domain.VoteEvent) error
}

type RabbitMQConsumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	handler   EventHandler
	logger    *zap.Logger
	queueName string
}

func NewRabbitMQConsumer(
	host string,
	port int,
	user, password, vhost string,
	queueName string,
	handler EventHandler,
	logger *zap.Logger,
) (*RabbitMQConsumer, error) {
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
	if err := ch.Qos(1, 0, false); err != nil {
		cleanup(ch, conn, logger)
		return nil, fmt.Errorf("set QoS: %w", err)
	}

	return &RabbitMQConsumer{
		conn:      conn,
		channel:   ch,
		handler:   handler,
		logger:    logger,
		queueName: queueName,
	}, nil
}

func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Error("Consumer channel closed")
					return
				}

				if err := Dispatch(ctx, c.handler, msg.Body); err != nil {
					c.logger.Error("Failed to handle message",
						zap.Error(err),
						zap.String("routing_key", msg.RoutingKey),
					)
					if err := msg.Nack(false, true); err != nil {
						c.logger.Error("Failed to nack message", zap.Error(err))
					}
					continue
				}

				if err := msg.Ack(false); err != nil {
					c.logger.Error("Failed to ack message", zap.Error(err))
				}
			}
		}
	}()

	return nil
}

// Dispatch decodes one event envelope and routes it to the handler.
func Dispatch(ctx context.Context, handler EventHandler, body []byte) error {
	var event struct {
		Type      string          `json:"type"`
		Timestamp string          `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	var vote domain.VoteEvent
	if err := json.Unmarshal(event.Data, &vote); err != nil {
		return fmt.Errorf("unmarshal vote: %w", err)
	}

	var err error
	switch event.Type {
	case TypeVoteCast:
		err = handler.HandleVoteCast(ctx, &vote)
	case TypeVoteUpdated:
		err = handler.HandleVoteUpdated(ctx, &vote)
	default:
		err = fmt.Errorf("unknown event type: %s", event.Type)
	}
	metrics.RecordEvent(event.Type, err)
	return err
}

func (c *RabbitMQConsumer) Close() error {
	var errs []error

	if err := c.channel.Close(); err != nil {
		c.logger.Error("Failed to close RabbitMQ channel", zap.Error(err))
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Error("Failed to close RabbitMQ connection", zap.Error(err))
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %v", errs)
	}
	return nil
}
