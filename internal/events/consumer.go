package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/machine"
)

const RestockConsumerName = "vending-restock"

// HandlerFunc processes one message body. Returning an error nacks the
// message without requeueing it.
type HandlerFunc func(ctx context.Context, body []byte) error

type Restocker interface {
	MachineID() string
	Restock(ctx context.Context, req machine.RestockRequest) error
}

// Checkpointer remembers the last applied sequence per consumer and partition.
type Checkpointer interface {
	LastSequence(ctx context.Context, consumerName, partitionKey string) (int64, bool, error)
	Advance(ctx context.Context, consumerName, partitionKey string, seq int64) error
}

// RestockRequestedHandler applies restock commands addressed to this machine.
// checkpoints may be nil, in which case redelivered commands are applied again.
func RestockRequestedHandler(svc Restocker, checkpoints Checkpointer, logger *zap.Logger) HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, body []byte) error {
		env, err := parseEnvelope(body)
		if err != nil {
			return err
		}
		if err := env.Validate(EventTypeRestockRequested, 1); err != nil {
			return err
		}

		var payload RestockRequestedPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return fmt.Errorf("decode restock payload: %w", err)
		}
		if payload.MachineID != svc.MachineID() {
			logger.Debug("ignoring restock for another machine",
				zap.String("event_id", env.EventID),
				zap.String("target_machine_id", payload.MachineID),
			)
			return nil
		}
		if env.CorrelationID != "" {
			ctx = machine.WithCorrelationID(ctx, env.CorrelationID)
		}

		dedup := checkpoints != nil && env.Sequence != 0
		if dedup {
			last, ok, err := checkpoints.LastSequence(ctx, RestockConsumerName, env.PartitionKey)
			if err != nil {
				return err
			}
			if ok && env.Sequence <= last {
				logger.Info("skip duplicate restock",
					zap.String("partition", env.PartitionKey),
					zap.Int64("seq", env.Sequence),
					zap.Int64("last", last),
				)
				return nil
			}
			if ok && env.Sequence > last+1 {
				logger.Warn("sequence gap",
					zap.String("partition", env.PartitionKey),
					zap.Int64("seq", env.Sequence),
					zap.Int64("last", last),
				)
			}
		}

		req, err := payload.request()
		if err != nil {
			return fmt.Errorf("restock %s: %w", env.EventID, err)
		}
		if err := svc.Restock(ctx, req); err != nil {
			return fmt.Errorf("restock %s: %w", env.EventID, err)
		}

		if dedup {
			if err := checkpoints.Advance(ctx, RestockConsumerName, env.PartitionKey, env.Sequence); err != nil {
				return err
			}
		}
		logger.Info("restock applied",
			zap.String("event_id", env.EventID),
			zap.Int("products", len(payload.Products)),
			zap.Int("coin_lines", len(payload.Coins)),
		)
		return nil
	}
}

type consumerChannel interface {
	exchangeDeclarer
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// StartRestockConsumer binds this machine's queue to restock commands and
// handles deliveries until ctx is cancelled or the channel closes.
func StartRestockConsumer(ctx context.Context, conn *amqp.Connection, machineID string, handler HandlerFunc, logger *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	return startConsumer(ctx, ch, machineID, handler, logger)
}

// startConsumer owns ch: it is closed on any setup failure, or once the
// delivery loop returns.
func startConsumer(ctx context.Context, ch consumerChannel, machineID string, handler HandlerFunc, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare events exchange: %w", err)
	}

	queue := machineQueue(machineID, RestockRequestedRoutingKey)
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("queue declare: %w", err)
	}

	if err := ch.QueueBind(queue, RestockRequestedRoutingKey, EventsExchange, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(
		queue,
		vendingServiceName, // consumer tag
		false,              // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		defer ch.Close()
		consume(ctx, msgs, handler, logger.With(zap.String("queue", queue)))
	}()

	return nil
}

func consume(ctx context.Context, msgs <-chan amqp.Delivery, handler HandlerFunc, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping consumer")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("messages channel closed")
				return
			}

			if err := handler(ctx, msg.Body); err != nil {
				logger.Error("handle message", zap.String("message_id", msg.MessageId), zap.Error(err))
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}
