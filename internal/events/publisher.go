package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/machine"
	"github.com/andreasstove999/ecommerce-system/vending-machine-go/internal/vending"
)

const publishTimeout = 3 * time.Second

// Sequencer numbers events per partition. Both the Postgres repository and
// the in-memory counter in package sequence satisfy it.
type Sequencer interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type PublisherOptions struct {
	Producer string
	Now      func() time.Time
}

// Publisher implements machine.Publisher on top of a RabbitMQ topic exchange.
type Publisher struct {
	ch       channel
	seq      Sequencer
	producer string
	now      func() time.Time
}

func NewPublisher(conn *amqp.Connection, seq Sequencer, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, seq, opts), nil
}

func newPublisher(ch channel, seq Sequencer, opts PublisherOptions) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = vendingServiceName
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Publisher{ch: ch, seq: seq, producer: producer, now: now}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishProductSold(ctx context.Context, rec machine.SaleRecord) error {
	return p.publish(ctx, ProductSoldRoutingKey, EventTypeProductSold, productSoldSchema, rec.MachineID, productSoldPayload(rec))
}

func (p *Publisher) PublishChangeDispensed(ctx context.Context, rec machine.SettlementRecord) error {
	return p.publish(ctx, ChangeDispensedRoutingKey, EventTypeChangeDispensed, changeDispensedSchema, rec.MachineID, changeDispensedPayload(rec))
}

func (p *Publisher) PublishStockDepleted(ctx context.Context, machineID string, product vending.ProductSummary) error {
	payload := StockDepletedPayload{
		MachineID:   machineID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Price:       product.Price,
		DepletedAt:  p.now(),
	}
	return p.publish(ctx, StockDepletedRoutingKey, EventTypeStockDepleted, stockDepletedSchema, machineID, payload)
}

func (p *Publisher) publish(ctx context.Context, routingKey, eventName, schema, partitionKey string, payload any) error {
	seq, err := p.seq.NextSequence(ctx, partitionKey)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env, err := p.newEnvelope(ctx, eventName, schema, partitionKey, seq, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventName, err)
	}

	return p.publishJSON(ctx, routingKey, env.EventID, body)
}

func (p *Publisher) newEnvelope(ctx context.Context, eventName, schema, partitionKey string, seq int64, payload any) (EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal %s payload: %w", eventName, err)
	}
	correlationID := machine.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return EventEnvelope{
		EventName:     eventName,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		Producer:      p.producer,
		PartitionKey:  partitionKey,
		Sequence:      seq,
		OccurredAt:    p.now(),
		Schema:        schema,
		Payload:       raw,
	}, nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
		},
	)
}
