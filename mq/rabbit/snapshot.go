package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"tracker/mq/mq"
)

// All snapshot notifications go through this topic exchange, routed by scope.
const exchangeName = "route_snapshot_events"

func routingKey(scope string) string {
	return "snapshot." + scope
}

func declareExchange(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchangeName, err)
	}
	return nil
}

type rabbitConsumer struct {
	channel *amqp091.Channel
}

// rabbitSnapshotMessageQueue implements mq.SnapshotMessageQueue for RabbitMQ.
// Each subscriber gets its own exclusive queue, so every subscriber of a scope
// sees every message.
type rabbitSnapshotMessageQueue struct {
	conn *amqp091.Connection

	publishMu sync.Mutex
	channel   *amqp091.Channel

	mu        sync.Mutex
	consumers map[uuid.UUID]*rabbitConsumer
}

func NewRabbitSnapshotMessageQueue(conn *amqp091.Connection) (mq.SnapshotMessageQueue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		ch.Close()
		return nil, err
	}
	return &rabbitSnapshotMessageQueue{
		conn:      conn,
		channel:   ch,
		consumers: make(map[uuid.UUID]*rabbitConsumer),
	}, nil
}

func (q *rabbitSnapshotMessageQueue) Publish(msg mq.SnapshotMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q.publishMu.Lock()
	defer q.publishMu.Unlock()
	err = q.channel.PublishWithContext(ctx,
		exchangeName,               // exchange
		routingKey(msg.GetTopic()), // routing key
		false,                      // mandatory
		false,                      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (q *rabbitSnapshotMessageQueue) Subscribe(scope string) (uuid.UUID, <-chan mq.SnapshotMessage, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	queue, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, routingKey(scope), exchangeName, false, nil); err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to bind queue %s: %w", queue.Name, err)
	}
	msgs, err := ch.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		ch.Close()
		return uuid.Nil, nil, fmt.Errorf("failed to register a consumer: %w", err)
	}

	subscriberID := uuid.New()
	out := make(chan mq.SnapshotMessage)

	q.mu.Lock()
	q.consumers[subscriberID] = &rabbitConsumer{channel: ch}
	q.mu.Unlock()

	go func() {
		// msgs is closed when the consumer channel is closed
		defer func() {
			q.mu.Lock()
			delete(q.consumers, subscriberID)
			q.mu.Unlock()
			close(out)
		}()

		for d := range msgs {
			var msg mq.SnapshotMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Printf("[mq] failed to unmarshal SnapshotMessage: %v", err)
				continue
			}
			select {
			case out <- msg:
			case <-time.After(time.Second):
				log.Printf("[mq] timeout sending message to consumer %s, skipping", subscriberID)
			}
		}
	}()

	return subscriberID, out, nil
}

func (q *rabbitSnapshotMessageQueue) DeSubscribe(subscriberID uuid.UUID) error {
	q.mu.Lock()
	consumer, ok := q.consumers[subscriberID]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("consumer with ID %s not found", subscriberID)
	}
	return consumer.channel.Close()
}

// Close closes every consumer channel and the RabbitMQ connection.
func (q *rabbitSnapshotMessageQueue) Close() error {
	q.mu.Lock()
	consumers := make([]*rabbitConsumer, 0, len(q.consumers))
	for _, c := range q.consumers {
		consumers = append(consumers, c)
	}
	q.mu.Unlock()

	for _, c := range consumers {
		c.channel.Close()
	}
	q.channel.Close()
	return q.conn.Close()
}
