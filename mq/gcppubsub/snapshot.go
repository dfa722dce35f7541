package gcppubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"

	"tracker/mq/mq"
)

const (
	scopeAttribute = "scope"
	snapshotTopic  = "route-snapshot-events"
)

// subscriptionInfo holds details about an active Pub/Sub subscription.
type subscriptionInfo struct {
	gcpSubscription *pubsub.Subscription
	cancel          context.CancelFunc
}

// GenericPubSubService provides a generic implementation for GCP Pub/Sub operations.
type GenericPubSubService[M any] struct {
	client              *pubsub.Client
	topic               *pubsub.Topic
	activeSubscriptions map[uuid.UUID]*subscriptionInfo
	subscriptionsMutex  sync.Mutex
	ctx                 context.Context
}

// NewGenericPubSubService creates a service for one message type, creating the
// topic when it does not exist yet.
func NewGenericPubSubService[M any](ctx context.Context, client *pubsub.Client, topicID string) (*GenericPubSubService[M], error) {
	if client == nil {
		return nil, errors.New("GCP Pub/Sub client is nil")
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existence of topic %s: %w", topicID, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic %s: %w", topicID, err)
		}
		log.Printf("[mq] created Pub/Sub topic: %s", topicID)
	}

	return &GenericPubSubService[M]{
		client:              client,
		topic:               topic,
		activeSubscriptions: make(map[uuid.UUID]*subscriptionInfo),
		ctx:                 ctx,
	}, nil
}

// Publish sends msg with its topic as the scope attribute and waits for the
// server acknowledgement.
func (s *GenericPubSubService[M]) Publish(msg mq.TopicProvider) error {
	typeName := reflect.TypeOf(msg).Name()
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", typeName, err)
	}

	result := s.topic.Publish(s.ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			scopeAttribute: msg.GetTopic(),
		},
	})
	if _, err := result.Get(s.ctx); err != nil {
		return fmt.Errorf("failed to publish %s to topic %s: %w", typeName, s.topic.ID(), err)
	}
	return nil
}

// Subscribe creates a filtered GCP subscription for scope and starts receiving.
// The GCP subscription is deleted when the receiver stops.
func (s *GenericPubSubService[M]) Subscribe(scope string) (uuid.UUID, <-chan M, error) {
	subscriptionID := uuid.New()
	typeName := reflect.TypeOf(*new(M)).Name()

	gcpSubName := fmt.Sprintf("sub-%s-%s", s.topic.ID(), subscriptionID.String())
	config := pubsub.SubscriptionConfig{
		Topic:            s.topic,
		Filter:           fmt.Sprintf("attributes.%s = %q", scopeAttribute, scope),
		ExpirationPolicy: 24 * time.Hour,
		AckDeadline:      10 * time.Second,
	}

	gcpSub, err := s.client.CreateSubscription(s.ctx, gcpSubName, config)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to create GCP subscription %s for %s: %w", gcpSubName, typeName, err)
	}

	msgChan := make(chan M, 5)
	receiveCtx, cancel := context.WithCancel(s.ctx)

	s.subscriptionsMutex.Lock()
	s.activeSubscriptions[subscriptionID] = &subscriptionInfo{
		gcpSubscription: gcpSub,
		cancel:          cancel,
	}
	s.subscriptionsMutex.Unlock()

	go func() {
		defer func() {
			s.subscriptionsMutex.Lock()
			delete(s.activeSubscriptions, subscriptionID)
			s.subscriptionsMutex.Unlock()

			if deleteErr := gcpSub.Delete(context.Background()); deleteErr != nil {
				log.Printf("[mq] error deleting GCP subscription %s: %v", gcpSub.ID(), deleteErr)
			}
			close(msgChan)
		}()

		// Receive blocks until the context is cancelled.
		err := gcpSub.Receive(receiveCtx, func(ctx context.Context, pubsubMsg *pubsub.Message) {
			pubsubMsg.Ack()

			var msg M
			if err := json.Unmarshal(pubsubMsg.Data, &msg); err != nil {
				log.Printf("[mq] error unmarshaling %s for %s: %v", typeName, subscriptionID, err)
				return
			}

			select {
			case msgChan <- msg:
			case <-time.After(2 * time.Second):
				log.Printf("[mq] timeout sending %s to %s", typeName, subscriptionID)
			case <-receiveCtx.Done():
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[mq] receive loop for %s subscription %s: %v", typeName, subscriptionID, err)
		}
	}()

	return subscriptionID, msgChan, nil
}

// DeSubscribe stops the receiver; the goroutine removes the entry and deletes
// the GCP subscription.
func (s *GenericPubSubService[M]) DeSubscribe(id uuid.UUID) error {
	s.subscriptionsMutex.Lock()
	info, ok := s.activeSubscriptions[id]
	if ok {
		info.cancel()
	}
	s.subscriptionsMutex.Unlock()

	if !ok {
		return fmt.Errorf("subscription ID %s not found for %s service", id, reflect.TypeOf(*new(M)).Name())
	}
	return nil
}

// Close cancels every active subscription.
func (s *GenericPubSubService[M]) Close() {
	s.subscriptionsMutex.Lock()
	defer s.subscriptionsMutex.Unlock()

	for _, info := range s.activeSubscriptions {
		info.cancel()
	}
}

// snapshotMQ implements mq.SnapshotMessageQueue on GCP Pub/Sub.
type snapshotMQ struct {
	genericService *GenericPubSubService[mq.SnapshotMessage]
	client         *pubsub.Client
}

// NewGCPSnapshotMessageQueue connects to Pub/Sub in projectID.
func NewGCPSnapshotMessageQueue(ctx context.Context, projectID string) (mq.SnapshotMessageQueue, error) {
	if projectID == "" {
		return nil, errors.New("GCP project id is required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Pub/Sub client for project %s: %w", projectID, err)
	}
	gs, err := NewGenericPubSubService[mq.SnapshotMessage](ctx, client, snapshotTopic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create generic service for SnapshotMessage: %w", err)
	}
	return &snapshotMQ{genericService: gs, client: client}, nil
}

func (q *snapshotMQ) Publish(msg mq.SnapshotMessage) error { return q.genericService.Publish(msg) }
func (q *snapshotMQ) Subscribe(scope string) (uuid.UUID, <-chan mq.SnapshotMessage, error) {
	return q.genericService.Subscribe(scope)
}
func (q *snapshotMQ) DeSubscribe(id uuid.UUID) error { return q.genericService.DeSubscribe(id) }

func (q *snapshotMQ) Close() error {
	q.genericService.Close()
	return q.client.Close()
}
