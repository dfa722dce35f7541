package mq

import "github.com/google/uuid"

// TopicProvider is a message that knows which topic it belongs to.
type TopicProvider interface {
	GetTopic() string
}

// SnapshotMessageQueue fans snapshot change notifications out to subscribers
// of one scope.
type SnapshotMessageQueue interface {
	Publish(msg SnapshotMessage) error
	Subscribe(scope string) (uuid.UUID, <-chan SnapshotMessage, error)
	DeSubscribe(id uuid.UUID) error
	Close() error
}
