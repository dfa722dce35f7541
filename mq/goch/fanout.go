package goch

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tracker/mq/mq"
)

const (
	publishTimeout   = time.Second
	subscriberBuffer = 16
)

type subscriber[T any] struct {
	topic string
	ch    chan T
}

// fanOutQueueCore delivers every published message to each subscriber of the
// message's topic. A subscriber that is not keeping up loses messages rather
// than blocking the others.
type fanOutQueueCore[T mq.TopicProvider] struct {
	publishChan chan T
	bufferSize  int

	mu          sync.RWMutex
	subscribers map[uuid.UUID]subscriber[T]

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// newFanOutQueueCore starts the dispatch loop. bufferSize is the capacity of
// the publish channel; 0 means unbuffered.
func newFanOutQueueCore[T mq.TopicProvider](bufferSize int) *fanOutQueueCore[T] {
	if bufferSize < 0 {
		bufferSize = 0
	}
	core := &fanOutQueueCore[T]{
		publishChan: make(chan T, bufferSize),
		bufferSize:  bufferSize,
		subscribers: make(map[uuid.UUID]subscriber[T]),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go core.run()
	return core
}

func (c *fanOutQueueCore[T]) run() {
	defer close(c.done)
	for {
		select {
		case msg := <-c.publishChan:
			c.dispatch(msg)
		case <-c.quit:
			c.mu.Lock()
			for id, sub := range c.subscribers {
				close(sub.ch)
				delete(c.subscribers, id)
			}
			c.mu.Unlock()
			return
		}
	}
}

func (c *fanOutQueueCore[T]) dispatch(msg T) {
	topic := msg.GetTopic()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, sub := range c.subscribers {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			log.Printf("[mq] subscriber %s is full, dropping message for %s", id, topic)
		}
	}
}

func (c *fanOutQueueCore[T]) stopped() bool {
	select {
	case <-c.quit:
		return true
	default:
		return false
	}
}

func (c *fanOutQueueCore[T]) Publish(msg T) error {
	if c.stopped() {
		return ErrQueueStopped
	}
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case c.publishChan <- msg:
		return nil
	case <-c.quit:
		return ErrQueueStopped
	case <-timer.C:
		return ErrQueueFull
	}
}

func (c *fanOutQueueCore[T]) Subscribe(topic string) (uuid.UUID, <-chan T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped() {
		return uuid.Nil, nil, ErrQueueStopped
	}
	id := uuid.New()
	ch := make(chan T, subscriberBuffer)
	c.subscribers[id] = subscriber[T]{topic: topic, ch: ch}
	return id, ch, nil
}

func (c *fanOutQueueCore[T]) DeSubscribe(id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subscribers[id]
	if !ok {
		return ErrSubscriberNotFound
	}
	delete(c.subscribers, id)
	close(sub.ch)
	return nil
}

// Stop closes every subscriber channel and waits for the dispatch loop to exit.
func (c *fanOutQueueCore[T]) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		close(c.quit)
		c.mu.Unlock()
	})
	<-c.done
}

// --- Error Definitions ---
type QueueError string

func (e QueueError) Error() string {
	return string(e)
}

const (
	ErrQueueFull          QueueError = "message queue is full"
	ErrQueueStopped       QueueError = "message queue is stopped"
	ErrSubscriberNotFound QueueError = "subscriber not found"
)
