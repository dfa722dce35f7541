package mq

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Subscriber is any service that can be subscribed to by topic. M is the
// message type it delivers.
type Subscriber[M any] interface {
	Subscribe(topic string) (uuid.UUID, <-chan M, error)
	DeSubscribe(id uuid.UUID) error
}

// SubscribeProcessor subscribes service to topic and forwards every message
// through transformFunc into outputStream until ctx is done or the service
// closes the subscription. outputStream is closed on exit.
//
// transformFunc returns skip=true to drop a message; a transform error is
// logged and the message dropped.
func SubscribeProcessor[S Subscriber[M], M any, O any](
	topic string,
	ctx context.Context,
	service S,
	transformFunc func(msg M) (O, bool, error),
	outputStream chan<- O,
) error {
	uid, inputCh, err := service.Subscribe(topic)
	if err != nil {
		close(outputStream)
		return err
	}

	go func() {
		defer func() {
			if err := service.DeSubscribe(uid); err != nil {
				log.Printf("[mq] de-subscribing %s: %v", uid, err)
			}
			close(outputStream)
		}()

		for {
			select {
			case msg, ok := <-inputCh:
				if !ok {
					// parent closed the channel
					return
				}

				output, skip, err := transformFunc(msg)
				if err != nil {
					log.Printf("[mq] transforming message for %s: %v", uid, err)
					continue
				}
				if skip {
					continue
				}

				select {
				case outputStream <- output:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
