package goch

import (
	"tracker/mq/mq"
)

// ChannelSnapshotMessageQueue implements mq.SnapshotMessageQueue in process.
type ChannelSnapshotMessageQueue struct {
	*fanOutQueueCore[mq.SnapshotMessage]
}

// NewChannelSnapshotMessageQueue creates an in-process queue. bufferSize is the
// publish buffer; 0 means unbuffered.
func NewChannelSnapshotMessageQueue(bufferSize int) mq.SnapshotMessageQueue {
	return &ChannelSnapshotMessageQueue{newFanOutQueueCore[mq.SnapshotMessage](bufferSize)}
}

func (q *ChannelSnapshotMessageQueue) Close() error {
	q.Stop()
	return nil
}
