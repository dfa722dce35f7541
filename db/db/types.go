package db

import (
	"errors"
	"fmt"

	"tracker/segment"
)

// Local store keys.
const (
	KeySnapshot = "segments:snapshot"
	KeyOutbox   = "segments:outbox"
	KeyUndo     = "segments:undo"
	KeyCursor   = "segments:cursor"
	KeyConflict = "segments:conflict"
)

// Snapshot is the unit of durable storage and remote sync.
type Snapshot struct {
	Segments  []segment.Segment `json:"segments"`
	UpdatedAt string            `json:"updatedAt"`
}

// OutboxEntry is a snapshot not yet confirmed by the remote store. Force marks
// an entry that overwrites the remote regardless of the cursor.
type OutboxEntry struct {
	Snapshot
	QueuedAt string `json:"queuedAt"`
	Force    bool   `json:"force,omitempty"`
}

// UndoEntry captures a deleted segment and the position it held in its group.
type UndoEntry struct {
	Segment segment.Segment `json:"segment"`
	Index   int             `json:"index"`
}

type SaveOptions struct {
	BaseUpdatedAt string
	Force         bool
}

// ConflictError carries the snapshot that is currently stored remotely.
type ConflictError struct {
	Existing Snapshot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("remote snapshot changed (stored updatedAt %s)", e.Existing.UpdatedAt)
}

// AsConflict unwraps err into a *ConflictError.
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// CheckConflict applies the optimistic concurrency rule shared by every
// SnapshotStore: a write is rejected when a snapshot is stored, the write is
// not forced, a base is given and the stored updatedAt differs from it.
func CheckConflict(stored *Snapshot, opts SaveOptions) error {
	if stored == nil || opts.Force || opts.BaseUpdatedAt == "" {
		return nil
	}
	if stored.UpdatedAt != opts.BaseUpdatedAt {
		return &ConflictError{Existing: CloneSnapshot(*stored)}
	}
	return nil
}

func CloneSnapshot(s Snapshot) Snapshot {
	return Snapshot{Segments: segment.Clone(s.Segments), UpdatedAt: s.UpdatedAt}
}
