// Package persist keeps the route store in sync with local durable storage
// and the remote snapshot store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"tracker/connectivity"
	dbt "tracker/db/db"
	"tracker/libs/autosave"
	"tracker/libs/timeutil"
	"tracker/route"
	"tracker/segment"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusQueued  Status = "queued"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// User-facing sync error messages.
const (
	msgCloudNewer     = "Newer data is available from the cloud."
	msgCloudChanged   = "Cloud changes detected while you were offline."
	msgLocalWrite     = "Unable to write to local storage."
	msgPersistFailed  = "Failed to persist the latest changes."
	msgCloudFailedFmt = "Unable to sync with the cloud: %v"
)

var (
	ErrNoConflict = errors.New("no sync conflict to resolve")
	ErrStarted    = errors.New("pipeline already started")
)

// Conflict is a divergence between local and remote state. LocalUpdatedAt is
// empty when there was no local snapshot.
type Conflict struct {
	RemoteSegments  []segment.Segment `json:"remoteSegments"`
	RemoteUpdatedAt string            `json:"remoteUpdatedAt"`
	LocalSegments   []segment.Segment `json:"localSegments"`
	LocalUpdatedAt  string            `json:"localUpdatedAt,omitempty"`
}

// State is the persistence status shown to the user.
type State struct {
	Status      Status    `json:"status"`
	LastSavedAt string    `json:"lastSavedAt,omitempty"`
	OutboxSize  int       `json:"outboxSize"`
	SyncError   string    `json:"syncError,omitempty"`
	Conflict    *Conflict `json:"conflict,omitempty"`
}

type Options struct {
	// Delay is the autosave debounce window.
	Delay time.Duration
	Now   func() time.Time
}

// Pipeline hydrates the store, autosaves user changes and reconciles them with
// the remote store. One Pipeline serves one running session.
type Pipeline struct {
	store  *route.Store
	local  *LocalStore
	remote dbt.SnapshotStore
	signal *connectivity.Signal
	queue  *autosave.Queue[dbt.Snapshot]
	now    func() time.Time

	// syncMu serialises remote writes and conflict resolution.
	syncMu sync.Mutex

	mu          sync.Mutex
	state       State
	cursor      string
	started     bool
	unsubscribe []func()
	listeners   map[uuid.UUID]func(State)
}

// New wires a pipeline. A nil signal is treated as always online.
func New(store *route.Store, local *LocalStore, remote dbt.SnapshotStore, signal *connectivity.Signal, opts Options) *Pipeline {
	if signal == nil {
		signal = connectivity.NewSignal(true)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	p := &Pipeline{
		store:     store,
		local:     local,
		remote:    remote,
		signal:    signal,
		now:       now,
		state:     State{Status: StatusIdle},
		listeners: make(map[uuid.UUID]func(State)),
	}
	p.queue = autosave.New(autosave.Options[dbt.Snapshot]{
		Delay:          opts.Delay,
		OnFlush:        p.flush,
		OnStatusChange: p.onQueueStatus,
	})
	return p
}

// Start hydrates from local storage, then from the remote store, and begins
// autosaving user changes. Remote failures are reported through State only.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrStarted
	}
	p.started = true
	p.mu.Unlock()

	localSnapshot, err := p.local.ReadSnapshot(ctx)
	if err != nil {
		p.setState(func(s *State) {
			s.Status = StatusError
			s.SyncError = "Failed to initialise autosave."
		})
		return fmt.Errorf("failed to read local snapshot: %w", err)
	}
	if localSnapshot != nil {
		p.store.ReplaceSegments(localSnapshot.Segments, route.OriginHydration)
		p.setState(func(s *State) {
			s.Status = StatusSaved
			s.LastSavedAt = localSnapshot.UpdatedAt
		})
	}

	outbox, err := p.local.ReadOutbox(ctx)
	if err != nil {
		return fmt.Errorf("failed to read local outbox: %w", err)
	}
	p.setState(func(s *State) { s.OutboxSize = len(outbox) })

	storedCursor, err := p.local.ReadCursor(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sync cursor: %w", err)
	}
	p.mu.Lock()
	p.cursor = storedCursor
	p.mu.Unlock()

	stored, err := p.local.ReadConflict(ctx)
	if err != nil {
		return fmt.Errorf("failed to read sync conflict: %w", err)
	}
	if stored != nil {
		p.setState(func(s *State) {
			s.Conflict = stored
			s.Status = StatusError
			s.SyncError = msgCloudChanged
		})
	}

	if p.signal.Online() {
		p.hydrateFromRemote(ctx, localSnapshot, len(outbox) > 0)
	}

	p.mu.Lock()
	p.unsubscribe = append(p.unsubscribe,
		p.store.Subscribe(p.onStoreChange),
		p.signal.Subscribe(p.onConnectivity),
	)
	p.mu.Unlock()

	if len(outbox) > 0 {
		if err := p.SyncOutbox(ctx, false); err != nil {
			log.Printf("[persist] initial outbox sync failed: %v", err)
		}
	}
	return nil
}

func (p *Pipeline) hydrateFromRemote(ctx context.Context, localSnapshot *dbt.Snapshot, pendingOutbox bool) {
	remote, err := p.remote.Fetch(ctx)
	if err != nil {
		log.Printf("[persist] remote hydration failed: %v", err)
		p.setState(func(s *State) {
			s.Status = StatusError
			s.SyncError = fmt.Sprintf(msgCloudFailedFmt, err)
		})
		return
	}
	if remote == nil {
		return
	}

	if p.State().Conflict != nil {
		p.refreshConflict(ctx, remote)
		return
	}

	if localSnapshot == nil || timeutil.After(remote.UpdatedAt, localSnapshot.UpdatedAt) {
		localUpdatedAt := ""
		if localSnapshot != nil {
			localUpdatedAt = localSnapshot.UpdatedAt
		}
		p.raiseConflict(ctx, Conflict{
			RemoteSegments:  segment.Clone(remote.Segments),
			RemoteUpdatedAt: remote.UpdatedAt,
			LocalSegments:   p.store.Segments(),
			LocalUpdatedAt:  localUpdatedAt,
		}, msgCloudNewer)
		return
	}

	if !pendingOutbox {
		p.advanceCursor(ctx, remote.UpdatedAt)
		return
	}
	// an unsynced outbox is checked against the last confirmed cursor and
	// cannot be checked without one
	if p.Cursor() == "" {
		p.raiseConflict(ctx, Conflict{
			RemoteSegments:  segment.Clone(remote.Segments),
			RemoteUpdatedAt: remote.UpdatedAt,
			LocalSegments:   p.store.Segments(),
			LocalUpdatedAt:  localSnapshot.UpdatedAt,
		}, msgCloudChanged)
	}
}

// refreshConflict points a conflict restored from an earlier session at the
// current remote snapshot and local segments.
func (p *Pipeline) refreshConflict(ctx context.Context, remote *dbt.Snapshot) {
	local := p.store.Segments()
	p.setState(func(s *State) {
		s.Conflict.RemoteSegments = segment.Clone(remote.Segments)
		s.Conflict.RemoteUpdatedAt = remote.UpdatedAt
		s.Conflict.LocalSegments = local
	})
	p.storeConflict(ctx, p.State().Conflict)
}

// Close stops autosaving. A flush already in flight is left to finish.
func (p *Pipeline) Close() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	p.queue.Cancel()
}

// Flush writes any pending change now instead of waiting for the debounce.
func (p *Pipeline) Flush(ctx context.Context) error {
	return p.queue.FlushNow(ctx)
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneState(p.state)
}

// Cursor returns the remote updatedAt the next conditional write is based on.
func (p *Pipeline) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// OnStateChange registers fn and returns a function that removes it.
func (p *Pipeline) OnStateChange(fn func(State)) func() {
	id := uuid.New()
	p.mu.Lock()
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Pipeline) onStoreChange(event route.ChangeEvent) {
	if event.Origin != route.OriginUser {
		return
	}
	p.queue.Schedule(dbt.Snapshot{
		Segments:  segment.Clone(event.Segments),
		UpdatedAt: timeutil.NormaliseISO(p.now()),
	})
}

func (p *Pipeline) onConnectivity(online bool) {
	if online {
		go func() {
			if err := p.SyncOutbox(context.Background(), false); err != nil {
				log.Printf("[persist] sync after reconnect failed: %v", err)
			}
		}()
		return
	}
	p.setState(func(s *State) {
		if s.OutboxSize > 0 {
			s.Status = StatusOffline
		}
	})
}

func (p *Pipeline) onQueueStatus(status autosave.Status, _ error) {
	p.setState(func(s *State) {
		switch status {
		case autosave.StatusScheduled:
			s.Status = StatusQueued
		case autosave.StatusSaving:
			s.Status = StatusSaving
			if s.Conflict == nil {
				s.SyncError = ""
			}
		case autosave.StatusIdle:
			if s.OutboxSize == 0 {
				s.Status = StatusSaved
			}
		case autosave.StatusError:
			s.Status = StatusError
			if s.SyncError == "" {
				s.SyncError = msgPersistFailed
			}
		}
	})
}

// flush is the autosave callback: local snapshot, single-entry outbox, then remote.
func (p *Pipeline) flush(ctx context.Context, payload dbt.Snapshot) error {
	if err := p.local.WriteSnapshot(ctx, payload); err != nil {
		p.setState(func(s *State) {
			s.Status = StatusError
			s.SyncError = msgLocalWrite
		})
		return err
	}
	entry := dbt.OutboxEntry{Snapshot: payload, QueuedAt: payload.UpdatedAt}
	// a forced entry that has not reached the remote yet stays forced
	if queued, err := p.local.ReadOutbox(ctx); err == nil && len(queued) > 0 {
		entry.Force = queued[len(queued)-1].Force
	}
	if err := p.local.WriteOutbox(ctx, []dbt.OutboxEntry{entry}); err != nil {
		p.setState(func(s *State) {
			s.Status = StatusError
			s.SyncError = msgLocalWrite
		})
		return err
	}
	p.setState(func(s *State) {
		s.LastSavedAt = payload.UpdatedAt
		s.OutboxSize = 1
	})
	return p.SyncOutbox(ctx, false)
}

// SyncOutbox pushes the outbox to the remote store. While a conflict is open
// only a forced sync is attempted, and a forced sync that succeeds resolves
// it. A rejected write opens a conflict and is not returned as an error; other
// remote failures are.
func (p *Pipeline) SyncOutbox(ctx context.Context, force bool) error {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()
	return p.syncOutboxLocked(ctx, force)
}

func (p *Pipeline) syncOutboxLocked(ctx context.Context, force bool) error {
	outbox, err := p.local.ReadOutbox(ctx)
	if err != nil {
		return fmt.Errorf("failed to read local outbox: %w", err)
	}
	for _, entry := range outbox {
		force = force || entry.Force
	}

	conflictOpen := p.State().Conflict != nil
	if conflictOpen && !force {
		p.setState(func(s *State) {
			s.Status = StatusError
			if s.SyncError == "" {
				s.SyncError = msgCloudChanged
			}
		})
		return nil
	}
	p.setState(func(s *State) { s.OutboxSize = len(outbox) })

	if len(outbox) == 0 {
		p.setState(func(s *State) {
			if s.Conflict == nil {
				s.Status = StatusSaved
			}
		})
		return nil
	}
	if !p.signal.Online() {
		p.setState(func(s *State) { s.Status = StatusOffline })
		return nil
	}

	var latest *dbt.Snapshot
	for _, entry := range outbox {
		snapshot := dbt.Snapshot{Segments: entry.Segments, UpdatedAt: entry.UpdatedAt}
		if force {
			snapshot.UpdatedAt = timeutil.NormaliseISO(p.now())
		}

		saved, err := p.remote.Save(ctx, snapshot, dbt.SaveOptions{BaseUpdatedAt: p.Cursor(), Force: force})
		if conflict, ok := dbt.AsConflict(err); ok {
			p.raiseConflict(ctx, Conflict{
				RemoteSegments:  segment.Clone(conflict.Existing.Segments),
				RemoteUpdatedAt: conflict.Existing.UpdatedAt,
				LocalSegments:   p.store.Segments(),
				LocalUpdatedAt:  entry.UpdatedAt,
			}, msgCloudChanged)
			return nil
		}
		if err != nil {
			p.setState(func(s *State) {
				s.Status = StatusError
				s.SyncError = fmt.Sprintf(msgCloudFailedFmt, err)
			})
			return fmt.Errorf("failed to save remote snapshot: %w", err)
		}
		latest = &saved
		p.advanceCursor(ctx, saved.UpdatedAt)
		p.restampLocal(ctx, entry.UpdatedAt, saved)
	}

	remaining, err := p.clearOutbox(ctx, outbox[len(outbox)-1].UpdatedAt)
	if err != nil {
		return err
	}
	if conflictOpen {
		p.clearConflict(ctx)
	}
	p.setState(func(s *State) {
		if remaining == 0 {
			s.Status = StatusSaved
		}
		s.LastSavedAt = latest.UpdatedAt
		s.OutboxSize = remaining
		s.SyncError = ""
	})
	return nil
}

// clearOutbox empties the outbox unless a newer entry replaced the pushed one
// meanwhile, and returns the number of entries left.
func (p *Pipeline) clearOutbox(ctx context.Context, pushedAt string) (int, error) {
	current, err := p.local.ReadOutbox(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read local outbox: %w", err)
	}
	if len(current) > 0 && current[len(current)-1].UpdatedAt != pushedAt {
		return len(current), nil
	}
	if err := p.local.WriteOutbox(ctx, nil); err != nil {
		return 0, fmt.Errorf("failed to clear local outbox: %w", err)
	}
	return 0, nil
}

// restampLocal rewrites the local snapshot with the timestamp the remote
// stored, so the next start does not read its own write as a newer remote.
func (p *Pipeline) restampLocal(ctx context.Context, queuedAt string, saved dbt.Snapshot) {
	if saved.UpdatedAt == queuedAt {
		return
	}
	local, err := p.local.ReadSnapshot(ctx)
	if err != nil || local == nil || local.UpdatedAt != queuedAt {
		return
	}
	if err := p.local.WriteSnapshot(ctx, saved); err != nil {
		log.Printf("[persist] failed to restamp local snapshot: %v", err)
	}
}

// AcceptRemote replaces local state with the conflicting remote snapshot.
func (p *Pipeline) AcceptRemote(ctx context.Context) error {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	conflict := p.State().Conflict
	if conflict == nil {
		return ErrNoConflict
	}
	// a pending local payload would overwrite what is being accepted
	p.queue.Cancel()

	snapshot := dbt.Snapshot{Segments: conflict.RemoteSegments, UpdatedAt: conflict.RemoteUpdatedAt}
	p.store.ReplaceSegments(snapshot.Segments, route.OriginRemote)

	if err := p.local.WriteSnapshot(ctx, snapshot); err != nil {
		p.setState(func(s *State) {
			s.Status = StatusError
			s.SyncError = msgLocalWrite
		})
		return err
	}
	if err := p.local.WriteOutbox(ctx, nil); err != nil {
		return fmt.Errorf("failed to clear local outbox: %w", err)
	}
	p.advanceCursor(ctx, snapshot.UpdatedAt)
	p.clearConflict(ctx)

	p.setState(func(s *State) {
		s.Status = StatusSaved
		s.LastSavedAt = snapshot.UpdatedAt
		s.OutboxSize = 0
		s.SyncError = ""
	})
	return nil
}

// KeepLocal discards the remote side of the conflict and force-writes the
// current local segments. Offline, the write stays in the outbox and the next
// sync is forced.
func (p *Pipeline) KeepLocal(ctx context.Context) error {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	if p.State().Conflict == nil {
		return ErrNoConflict
	}
	p.queue.Cancel()
	p.clearConflict(ctx)
	p.setState(func(s *State) {
		s.Status = StatusSaving
		s.SyncError = ""
	})

	snapshot := dbt.Snapshot{Segments: p.store.Segments(), UpdatedAt: timeutil.NormaliseISO(p.now())}
	if err := p.local.WriteSnapshot(ctx, snapshot); err != nil {
		p.setState(func(s *State) {
			s.Status = StatusError
			s.SyncError = msgLocalWrite
		})
		return err
	}
	entry := dbt.OutboxEntry{Snapshot: snapshot, QueuedAt: snapshot.UpdatedAt, Force: true}
	if err := p.local.WriteOutbox(ctx, []dbt.OutboxEntry{entry}); err != nil {
		return fmt.Errorf("failed to write local outbox: %w", err)
	}
	p.setState(func(s *State) {
		s.LastSavedAt = snapshot.UpdatedAt
		s.OutboxSize = 1
	})

	if !p.signal.Online() {
		p.setState(func(s *State) { s.Status = StatusOffline })
		return nil
	}

	saved, err := p.remote.Save(ctx, snapshot, dbt.SaveOptions{Force: true})
	if err != nil {
		p.setState(func(s *State) {
			s.Status = StatusError
			s.SyncError = fmt.Sprintf(msgCloudFailedFmt, err)
		})
		return fmt.Errorf("failed to force remote snapshot: %w", err)
	}
	p.advanceCursor(ctx, saved.UpdatedAt)
	p.restampLocal(ctx, snapshot.UpdatedAt, saved)
	if err := p.local.WriteOutbox(ctx, nil); err != nil {
		return fmt.Errorf("failed to clear local outbox: %w", err)
	}
	p.setState(func(s *State) {
		s.Status = StatusSaved
		s.LastSavedAt = saved.UpdatedAt
		s.OutboxSize = 0
		s.SyncError = ""
	})
	return nil
}

// raiseConflict opens c unless a conflict is already open; the open one is kept.
// A newly opened conflict is stored locally so it survives a restart.
func (p *Pipeline) raiseConflict(ctx context.Context, c Conflict, message string) {
	opened := false
	p.setState(func(s *State) {
		if s.Conflict == nil {
			s.Conflict = &c
			opened = true
		}
		s.Status = StatusError
		s.SyncError = message
	})
	if opened {
		p.storeConflict(ctx, &c)
	}
}

func (p *Pipeline) storeConflict(ctx context.Context, c *Conflict) {
	if c == nil {
		return
	}
	if err := p.local.WriteConflict(ctx, *c); err != nil {
		log.Printf("[persist] failed to store sync conflict: %v", err)
	}
}

func (p *Pipeline) clearConflict(ctx context.Context) {
	p.setState(func(s *State) { s.Conflict = nil })
	if err := p.local.ClearConflict(ctx); err != nil {
		log.Printf("[persist] failed to clear stored sync conflict: %v", err)
	}
}

func (p *Pipeline) advanceCursor(ctx context.Context, cursor string) {
	p.mu.Lock()
	p.cursor = cursor
	p.mu.Unlock()
	if err := p.local.WriteCursor(ctx, cursor); err != nil {
		log.Printf("[persist] failed to store sync cursor: %v", err)
	}
}

func (p *Pipeline) setState(mutate func(*State)) {
	p.mu.Lock()
	mutate(&p.state)
	snapshot := cloneState(p.state)
	listeners := make([]func(State), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func cloneState(s State) State {
	if s.Conflict != nil {
		c := *s.Conflict
		c.RemoteSegments = segment.Clone(c.RemoteSegments)
		c.LocalSegments = segment.Clone(c.LocalSegments)
		s.Conflict = &c
	}
	return s
}
