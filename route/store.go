// Package route holds the authoritative segment collection and keeps every
// (team, leg) group densely ordered across mutations.
package route

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"tracker/segment"
)

// Origin tells listeners where a change came from. Only OriginUser changes
// are meant to be persisted again.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginHydration Origin = "hydration"
	OriginRemote    Origin = "remote"
)

// ChangeEvent carries the full collection after a committed mutation.
// Segments is shared between listeners and must be treated as read-only.
type ChangeEvent struct {
	Segments []segment.Segment
	Origin   Origin
}

type Listener func(ChangeEvent)

type Option func(*Store)

// WithSeed sets the initial collection, also restored by Reset.
func WithSeed(seed []segment.Segment) Option {
	return func(s *Store) {
		s.seed = ResequenceAll(seed)
	}
}

// WithDefaultCurrency sets the currency applied to inputs that omit one.
func WithDefaultCurrency(currency string) Option {
	return func(s *Store) {
		s.defaultCurrency = currency
	}
}

// WithIDGenerator replaces NewSegmentID, mostly for tests.
func WithIDGenerator(fn func(segment.TeamID, segment.LegNo) string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// Store is the ordering engine. Mutations are serialised and listeners run
// synchronously after each one, in commit order. Listeners must not mutate
// the store from inside the callback.
type Store struct {
	writeMu sync.Mutex

	mu       sync.RWMutex
	segments []segment.Segment

	seed            []segment.Segment
	defaultCurrency string
	newID           func(segment.TeamID, segment.LegNo) string

	listenersMu sync.Mutex
	listeners   map[uuid.UUID]Listener
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		defaultCurrency: segment.DefaultCurrency,
		newID:           NewSegmentID,
		listeners:       make(map[uuid.UUID]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.segments = segment.Clone(s.seed)
	return s
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	id := uuid.New()
	s.listenersMu.Lock()
	s.listeners[id] = l
	s.listenersMu.Unlock()
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Segments returns a copy of the whole collection.
func (s *Store) Segments() []segment.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return segment.Clone(s.segments)
}

// Group returns one group's segments sorted by orderIdx.
func (s *Store) Group(teamID segment.TeamID, legNo segment.LegNo) []segment.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return segment.Sorted(segment.FilterGroup(s.segments, teamID, legNo))
}

// LastInGroup returns the final segment of a group, or nil for an empty group.
func (s *Store) LastInGroup(teamID segment.TeamID, legNo segment.LegNo) *segment.Segment {
	group := s.Group(teamID, legNo)
	if len(group) == 0 {
		return nil
	}
	last := group[len(group)-1]
	return &last
}

func (s *Store) Get(id string) (segment.Segment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.segments, id); i >= 0 {
		return cloneOne(s.segments[i]), true
	}
	return segment.Segment{}, false
}

// AddSegment assigns an id and appends the input to the end of its group.
func (s *Store) AddSegment(in segment.Input) segment.Segment {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if in.Currency == "" {
		in.Currency = s.defaultCurrency
	}
	id := s.newID(in.TeamID, in.LegNo)
	for indexOf(s.segments, id) >= 0 {
		id = s.newID(in.TeamID, in.LegNo)
	}
	created := segment.Segment{
		ID:       id,
		TeamID:   in.TeamID,
		LegNo:    in.LegNo,
		Type:     in.Type,
		FromCity: in.FromCity,
		ToCity:   in.ToCity,
		DepTime:  in.DepTime,
		ArrTime:  in.ArrTime,
		Cost:     in.Cost,
		Currency: in.Currency,
		Notes:    in.Notes,
		OrderIdx: nextOrderIndex(s.segments, in.Group(), ""),
	}
	next := append(segment.Clone(s.segments), created)
	next = Resequence(next, created.TeamID, created.LegNo)
	created = cloneOne(next[len(next)-1])
	event := s.commitLocked(next, OriginUser)
	s.mu.Unlock()

	s.emit(event)
	return created
}

// UpdateSegment merges changes into the segment with id. Moving a segment to
// another group places it at the end of that group. Unknown ids are ignored.
func (s *Store) UpdateSegment(id string, changes segment.Changes) (segment.Segment, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := indexOf(s.segments, id)
	if i < 0 {
		s.mu.Unlock()
		return segment.Segment{}, false
	}
	next := segment.Clone(s.segments)
	before := next[i]
	updated := changes.Apply(before)
	if updated.Group() != before.Group() && changes.OrderIdx == nil {
		updated.OrderIdx = nextOrderIndex(next, updated.Group(), id)
	}
	next[i] = updated
	next = Resequence(next, updated.TeamID, updated.LegNo)
	if updated.Group() != before.Group() {
		next = Resequence(next, before.TeamID, before.LegNo)
	}
	updated = cloneOne(next[i])
	event := s.commitLocked(next, OriginUser)
	s.mu.Unlock()

	s.emit(event)
	return updated, true
}

// DeleteSegment removes the segment with id and returns it with the position
// it held in its group, for undo. Unknown ids are ignored.
func (s *Store) DeleteSegment(id string) (segment.Segment, int, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := indexOf(s.segments, id)
	if i < 0 {
		s.mu.Unlock()
		return segment.Segment{}, 0, false
	}
	removed := cloneOne(s.segments[i])
	next := slices.Delete(segment.Clone(s.segments), i, i+1)
	next = Resequence(next, removed.TeamID, removed.LegNo)
	event := s.commitLocked(next, OriginUser)
	s.mu.Unlock()

	s.emit(event)
	return removed, removed.OrderIdx, true
}

// InsertSegment places seg at index within its group, clamped to [0, groupSize].
// An existing segment with the same id is replaced. Other groups are untouched.
func (s *Store) InsertSegment(seg segment.Segment, index int) segment.Segment {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next := segment.Clone(s.segments)
	var previous *segment.Segment
	if i := indexOf(next, seg.ID); i >= 0 {
		prev := next[i]
		previous = &prev
		next = slices.Delete(next, i, i+1)
	}

	key := seg.Group()
	order := groupOrder(next, key)
	index = max(0, min(index, len(order)))
	order = slices.Insert(order, index, seg.ID)

	inserted := cloneOne(seg)
	next = append(next, inserted)
	assignOrder(next, order)
	if previous != nil && previous.Group() != key {
		next = Resequence(next, previous.TeamID, previous.LegNo)
	}
	inserted = cloneOne(next[len(next)-1])
	event := s.commitLocked(next, OriginUser)
	s.mu.Unlock()

	s.emit(event)
	return inserted
}

// ReorderSegments applies an explicit order to one group. Ids named in
// orderedIDs come first in the given order; ids outside the group are ignored
// and unnamed group members keep their relative order after them.
func (s *Store) ReorderSegments(teamID segment.TeamID, legNo segment.LegNo, orderedIDs []string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	key := segment.GroupKey{TeamID: teamID, LegNo: legNo}
	current := groupOrder(s.segments, key)
	if len(current) == 0 {
		s.mu.Unlock()
		return
	}
	inGroup := make(map[string]bool, len(current))
	for _, id := range current {
		inGroup[id] = true
	}

	order := make([]string, 0, len(current))
	placed := make(map[string]bool, len(current))
	for _, id := range orderedIDs {
		if inGroup[id] && !placed[id] {
			order = append(order, id)
			placed[id] = true
		}
	}
	for _, id := range current {
		if !placed[id] {
			order = append(order, id)
		}
	}

	next := segment.Clone(s.segments)
	assignOrder(next, order)
	event := s.commitLocked(next, OriginUser)
	s.mu.Unlock()

	s.emit(event)
}

// ReplaceSegments swaps the whole collection and renumbers every group.
// origin lets listeners skip re-persisting hydrated or remote state.
func (s *Store) ReplaceSegments(segments []segment.Segment, origin Origin) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	event := s.commitLocked(ResequenceAll(segments), origin)
	s.mu.Unlock()

	s.emit(event)
}

// Reset restores the seed collection.
func (s *Store) Reset() {
	s.ReplaceSegments(s.seed, OriginUser)
}

func (s *Store) commitLocked(next []segment.Segment, origin Origin) ChangeEvent {
	if next == nil {
		next = []segment.Segment{}
	}
	s.segments = next
	return ChangeEvent{Segments: segment.Clone(next), Origin: origin}
}

// emit runs with writeMu held so events arrive in commit order.
func (s *Store) emit(event ChangeEvent) {
	s.listenersMu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

func indexOf(segments []segment.Segment, id string) int {
	return slices.IndexFunc(segments, func(s segment.Segment) bool { return s.ID == id })
}

func cloneOne(s segment.Segment) segment.Segment {
	return segment.Clone([]segment.Segment{s})[0]
}
