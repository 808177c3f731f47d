package collection

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type (
	// PatchFunc computes the optimistic value of an item. It receives a copy it may modify.
	// It is called again when an older mutation of the same item fails, so it must only
	// depend on the item it is given.
	PatchFunc func(Item) Item

	// RemoteCall performs the remote side of a mutation. A nil Item keeps the optimistic value.
	RemoteCall func(ctx context.Context) (Item, error)

	// RemoveCall performs the remote side of a removal.
	RemoveCall func(ctx context.Context) error

	Option func(*Store)

	// itemLog tracks the mutations of one item that are not folded into base yet.
	itemLog struct {
		base    Item        // value before the first tracked mutation, nil once removed
		entries []*Mutation // issuance order
	}
)

// WithMetrics makes the store report settled mutations to m.
func WithMetrics(m Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Store holds the in-memory snapshot of one collection and applies optimistic mutations to it.
//
// The visible value of an item is its base replayed through its mutations in issuance order:
// failed mutations are skipped, reconciled ones reset the value to the remote item, the
// others apply their patch and removals drop the item. Every settlement replays the log, so
// a failed mutation is undone even when newer ones were patched on top of it, and an older
// settlement never overwrites a newer reconciliation. Settled mutations at the head of the
// log are folded into the base.
type Store struct {
	name    string
	metrics Metrics
	nowFunc func() time.Time

	mu      sync.RWMutex
	items   []Item
	index   map[string]int
	pending map[string]*itemLog

	notifyMu     sync.Mutex // guards listeners
	deliverMu    sync.Mutex // serializes deliveries
	listeners    map[int]func([]Item)
	nextListener int
}

func NewStore(name string, opts ...Option) *Store {
	s := &Store{
		name:      name,
		metrics:   noopMetrics{},
		nowFunc:   time.Now,
		index:     make(map[string]int),
		pending:   make(map[string]*itemLog),
		listeners: make(map[int]func([]Item)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Name() string { return s.name }

// Load replaces the whole collection. Mutations still in flight are superseded: their
// settlement no longer modifies the loaded state.
func (s *Store) Load(items []Item) error {
	loaded := make([]Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		id := it.ID()
		if id == "" {
			return ErrMissingID
		}
		if _, dup := index[id]; dup {
			return errors.Wrapf(ErrDuplicateID, "loading %s: %s", s.name, id)
		}
		index[id] = len(loaded)
		loaded = append(loaded, it.Clone())
	}

	s.mu.Lock()
	for _, lg := range s.pending {
		lg.supersede()
	}
	s.items = loaded
	s.index = index
	s.pending = make(map[string]*itemLog)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Upsert inserts or replaces an item confirmed by the remote system (e.g. after a create).
// Pending mutations on that item are superseded.
func (s *Store) Upsert(item Item) error {
	id := item.ID()
	if id == "" {
		return ErrMissingID
	}

	s.mu.Lock()
	if idx, ok := s.index[id]; ok {
		s.items[idx] = item.Clone()
	} else {
		s.index[id] = len(s.items)
		s.items = append(s.items, item.Clone())
	}
	if lg, ok := s.pending[id]; ok {
		lg.supersede()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Snapshot returns a copy of the current state. It never blocks on remote calls.
func (s *Store) Snapshot() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

func (s *Store) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx, ok := s.index[id]; ok {
		return s.items[idx].Clone(), true
	}
	return nil, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Pending returns the number of unsettled mutations tracked for id.
func (s *Store) Pending(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if lg, ok := s.pending[id]; ok {
		for _, m := range lg.entries {
			if !m.settled {
				n++
			}
		}
	}
	return n
}

// Subscribe registers fn to receive the latest snapshot after every state change.
// Deliveries are serialized. fn may subscribe or unsubscribe but must not mutate the store.
func (s *Store) Subscribe(fn func([]Item)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	key := s.nextListener
	s.nextListener++
	s.listeners[key] = fn
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, key)
	}
}

func (s *Store) notify() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.notifyMu.Lock()
	listeners := make([]func([]Item), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.notifyMu.Unlock()

	if len(listeners) == 0 {
		return
	}
	snapshot := s.Snapshot()
	for _, fn := range listeners {
		fn(cloneItems(snapshot))
	}
}

// logOf returns the log of id, starting one from the current value when needed.
// Must be called with s.mu held.
func (s *Store) logOf(id string, current Item) *itemLog {
	lg, ok := s.pending[id]
	if !ok {
		lg = &itemLog{base: current.Clone()}
		s.pending[id] = lg
	}
	return lg
}

// Go applies patch to the item optimistically, before returning, then runs remote on its own
// goroutine. ErrNotFound is returned right away if id is not in the collection.
func (s *Store) Go(ctx context.Context, id string, patch PatchFunc, remote RemoteCall) (*Mutation, error) {
	s.mu.Lock()
	idx, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	current := s.items[idx]
	lg := s.logOf(id, current)

	m := s.newMutation(opUpdate, id, current, idx)
	m.patch = patch
	m.applied = m.apply(current)
	s.items[idx] = m.applied.Clone()
	lg.entries = append(lg.entries, m)
	s.mu.Unlock()

	s.notify()
	go m.run(ctx, remote)
	return m, nil
}

// Mutate is the blocking form of Go: it returns the final item, or a *RemoteError once the
// item has been rolled back.
func (s *Store) Mutate(ctx context.Context, id string, patch PatchFunc, remote RemoteCall) (Item, error) {
	m, err := s.Go(ctx, id, patch, remote)
	if err != nil {
		return nil, err
	}
	return m.Wait()
}

// GoRemove removes the item optimistically, then runs remote on its own goroutine.
// A failed removal reinserts the item at its original position.
func (s *Store) GoRemove(ctx context.Context, id string, remote RemoveCall) (*Mutation, error) {
	s.mu.Lock()
	idx, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	lg := s.logOf(id, s.items[idx])
	m := s.newMutation(opRemove, id, s.items[idx], idx)
	s.removeAt(idx)
	lg.entries = append(lg.entries, m)
	s.mu.Unlock()

	s.notify()
	var call RemoteCall
	if remote != nil {
		call = func(ctx context.Context) (Item, error) { return nil, remote(ctx) }
	}
	go m.run(ctx, call)
	return m, nil
}

// Remove is the blocking form of GoRemove.
func (s *Store) Remove(ctx context.Context, id string, remote RemoveCall) error {
	m, err := s.GoRemove(ctx, id, remote)
	if err != nil {
		return err
	}
	_, err = m.Wait()
	return err
}

func (s *Store) newMutation(op, id string, current Item, pos int) *Mutation {
	return &Mutation{
		store:   s,
		op:      op,
		itemID:  id,
		idValue: current[IDField],
		pos:     pos,
		started: s.nowFunc(),
		done:    make(chan struct{}),
	}
}

func (s *Store) settle(m *Mutation, item Item, err error) {
	s.mu.Lock()
	m.settled = true
	m.remoteErr = err
	if err == nil && item != nil && m.op == opUpdate {
		item = item.Clone()
		if item.ID() == "" {
			item[IDField] = m.idValue
		}
		m.remoteItem = item
	}

	var changed bool
	if lg, ok := s.pending[m.itemID]; ok && !m.superseded {
		changed = s.sync(m.itemID, lg)
		lg.compact()
		if len(lg.entries) == 0 {
			delete(s.pending, m.itemID)
		}
	}

	switch {
	case err != nil:
		m.err = &RemoteError{Collection: s.name, Op: m.op, ID: m.itemID, Err: err}
	case m.op == opUpdate:
		m.result = m.applied.Clone()
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	s.metrics.ObserveMutation(s.name, m.op, outcome, s.nowFunc().Sub(m.started))
	close(m.done)
}

// sync replays the log of id and makes the collection show the result.
// Must be called with s.mu held.
func (s *Store) sync(id string, lg *itemLog) (changed bool) {
	value := lg.replay()
	idx, present := s.index[id]
	switch {
	case value == nil && present:
		s.removeAt(idx)
		return true
	case value == nil:
		return false
	case present:
		if reflect.DeepEqual(s.items[idx], value) {
			return false
		}
		s.items[idx] = value.Clone()
		return true
	default:
		s.insertAt(lg.removedAt(), value.Clone())
		return true
	}
}

// replay folds the mutations over base and returns the resulting value, nil if removed.
// The value reached by each live update is recorded as its applied value.
func (lg *itemLog) replay() Item {
	value := lg.base
	for _, m := range lg.entries {
		value = m.fold(value)
	}
	return value
}

// compact folds the settled mutations at the head of the log into base.
func (lg *itemLog) compact() {
	n := 0
	for n < len(lg.entries) && lg.entries[n].settled {
		lg.base = lg.entries[n].fold(lg.base)
		n++
	}
	lg.entries = lg.entries[n:]
}

// removedAt returns the position recorded by the latest removal, for reinsertion.
func (lg *itemLog) removedAt() int {
	for i := len(lg.entries) - 1; i >= 0; i-- {
		if lg.entries[i].op == opRemove {
			return lg.entries[i].pos
		}
	}
	return 0
}

func (lg *itemLog) supersede() {
	for _, m := range lg.entries {
		m.superseded = true
	}
}

func (s *Store) removeAt(idx int) {
	delete(s.index, s.items[idx].ID())
	copy(s.items[idx:], s.items[idx+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	s.reindex(idx)
}

func (s *Store) insertAt(pos int, item Item) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.items) {
		pos = len(s.items)
	}
	s.items = append(s.items, nil)
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = item
	s.reindex(pos)
}

func (s *Store) reindex(from int) {
	for i := from; i < len(s.items); i++ {
		s.index[s.items[i].ID()] = i
	}
}
