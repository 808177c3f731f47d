package collection

import (
	"context"
	"time"
)

const (
	opUpdate = "update"
	opRemove = "remove"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Mutation is an optimistic change whose remote call may still be in flight.
type Mutation struct {
	store   *Store
	op      string
	itemID  string
	idValue interface{}
	started time.Time
	patch   PatchFunc
	pos     int // position of the item when the mutation was issued

	// guarded by store.mu
	applied    Item // value reached by this update in the latest replay
	settled    bool
	superseded bool
	remoteItem Item
	remoteErr  error

	done   chan struct{}
	result Item
	err    error
}

func (m *Mutation) ItemID() string { return m.itemID }

// Op returns "update" or "remove".
func (m *Mutation) Op() string { return m.op }

// Done is closed once the remote call settled and the store was committed or rolled back.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Wait blocks until the mutation settles. It returns the final item (nil for removals),
// or a *RemoteError carrying the remote failure.
func (m *Mutation) Wait() (Item, error) {
	<-m.done
	return m.result.Clone(), m.err
}

func (m *Mutation) run(ctx context.Context, remote RemoteCall) {
	if ctx == nil {
		ctx = context.Background()
	}
	var item Item
	var err error
	if remote != nil {
		item, err = remote(ctx)
	}
	m.store.settle(m, item, err)
}

// apply runs the patch over a copy of value. The id always stays the one of the item.
func (m *Mutation) apply(value Item) Item {
	patched := value.Clone()
	if m.patch != nil {
		if p := m.patch(patched); p != nil {
			patched = p
		}
	}
	patched[IDField] = m.idValue
	return patched
}

// fold returns value after this mutation: unchanged if it failed, nil after a removal,
// the reconciled item if any, the patched value otherwise.
func (m *Mutation) fold(value Item) Item {
	switch {
	case m.settled && m.remoteErr != nil:
		return value
	case m.op == opRemove:
		return nil
	case m.remoteItem != nil:
		value = m.remoteItem
	case value != nil:
		value = m.apply(value)
	}
	m.applied = value
	return value
}
