package collection

import (
	"context"

	"github.com/pkg/errors"
)

// Client is the contract of the remote REST API serving the collections.
// Failures are returned as errors; authentication concerns belong to the implementation.
type Client interface {
	List(ctx context.Context, resource string) ([]Item, error)
	Create(ctx context.Context, resource string, payload Item) (Item, error)
	Update(ctx context.Context, resource, id string, payload Item) (Item, error)
	Patch(ctx context.Context, resource, id string, fields Item) (Item, error)
	Delete(ctx context.Context, resource, id string) error
}

// Resource binds a Store to the remote collection it mirrors.
type Resource struct {
	Name        string
	Store       *Store
	Client      Client
	Coordinator *Coordinator
}

func NewResource(name string, client Client, coordinator *Coordinator, opts ...Option) *Resource {
	if coordinator == nil {
		coordinator = NewCoordinator()
	}
	return &Resource{
		Name:        name,
		Store:       NewStore(name, opts...),
		Client:      client,
		Coordinator: coordinator,
	}
}

// Refresh fetches the whole collection and loads it into the store.
func (r *Resource) Refresh(ctx context.Context) ([]Item, error) {
	items, err := r.Client.List(ctx, r.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", r.Name)
	}
	if err := r.Store.Load(items); err != nil {
		return nil, err
	}
	return r.Store.Snapshot(), nil
}

// Create is not optimistic: the item has no id until the remote system assigns one.
func (r *Resource) Create(ctx context.Context, payload Item) (Item, error) {
	item, err := r.Client.Create(ctx, r.Name, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", r.Name)
	}
	if err := r.Store.Upsert(item); err != nil {
		return nil, errors.Wrapf(err, "storing created %s", r.Name)
	}
	return item.Clone(), nil
}

// Update replaces the item with payload optimistically.
func (r *Resource) Update(ctx context.Context, id string, payload Item) (Item, error) {
	return r.Store.Mutate(ctx, id,
		func(Item) Item { return payload.Clone() },
		func(ctx context.Context) (Item, error) {
			return r.Client.Update(ctx, r.Name, id, payload)
		},
	)
}

// Patch merges fields into the item optimistically.
func (r *Resource) Patch(ctx context.Context, id string, fields Item) (Item, error) {
	return r.Store.Mutate(ctx, id,
		func(it Item) Item { return it.Merge(fields) },
		func(ctx context.Context) (Item, error) {
			return r.Client.Patch(ctx, r.Name, id, fields)
		},
	)
}

func (r *Resource) Delete(ctx context.Context, id string) error {
	return r.Store.Remove(ctx, id, func(ctx context.Context) error {
		return r.Client.Delete(ctx, r.Name, id)
	})
}

// BulkPatch applies the same fields to every id.
func (r *Resource) BulkPatch(ctx context.Context, ids []string, fields Item, opts ...RunOption) Summary {
	opts = append([]RunOption{WithLabel("patch " + r.Name)}, opts...)
	return r.Coordinator.Run(ctx, ids, func(ctx context.Context, id string) error {
		_, err := r.Patch(ctx, id, fields)
		return err
	}, opts...)
}

func (r *Resource) BulkDelete(ctx context.Context, ids []string, opts ...RunOption) Summary {
	opts = append([]RunOption{WithLabel("delete " + r.Name)}, opts...)
	return r.Coordinator.Run(ctx, ids, r.Delete, opts...)
}
