package transport

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/collection"
)

var (
	// errors
	ErrUnknownResource = errors.New("unknown resource")
)

// Service runs the management screens' operations: one optimistic collection per resource,
// all backed by the same remote client.
type Service struct {
	resources   map[string]*collection.Resource
	coordinator *collection.Coordinator
	log         core.Logger
}

func NewService(client collection.Client, coordinator *collection.Coordinator, logger core.Logger, opts ...collection.Option) *Service {
	if coordinator == nil {
		coordinator = collection.NewCoordinator()
	}
	svc := &Service{
		resources:   make(map[string]*collection.Resource, len(AllResources)),
		coordinator: coordinator,
		log:         logger,
	}
	for _, name := range AllResources {
		svc.resources[name] = collection.NewResource(name, client, coordinator, opts...)
	}
	return svc
}

func (svc *Service) Resource(name string) (*collection.Resource, error) {
	if err := validateResource(name); err != nil {
		return nil, err
	}
	return svc.resources[name], nil
}

func (svc *Service) Refresh(ctx context.Context, name string) ([]collection.Item, error) {
	res, err := svc.Resource(name)
	if err != nil {
		return nil, err
	}
	return res.Refresh(ctx)
}

// RefreshAll loads every collection concurrently.
func (svc *Service) RefreshAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, res := range svc.resources {
		res := res
		g.Go(func() error {
			_, err := res.Refresh(ctx)
			return err
		})
	}
	return g.Wait()
}

// Create validates payload, then creates the item remotely. New items get the resource's default status.
func (svc *Service) Create(ctx context.Context, name string, payload collection.Item) (collection.Item, error) {
	res, err := svc.Resource(name)
	if err != nil {
		return nil, err
	}
	payload = payload.Clone()
	if payload == nil {
		payload = make(collection.Item)
	}
	if _, ok := payload[StatusField]; !ok {
		payload[StatusField] = DefaultStatus(name)
	}
	if err := validatePayload(name, payload); err != nil {
		return nil, err
	}
	delete(payload, collection.IDField)
	return res.Create(ctx, payload)
}

func (svc *Service) Update(ctx context.Context, name, id string, payload collection.Item) (collection.Item, error) {
	res, err := svc.Resource(name)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(name, payload); err != nil {
		return nil, err
	}
	item, err := res.Update(ctx, id, payload)
	svc.logFailure(err, "update", name, id)
	return item, err
}

func (svc *Service) SetStatus(ctx context.Context, name, id, status string) (collection.Item, error) {
	res, err := svc.Resource(name)
	if err != nil {
		return nil, err
	}
	if err := validateStatus(name, status); err != nil {
		return nil, err
	}
	item, err := res.Patch(ctx, id, collection.Item{StatusField: status})
	svc.logFailure(err, "set status", name, id)
	return item, err
}

// Assign sets a reference field, e.g. the driver of a bus. A nil value unassigns.
func (svc *Service) Assign(ctx context.Context, name, id, field string, value interface{}) (collection.Item, error) {
	res, err := svc.Resource(name)
	if err != nil {
		return nil, err
	}
	if err := validateAssignment(name, field); err != nil {
		return nil, err
	}
	item, err := res.Patch(ctx, id, collection.Item{field: value})
	svc.logFailure(err, "assign "+field, name, id)
	return item, err
}

func (svc *Service) Delete(ctx context.Context, name, id string) error {
	res, err := svc.Resource(name)
	if err != nil {
		return err
	}
	err = res.Delete(ctx, id)
	svc.logFailure(err, "delete", name, id)
	return err
}

// BulkSetStatus sets status on every id. Only validation errors are returned: per-item
// failures are reported in the summary.
func (svc *Service) BulkSetStatus(ctx context.Context, name string, ids []string, status string, opts ...collection.RunOption) (collection.Summary, error) {
	res, err := svc.Resource(name)
	if err != nil {
		return collection.Summary{}, err
	}
	if err := validateStatus(name, status); err != nil {
		return collection.Summary{}, err
	}
	opts = append([]collection.RunOption{collection.WithLabel("set " + name + " status to " + status)}, opts...)
	summary := res.BulkPatch(ctx, ids, collection.Item{StatusField: status}, opts...)
	svc.logSummary(summary)
	return summary, nil
}

func (svc *Service) BulkDelete(ctx context.Context, name string, ids []string, opts ...collection.RunOption) (collection.Summary, error) {
	res, err := svc.Resource(name)
	if err != nil {
		return collection.Summary{}, err
	}
	summary := res.BulkDelete(ctx, ids, opts...)
	svc.logSummary(summary)
	return summary, nil
}

// Snapshot returns the current items of a collection matching filter.
func (svc *Service) Snapshot(name string, filter Filter) ([]collection.Item, error) {
	res, err := svc.Resource(name)
	if err != nil {
		return nil, err
	}
	return filter.Apply(res.Store.Snapshot()), nil
}

func (svc *Service) Subscribe(name string, fn func([]collection.Item)) (unsubscribe func(), err error) {
	res, err := svc.Resource(name)
	if err != nil {
		return nil, err
	}
	return res.Store.Subscribe(fn), nil
}

func (svc *Service) logFailure(err error, op, name, id string) {
	if err == nil || !collection.IsRemoteFailure(err) {
		return
	}
	svc.log.Warn(op+" rolled back", err, map[string]interface{}{"resource": name, "id": id})
}

func (svc *Service) logSummary(s collection.Summary) {
	extras := map[string]interface{}{
		"total":   s.Total,
		"success": s.Success,
		"failure": s.Failure,
		"failed":  s.Failed,
	}
	if s.Failure > 0 {
		svc.log.Warn(s.Label, s.Err(), extras)
		return
	}
	svc.log.Info(s.Label, extras)
}
