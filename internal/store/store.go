// Package store exposes one repository per backend table. A repository
// writes the local mirror first, announces the change, and queues the same
// write for the hosted backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"safemaint-backend/internal/events"
	"safemaint-backend/internal/mirror"
	"safemaint-backend/internal/model"
	"safemaint-backend/internal/remote"
)

var (
	// ErrNotFound is returned when a record is not in the local mirror.
	ErrNotFound = errors.New("record not found")
	// ErrNoBlob is returned when a record has no blob in the requested column.
	ErrNoBlob = errors.New("record has no such file")
)

// Deps are the collaborators shared by every repository.
type Deps struct {
	Mirror *mirror.Store
	Remote remote.Client
	Writer remote.Dispatcher
	Bus    *events.Bus
	Logger *zap.Logger
}

// Options describe one table.
type Options struct {
	Table model.TableKey
	// KeyColumn is the remote primary key column. Defaults to "id".
	KeyColumn string
	// OrderBy sorts remote rows newest-first.
	OrderBy string
	// PreserveOnEmptyRemote keeps the local list when the backend returns
	// no rows.
	PreserveOnEmptyRemote bool
}

// Repository is the typed access path to one table.
type Repository[T model.Record] struct {
	opts   Options
	deps   Deps
	logger *zap.Logger
}

// NewRepository creates a repository for one table.
func NewRepository[T model.Record](opts Options, deps Deps) *Repository[T] {
	if opts.KeyColumn == "" {
		opts.KeyColumn = "id"
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Repository[T]{
		opts:   opts,
		deps:   deps,
		logger: deps.Logger.Named("store").With(zap.String("table", string(opts.Table))),
	}
}

// Table returns the table key.
func (r *Repository[T]) Table() model.TableKey {
	return r.opts.Table
}

// List returns the mirrored rows, newest first.
func (r *Repository[T]) List() []T {
	return mirror.Read[T](r.deps.Mirror, r.opts.Table)
}

// Filter returns the mirrored rows matching keep.
func (r *Repository[T]) Filter(keep func(T) bool) []T {
	var out []T
	for _, item := range r.List() {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Get returns the mirrored row with the given id.
func (r *Repository[T]) Get(id string) (T, error) {
	item, ok := mirror.Get[T](r.deps.Mirror, r.opts.Table, id)
	if !ok {
		return item, fmt.Errorf("%s %s: %w", r.opts.Table, id, ErrNotFound)
	}
	return item, nil
}

// Save queues the remote upsert, writes item to the mirror and broadcasts
// the change. Local storage failures are logged, not returned: the UI stays
// optimistic. When the backend cannot take the write, file payloads stay
// inline in the mirror until a later sync pushes them.
func (r *Repository[T]) Save(ctx context.Context, item T) error {
	if item.RecordID() == "" {
		return fmt.Errorf("%s: record id is required", r.opts.Table)
	}

	record := item
	accepted := r.dispatch(remote.Op{
		Kind:   remote.OpUpsert,
		Table:  r.opts.Table,
		Record: &record,
		Omit:   elidedColumns(&record),
		ID:     item.RecordID(),
	})
	setPending(&item, !accepted)

	if _, err := mirror.Upsert(r.deps.Mirror, r.opts.Table, item); err != nil {
		r.logger.Warn("local write degraded", zap.String("id", item.RecordID()), zap.Error(err))
		return nil
	}
	r.publish(events.OpUpsert, item.RecordID())
	return nil
}

// Delete removes the row locally and queues the remote delete. It reports
// whether the row was present in the mirror.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	_, found, err := mirror.Remove[T](r.deps.Mirror, r.opts.Table, id)
	if err != nil {
		r.logger.Warn("local delete degraded", zap.String("id", id), zap.Error(err))
	} else if found {
		r.publish(events.OpDelete, id)
	}

	var zero T
	r.dispatch(remote.Op{
		Kind:      remote.OpDelete,
		Table:     r.opts.Table,
		Record:    &zero,
		KeyColumn: r.opts.KeyColumn,
		ID:        id,
	})
	return found, nil
}

// Refresh replaces the mirror with the backend's rows and returns how many
// rows were stored.
func (r *Repository[T]) Refresh(ctx context.Context) (int, error) {
	if r.deps.Remote == nil {
		return 0, remote.ErrOffline
	}
	var items []T
	if err := r.deps.Remote.FetchAll(ctx, r.opts.Table, &items, r.opts.OrderBy); err != nil {
		return 0, err
	}

	if len(items) == 0 && r.opts.PreserveOnEmptyRemote {
		if local := r.List(); len(local) > 0 {
			r.logger.Info("remote table empty, keeping local rows", zap.Int("local", len(local)))
			return len(local), nil
		}
	}

	items = r.pushPending(items)

	if err := mirror.Write(r.deps.Mirror, r.opts.Table, items); err != nil {
		r.logger.Warn("sync write degraded", zap.Int("rows", len(items)), zap.Error(err))
		return len(items), nil
	}
	r.publish(events.OpSync, "")
	return len(items), nil
}

// pushPending re-queues local rows whose payloads never reached the backend
// and lays them over the fetched rows. A row stays pending until the writer
// accepts it.
func (r *Repository[T]) pushPending(items []T) []T {
	for _, local := range r.Filter(func(item T) bool { return hasPending(&item) }) {
		record := local
		setPending(&record, false)
		if r.dispatch(remote.Op{
			Kind:   remote.OpUpsert,
			Table:  r.opts.Table,
			Record: &record,
			Omit:   elidedColumns(&record),
			ID:     local.RecordID(),
		}) {
			r.logger.Info("pending file pushed", zap.String("id", local.RecordID()))
			local = record
		}
		items = replaceOrPrepend(items, local)
	}
	return items
}

// Blob returns the payload stored in column for the row id, fetching it
// from the backend when the mirror only holds an elided reference.
func (r *Repository[T]) Blob(ctx context.Context, id, column string) (string, error) {
	item, err := r.Get(id)
	if err != nil {
		return "", err
	}
	carrier, ok := any(&item).(model.BlobCarrier)
	if !ok {
		return "", ErrNoBlob
	}
	blob, ok := carrier.Blobs()[column]
	if !ok || blob.Empty() {
		return "", ErrNoBlob
	}
	if !blob.Elided {
		return blob.Data, nil
	}
	if r.deps.Remote == nil {
		return "", remote.ErrOffline
	}
	data, err := r.deps.Remote.FetchBlob(ctx, r.opts.Table, id, column)
	if errors.Is(err, remote.ErrNotFound) {
		return "", ErrNoBlob
	}
	return data, err
}

func (r *Repository[T]) publish(op events.Op, id string) {
	if r.deps.Bus == nil {
		return
	}
	r.deps.Bus.Publish(events.Event{Table: r.opts.Table, Op: op, ID: id})
}

func (r *Repository[T]) dispatch(op remote.Op) bool {
	if r.deps.Writer == nil {
		return false
	}
	return r.deps.Writer.Dispatch(op)
}

func replaceOrPrepend[T model.Record](items []T, item T) []T {
	for i := range items {
		if items[i].RecordID() == item.RecordID() {
			items[i] = item
			return items
		}
	}
	return append([]T{item}, items...)
}

// setPending marks every inline payload of record as not yet on the
// backend, or clears the mark.
func setPending(record any, pending bool) {
	carrier, ok := record.(model.BlobCarrier)
	if !ok {
		return
	}
	for _, b := range carrier.Blobs() {
		b.Pending = pending && b.Data != ""
	}
}

func hasPending(record any) bool {
	carrier, ok := record.(model.BlobCarrier)
	if !ok {
		return false
	}
	for _, b := range carrier.Blobs() {
		if b.Pending {
			return true
		}
	}
	return false
}

func elidedColumns(record any) []string {
	carrier, ok := record.(model.BlobCarrier)
	if !ok {
		return nil
	}
	var cols []string
	for col, b := range carrier.Blobs() {
		if b.Elided {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols
}
