package remote

import (
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"safemaint-backend/internal/model"
)

// OpKind is the kind of remote write.
type OpKind int

const (
	OpUpsert OpKind = iota
	OpDelete
)

// Op is one remote write queued behind an optimistic local write.
type Op struct {
	Kind      OpKind
	Table     model.TableKey
	Record    any
	Omit      []string
	KeyColumn string
	ID        string
}

// Dispatcher accepts remote writes.
type Dispatcher interface {
	Dispatch(op Op) bool
}

// key identifies the record an op writes. Ops with the same key run in
// dispatch order.
func (op Op) key() string {
	id := op.ID
	if id == "" {
		if r, ok := op.Record.(model.Record); ok {
			id = r.RecordID()
		}
	}
	return string(op.Table) + "/" + id
}

func execute(ctx context.Context, client Client, op Op) error {
	switch op.Kind {
	case OpDelete:
		return client.Delete(ctx, op.Table, op.KeyColumn, op.ID, op.Record)
	default:
		return client.Upsert(ctx, op.Table, op.Record, op.Omit...)
	}
}

// Writer manages a pool of workers pushing writes to the backend. Each
// record is pinned to one worker queue, so writes to the same row reach the
// backend in order. There is no retry: a failed write is reconciled by the
// next full sync.
type Writer struct {
	queues  []chan Op
	client  Client
	logger  *zap.Logger
	pending sync.WaitGroup
}

// NewWriter creates a writer with size workers sharing queueSize slots.
func NewWriter(size, queueSize int, client Client, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size < 1 {
		size = 1
	}
	perWorker := queueSize / size
	if perWorker < 1 {
		perWorker = 1
	}
	queues := make([]chan Op, size)
	for i := range queues {
		queues[i] = make(chan Op, perWorker)
	}
	return &Writer{
		queues: queues,
		client: client,
		logger: logger.Named("writer"),
	}
}

// Start launches one goroutine per worker queue.
func (w *Writer) Start(ctx context.Context) {
	for i := range w.queues {
		go w.worker(ctx, i)
	}
}

func (w *Writer) worker(ctx context.Context, id int) {
	w.logger.Debug("worker started", zap.Int("worker", id))
	jobs := w.queues[id]
	for {
		select {
		case op := <-jobs:
			w.run(ctx, op)
		case <-ctx.Done():
			w.logger.Debug("worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

func (w *Writer) run(ctx context.Context, op Op) {
	defer w.pending.Done()
	if err := execute(ctx, w.client, op); err != nil {
		if errors.Is(err, ErrOffline) {
			w.logger.Info("remote write skipped: offline", zap.String("table", string(op.Table)))
			return
		}
		w.logger.Error("remote write failed", zap.String("table", string(op.Table)), zap.Error(err))
	}
}

// Dispatch queues op without blocking. It returns false when the write was
// skipped because the backend is offline or the queue is full.
func (w *Writer) Dispatch(op Op) bool {
	if !w.client.Online() {
		w.logger.Debug("remote write skipped: offline", zap.String("table", string(op.Table)))
		return false
	}
	w.pending.Add(1)
	select {
	case w.queue(op) <- op:
		return true
	default:
		w.pending.Done()
		w.logger.Warn("remote write dropped: queue full", zap.String("table", string(op.Table)))
		return false
	}
}

func (w *Writer) queue(op Op) chan Op {
	return w.queues[xxhash.Sum64String(op.key())%uint64(len(w.queues))]
}

// Drain waits until every queued write has run or ctx is done.
func (w *Writer) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inline runs each write synchronously on the caller's goroutine.
type Inline struct {
	Client Client
	Logger *zap.Logger
}

// Dispatch executes op immediately.
func (d Inline) Dispatch(op Op) bool {
	if !d.Client.Online() {
		return false
	}
	if err := execute(context.Background(), d.Client, op); err != nil {
		if d.Logger != nil {
			d.Logger.Warn("remote write failed", zap.String("table", string(op.Table)), zap.Error(err))
		}
		return false
	}
	return true
}
