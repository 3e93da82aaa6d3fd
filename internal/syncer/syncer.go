// Package syncer keeps the local mirror in step with the hosted backend.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"safemaint-backend/config"
	"safemaint-backend/internal/model"
	"safemaint-backend/internal/remote"
	"safemaint-backend/internal/store"
)

// ChangeSource delivers table-change notifications from other nodes.
type ChangeSource interface {
	Subscribe(ctx context.Context) (<-chan model.TableKey, error)
}

// Report summarizes one sync pass.
type Report struct {
	Rows   map[model.TableKey]int `json:"rows"`
	Failed []model.TableKey       `json:"failed,omitempty"`
	At     time.Time              `json:"at"`
}

// Service pulls every table from the backend into the mirror.
type Service struct {
	cfg    config.SyncConfig
	tables []store.Refresher
	client remote.Client
	feed   ChangeSource
	logger *zap.Logger

	// one pass at a time; the last full pass wins
	mu     sync.Mutex
	synced bool
}

// NewService creates a sync driver. feed may be nil, in which case only the
// timer triggers resyncs.
func NewService(cfg config.SyncConfig, tables []store.Refresher, client remote.Client, feed ChangeSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:    cfg,
		tables: tables,
		client: client,
		feed:   feed,
		logger: logger.Named("syncer"),
	}
}

// Run performs an initial sync unless a pass already completed, then
// resyncs whenever another node reports a change and on every interval tick.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("sync is disabled, not starting")
		return
	}
	s.logger.Info("starting sync service", zap.Duration("interval", s.cfg.Interval))

	var changes <-chan model.TableKey
	if s.feed != nil {
		ch, err := s.feed.Subscribe(ctx)
		if err != nil {
			s.logger.Warn("change feed unavailable, falling back to interval sync", zap.Error(err))
		} else {
			changes = ch
		}
	}

	if !s.hasSynced() {
		s.trySync(ctx)
	}

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service shutting down")
			return
		case table, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.logger.Debug("change notification", zap.String("table", string(table)))
			drain(changes)
			s.trySync(ctx)
		case <-timer.C:
			s.trySync(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) trySync(ctx context.Context) {
	if _, err := s.SyncOnce(ctx); err != nil {
		s.logger.Info("sync skipped", zap.Error(err))
	}
}

func (s *Service) hasSynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// drain discards queued notifications so a burst results in a single pass.
func drain(ch <-chan model.TableKey) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// SyncOnce refreshes every table in parallel. A failing table is logged and
// reported; it does not stop the others. While offline it probes the
// backend first and returns remote.ErrOffline if it is still unreachable.
func (s *Service) SyncOnce(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.client.Online() {
		if err := s.client.Ping(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", remote.ErrOffline, err)
		}
	}

	start := time.Now()
	report := &Report{Rows: make(map[model.TableKey]int, len(s.tables)), At: start.UTC()}
	var mu sync.Mutex

	var g errgroup.Group
	for _, t := range s.tables {
		g.Go(func() error {
			n, err := t.Refresh(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("table sync failed", zap.String("table", string(t.Table())), zap.Error(err))
				report.Failed = append(report.Failed, t.Table())
				return nil
			}
			report.Rows[t.Table()] = n
			return nil
		})
	}
	_ = g.Wait()
	s.synced = true

	s.logger.Info("sync pass finished",
		zap.Int("tables", len(report.Rows)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("took", time.Since(start)))
	return report, nil
}
