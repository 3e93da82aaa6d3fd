// Package remote talks to the hosted Postgres backend. Every call is
// best-effort: the local mirror has already been written when it runs.
package remote

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"regexp"
	"sync/atomic"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"safemaint-backend/internal/model"
)

var (
	// ErrOffline is returned when a call is skipped because the backend
	// is unreachable.
	ErrOffline = errors.New("remote: backend offline")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("remote: record not found")
)

var columnRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Client is the CRUD surface of the hosted backend. Tables are read and
// written wholesale; there is no partial-field patch.
type Client interface {
	Upsert(ctx context.Context, table model.TableKey, record any, omit ...string) error
	Delete(ctx context.Context, table model.TableKey, keyColumn, id string, record any) error
	FetchAll(ctx context.Context, table model.TableKey, dest any, orderBy string) error
	FetchBlob(ctx context.Context, table model.TableKey, id, column string) (string, error)
	Online() bool
	Ping(ctx context.Context) error
}

// Publisher announces a table change to other edge nodes.
type Publisher interface {
	Publish(ctx context.Context, table model.TableKey) error
}

// GormClient implements Client over gorm.
type GormClient struct {
	db     *gorm.DB
	feed   Publisher
	online atomic.Bool
	logger *zap.Logger
}

// NewGormClient creates a client. feed may be nil.
func NewGormClient(db *gorm.DB, feed Publisher, logger *zap.Logger) *GormClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &GormClient{db: db, feed: feed, logger: logger.Named("remote")}
	c.online.Store(true)
	return c
}

// Online reports whether the last remote call reached the backend.
func (c *GormClient) Online() bool {
	return c.online.Load()
}

// Ping probes the backend and updates the online flag.
func (c *GormClient) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.PingContext(ctx)
	c.setOnline(err == nil)
	return err
}

// Upsert inserts record or overwrites the row with the same primary key.
// Columns in omit are neither inserted nor updated.
func (c *GormClient) Upsert(ctx context.Context, table model.TableKey, record any, omit ...string) error {
	if !c.Online() {
		return ErrOffline
	}
	q := c.db.WithContext(ctx).Table(string(table))
	if len(omit) > 0 {
		q = q.Omit(omit...)
	}
	if err := q.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
		return c.fail(fmt.Errorf("upsert into %s: %w", table, err))
	}
	c.publish(ctx, table)
	return nil
}

// Delete removes the row whose keyColumn equals id.
func (c *GormClient) Delete(ctx context.Context, table model.TableKey, keyColumn, id string, record any) error {
	if !c.Online() {
		return ErrOffline
	}
	if !columnRe.MatchString(keyColumn) {
		return fmt.Errorf("invalid key column %q", keyColumn)
	}
	err := c.db.WithContext(ctx).
		Table(string(table)).
		Where(keyColumn+" = ?", id).
		Delete(record).Error
	if err != nil {
		return c.fail(fmt.Errorf("delete from %s: %w", table, err))
	}
	c.publish(ctx, table)
	return nil
}

// FetchAll loads every row of table into dest, a pointer to a slice.
func (c *GormClient) FetchAll(ctx context.Context, table model.TableKey, dest any, orderBy string) error {
	q := c.db.WithContext(ctx).Table(string(table))
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	if err := q.Find(dest).Error; err != nil {
		return c.fail(fmt.Errorf("fetch %s: %w", table, err))
	}
	c.setOnline(true)
	return nil
}

// FetchBlob reads a single payload column of one row.
func (c *GormClient) FetchBlob(ctx context.Context, table model.TableKey, id, column string) (string, error) {
	if !columnRe.MatchString(column) {
		return "", fmt.Errorf("invalid blob column %q", column)
	}
	var values []string
	err := c.db.WithContext(ctx).
		Table(string(table)).
		Where("id = ?", id).
		Limit(1).
		Pluck(column, &values).Error
	if err != nil {
		return "", c.fail(fmt.Errorf("fetch %s.%s: %w", table, column, err))
	}
	if len(values) == 0 {
		return "", ErrNotFound
	}
	return values[0], nil
}

func (c *GormClient) publish(ctx context.Context, table model.TableKey) {
	if c.feed == nil {
		return
	}
	if err := c.feed.Publish(ctx, table); err != nil {
		c.logger.Warn("change notification failed", zap.String("table", string(table)), zap.Error(err))
	}
}

func (c *GormClient) fail(err error) error {
	if IsNetworkError(err) {
		if c.online.Swap(false) {
			c.logger.Warn("backend unreachable, switching to offline mode", zap.Error(err))
		}
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	return err
}

func (c *GormClient) setOnline(online bool) {
	if prev := c.online.Swap(online); prev != online {
		if online {
			c.logger.Info("backend reachable again")
		} else {
			c.logger.Warn("backend unreachable, switching to offline mode")
		}
	}
}

// IsNetworkError reports whether err means the backend could not be reached.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded)
}
