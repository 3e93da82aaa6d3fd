package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"safemaint-backend/config"
	"safemaint-backend/internal/db"
	"safemaint-backend/internal/mirror"
	"safemaint-backend/internal/model"
	"safemaint-backend/internal/remote"
	"safemaint-backend/internal/store"
)

func setupRemote(t *testing.T) *gorm.DB {
	remoteDB, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := remoteDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(remoteDB))
	return remoteDB
}

func newMirror() *mirror.Store {
	return mirror.New(mirror.NewMemoryBackend(0), mirror.Options{}, nil)
}

func newRepos(client remote.Client) *store.Repositories {
	return store.NewRepositories(store.Deps{Mirror: newMirror(), Remote: client})
}

func TestSyncOnce_PullsEveryTable(t *testing.T) {
	remoteDB := setupRemote(t)
	require.NoError(t, remoteDB.Create(&model.WorkOrder{ID: "om-1", Number: "123", Status: model.OrderPending}).Error)
	require.NoError(t, remoteDB.Create(&model.Employee{ID: "e-1", Name: "Ana", Badge: "100"}).Error)

	client := remote.NewGormClient(remoteDB, nil, nil)
	repos := newRepos(client)
	svc := NewService(config.SyncConfig{Enabled: true, Interval: time.Hour}, repos.All(), client, nil, nil)

	report, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	assert.Len(t, report.Rows, len(model.AllTables))
	assert.Equal(t, 1, report.Rows[model.TableOrders])

	orders := repos.Orders.List()
	require.Len(t, orders, 1)
	assert.Equal(t, "123", orders[0].Number)
	assert.Len(t, repos.Employees.List(), 1)
}

func TestSyncOnce_UsersProtectedOthersOverwritten(t *testing.T) {
	remoteDB := setupRemote(t)
	client := remote.NewGormClient(remoteDB, nil, nil)
	ctx := context.Background()

	// Seed local rows without reaching the backend.
	m := newMirror()
	local := store.NewRepositories(store.Deps{Mirror: m})
	repos := store.NewRepositories(store.Deps{Mirror: m, Remote: client})
	require.NoError(t, local.Users.Save(ctx, model.User{ID: "u-1", Username: "ana"}))
	require.NoError(t, local.Demands.Save(ctx, model.PendingDemand{ID: "d-1", Tag: "BC-01"}))

	svc := NewService(config.SyncConfig{Enabled: true}, repos.All(), client, nil, nil)
	_, err := svc.SyncOnce(ctx)
	require.NoError(t, err)

	assert.Len(t, repos.Users.List(), 1, "users survive an empty remote table")
	assert.Empty(t, repos.Demands.List(), "other tables mirror the remote, even when empty")
}

func TestSyncOnce_OfflineSkips(t *testing.T) {
	client := &offlineClient{}
	repos := newRepos(client)
	svc := NewService(config.SyncConfig{Enabled: true}, repos.All(), client, nil, nil)

	_, err := svc.SyncOnce(context.Background())
	assert.ErrorIs(t, err, remote.ErrOffline)
	assert.Equal(t, 1, client.pings)
}

func TestSyncOnce_FailingTableDoesNotStopOthers(t *testing.T) {
	remoteDB := setupRemote(t)
	require.NoError(t, remoteDB.Create(&model.WorkOrder{ID: "om-1"}).Error)
	require.NoError(t, remoteDB.Migrator().DropTable(&model.ChatMessage{}))

	client := remote.NewGormClient(remoteDB, nil, nil)
	repos := newRepos(client)
	svc := NewService(config.SyncConfig{Enabled: true}, repos.All(), client, nil, nil)

	report, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.TableKey{model.TableChat}, report.Failed)
	assert.Len(t, repos.Orders.List(), 1)
}

func TestRun_ResyncsOnChangeNotification(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	remoteDB := setupRemote(t)
	require.NoError(t, remoteDB.Create(&model.WorkOrder{ID: "om-1"}).Error)

	feed := remote.NewFeed(rdb, "safemaint:changes", nil)
	client := remote.NewGormClient(remoteDB, nil, nil)
	repos := newRepos(client)
	svc := NewService(config.SyncConfig{Enabled: true, Interval: time.Hour}, repos.All(), client, feed, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool { return len(repos.Orders.List()) == 1 }, 2*time.Second, 10*time.Millisecond)

	// Another node writes and announces the change.
	require.NoError(t, remoteDB.Create(&model.WorkOrder{ID: "om-2"}).Error)
	require.NoError(t, feed.Publish(context.Background(), model.TableOrders))

	assert.Eventually(t, func() bool { return len(repos.Orders.List()) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_SkipsInitialPassAfterSyncOnce(t *testing.T) {
	counter := &countingTable{}
	client := &onlineClient{}
	svc := NewService(config.SyncConfig{Enabled: true, Interval: time.Hour}, []store.Refresher{counter}, client, nil, nil)

	_, err := svc.SyncOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), counter.calls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, int32(1), counter.calls.Load())
}

func TestRun_InitialPassWithoutPriorSync(t *testing.T) {
	counter := &countingTable{}
	svc := NewService(config.SyncConfig{Enabled: true, Interval: time.Hour}, []store.Refresher{counter}, &onlineClient{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	assert.Eventually(t, func() bool { return counter.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_Disabled(t *testing.T) {
	svc := NewService(config.SyncConfig{Enabled: false}, nil, &offlineClient{}, nil, nil)
	svc.Run(context.Background()) // returns immediately
}

type countingTable struct {
	calls atomic.Int32
}

func (c *countingTable) Table() model.TableKey { return model.TableOrders }

func (c *countingTable) Refresh(context.Context) (int, error) {
	c.calls.Add(1)
	return 0, nil
}

type onlineClient struct {
	offlineClient
}

func (c *onlineClient) Online() bool { return true }

type offlineClient struct {
	pings int
}

func (c *offlineClient) Upsert(context.Context, model.TableKey, any, ...string) error {
	return remote.ErrOffline
}

func (c *offlineClient) Delete(context.Context, model.TableKey, string, string, any) error {
	return remote.ErrOffline
}

func (c *offlineClient) FetchAll(context.Context, model.TableKey, any, string) error {
	return remote.ErrOffline
}

func (c *offlineClient) FetchBlob(context.Context, model.TableKey, string, string) (string, error) {
	return "", remote.ErrOffline
}

func (c *offlineClient) Online() bool { return false }

func (c *offlineClient) Ping(context.Context) error {
	c.pings++
	return errors.New("dial tcp: connection refused")
}
