package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"safemaint-backend/internal/db"
	"safemaint-backend/internal/events"
	"safemaint-backend/internal/mirror"
	"safemaint-backend/internal/model"
	"safemaint-backend/internal/remote"
)

type harness struct {
	repos    *Repositories
	remoteDB *gorm.DB
	mirror   *mirror.Store
	client   *switchClient
	events   []events.Event
}

// switchClient lets a test take the backend offline without closing it.
type switchClient struct {
	remote.Client
	offline bool
}

func (c *switchClient) Online() bool {
	return !c.offline && c.Client.Online()
}

// newHarness wires repositories over an in-memory mirror and an in-memory
// SQLite database standing in for the hosted backend.
func newHarness(t *testing.T) *harness {
	remoteDB, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(remoteDB))

	h := &harness{remoteDB: remoteDB}
	h.mirror = mirror.New(mirror.NewMemoryBackend(0), mirror.Options{InlineBlobBytes: 64}, nil)

	bus := events.NewBus()
	bus.Subscribe(func(e events.Event) { h.events = append(h.events, e) })

	h.client = &switchClient{Client: remote.NewGormClient(remoteDB, nil, nil)}
	h.repos = NewRepositories(Deps{
		Mirror: h.mirror,
		Remote: h.client,
		Writer: remote.Inline{Client: h.client},
		Bus:    bus,
	})
	return h
}

func TestRepository_SaveWritesMirrorRemoteAndBroadcasts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order := model.WorkOrder{ID: "om-1", Number: "100200", Tag: "BC-01", Status: model.OrderPending}
	require.NoError(t, h.repos.Orders.Save(ctx, order))

	got, err := h.repos.Orders.Get("om-1")
	require.NoError(t, err)
	assert.Equal(t, "100200", got.Number)

	var remoteOrders []model.WorkOrder
	require.NoError(t, h.remoteDB.Find(&remoteOrders).Error)
	require.Len(t, remoteOrders, 1)
	assert.Equal(t, "BC-01", remoteOrders[0].Tag)

	require.Len(t, h.events, 1)
	assert.Equal(t, events.Event{Table: model.TableOrders, Op: events.OpUpsert, ID: "om-1"}, h.events[0])
}

func TestRepository_SaveSameIDTwiceKeepsOneEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.repos.Employees.Save(ctx, model.Employee{ID: "e1", Name: "Ana", Shift: "A"}))
	require.NoError(t, h.repos.Employees.Save(ctx, model.Employee{ID: "e1", Name: "Ana Souza", Shift: "B"}))

	list := h.repos.Employees.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Ana Souza", list[0].Name)
	assert.Equal(t, "B", list[0].Shift)
}

func TestRepository_SaveRequiresID(t *testing.T) {
	h := newHarness(t)
	assert.Error(t, h.repos.Orders.Save(context.Background(), model.WorkOrder{}))
}

func TestRepository_Delete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.repos.Chat.Save(ctx, model.ChatMessage{ID: "c1", Sender: "Ana", Text: "turno B assumiu"}))

	found, err := h.repos.Chat.Delete(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, h.repos.Chat.List())

	var count int64
	h.remoteDB.Model(&model.ChatMessage{}).Count(&count)
	assert.Zero(t, count)

	found, err = h.repos.Chat.Delete(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = h.repos.Chat.Get("c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_RefreshPreservesUsersOnEmptyRemote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin := model.User{ID: "u-admin", Username: "admin", Role: model.RoleAdmin}
	require.NoError(t, mirror.Write(h.mirror, model.TableUsers, []model.User{admin}))

	n, err := h.repos.Users.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []model.User{admin}, h.repos.Users.List())
}

func TestRepository_RefreshOverwritesOtherTablesOnEmptyRemote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, mirror.Write(h.mirror, model.TableEmployees, []model.Employee{{ID: "e1", Name: "Ana"}}))

	n, err := h.repos.Employees.Refresh(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.repos.Employees.List())
	assert.Equal(t, events.OpSync, h.events[len(h.events)-1].Op)
}

func TestRepository_RefreshReplacesUsersWhenRemoteHasRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, mirror.Write(h.mirror, model.TableUsers, []model.User{{ID: "u-admin", Username: "admin"}}))
	require.NoError(t, h.remoteDB.Create(&model.User{ID: "u-1", Username: "joao", Role: model.RoleOperator}).Error)

	n, err := h.repos.Users.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	list := h.repos.Users.List()
	require.Len(t, list, 1)
	assert.Equal(t, "joao", list[0].Username)
}

func TestRepository_BlobResolvesElidedPayloadFromRemote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pdf := "data:application/pdf;base64," + strings.Repeat("Q", 256)
	require.NoError(t, h.repos.Orders.Save(ctx, model.WorkOrder{ID: "om-1", Number: "1", PDF: model.Blob{Data: pdf}}))

	local, err := h.repos.Orders.Get("om-1")
	require.NoError(t, err)
	assert.True(t, local.PDF.Elided, "large payloads are not kept in the mirror")

	data, err := h.repos.Orders.Blob(ctx, "om-1", "pdf_data")
	require.NoError(t, err)
	assert.Equal(t, pdf, data)

	// Saving the elided mirror copy must not wipe the remote payload.
	local.Status = model.OrderInProgress
	require.NoError(t, h.repos.Orders.Save(ctx, local))
	data, err = h.repos.Orders.Blob(ctx, "om-1", "pdf_data")
	require.NoError(t, err)
	assert.Equal(t, pdf, data)

	require.NoError(t, h.repos.Orders.Save(ctx, model.WorkOrder{ID: "om-2", Number: "2", PDF: model.Blob{Data: "data:,small"}}))
	data, err = h.repos.Orders.Blob(ctx, "om-2", "pdf_data")
	require.NoError(t, err)
	assert.Equal(t, "data:,small", data)

	require.NoError(t, h.repos.Orders.Save(ctx, model.WorkOrder{ID: "om-3", Number: "3"}))
	_, err = h.repos.Orders.Blob(ctx, "om-3", "pdf_data")
	assert.ErrorIs(t, err, ErrNoBlob)

	_, err = h.repos.Orders.Blob(ctx, "om-1", "nope")
	assert.ErrorIs(t, err, ErrNoBlob)
}

func TestRepository_OfflineSaveKeepsPayloadUntilPushed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.offline = true

	pdf := "data:application/pdf;base64," + strings.Repeat("Q", 256)
	require.NoError(t, h.repos.Orders.Save(ctx, model.WorkOrder{ID: "om-1", Number: "1", PDF: model.Blob{Data: pdf}}))

	local, err := h.repos.Orders.Get("om-1")
	require.NoError(t, err)
	assert.False(t, local.PDF.Elided)
	assert.True(t, local.PDF.Pending)

	data, err := h.repos.Orders.Blob(ctx, "om-1", "pdf_data")
	require.NoError(t, err)
	assert.Equal(t, pdf, data)

	var count int64
	h.remoteDB.Model(&model.WorkOrder{}).Count(&count)
	assert.Zero(t, count)

	// Back online: the next sync pushes the file and keeps the row.
	h.client.offline = false
	n, err := h.repos.Orders.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var row model.WorkOrder
	require.NoError(t, h.remoteDB.First(&row, "id = ?", "om-1").Error)
	assert.Equal(t, pdf, row.PDF.Data)

	local, err = h.repos.Orders.Get("om-1")
	require.NoError(t, err)
	assert.True(t, local.PDF.Elided)
	assert.False(t, local.PDF.Pending)

	data, err = h.repos.Orders.Blob(ctx, "om-1", "pdf_data")
	require.NoError(t, err)
	assert.Equal(t, pdf, data)
}

func TestRepository_RefreshKeepsPendingRowWhileOffline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.client.offline = true

	pdf := "data:application/pdf;base64," + strings.Repeat("Q", 256)
	require.NoError(t, h.repos.Orders.Save(ctx, model.WorkOrder{ID: "om-1", Number: "1", PDF: model.Blob{Data: pdf}}))

	// The writer refuses the push, so the local row stays as it was.
	items := h.repos.Orders.pushPending([]model.WorkOrder{{ID: "om-2", Number: "2"}})
	require.Len(t, items, 2)
	assert.Equal(t, "om-1", items[0].ID)
	assert.True(t, items[0].PDF.Pending)
	assert.Equal(t, pdf, items[0].PDF.Data)
}

func TestRepository_NoBroadcastWhenLocalWriteFails(t *testing.T) {
	var got []events.Event
	bus := events.NewBus()
	bus.Subscribe(func(e events.Event) { got = append(got, e) })

	// A quota this small rejects every snapshot.
	m := mirror.New(mirror.NewMemoryBackend(8), mirror.Options{TruncateThreshold: 50}, nil)
	repos := NewRepositories(Deps{Mirror: m, Bus: bus})
	ctx := context.Background()

	require.NoError(t, repos.Chat.Save(ctx, model.ChatMessage{ID: "c1", Sender: "Ana", Text: "turno B assumiu"}))
	_, err := repos.Chat.Get("c1")
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := repos.Chat.Delete(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, got)
}

func TestRepositories_AllCoversEveryTable(t *testing.T) {
	h := newHarness(t)
	var tables []model.TableKey
	for _, r := range h.repos.All() {
		tables = append(tables, r.Table())
	}
	assert.Equal(t, model.AllTables, tables)
}
