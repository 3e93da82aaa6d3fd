package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"safemaint-backend/internal/model"
	"safemaint-backend/internal/mw"
	"safemaint-backend/internal/store"
)

// tableHandler is the untyped view of one repository.
type tableHandler interface {
	list() any
	get(id string) (any, error)
	put(c *gin.Context) (any, error)
	remove(ctx context.Context, id string) (bool, error)
	file(ctx context.Context, id string) (string, error)
}

type typedTable[T model.Record] struct {
	repo *store.Repository[T]
	// blob column served by the file route, if any
	fileColumn string
}

func (t typedTable[T]) list() any {
	return t.repo.List()
}

func (t typedTable[T]) get(id string) (any, error) {
	return t.repo.Get(id)
}

func (t typedTable[T]) put(c *gin.Context) (any, error) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		return nil, errBadBody
	}
	if item.RecordID() == "" {
		return nil, errMissingID
	}
	if err := t.repo.Save(c.Request.Context(), item); err != nil {
		return nil, err
	}
	return item, nil
}

func (t typedTable[T]) remove(ctx context.Context, id string) (bool, error) {
	return t.repo.Delete(ctx, id)
}

func (t typedTable[T]) file(ctx context.Context, id string) (string, error) {
	if t.fileColumn == "" {
		return "", store.ErrNoBlob
	}
	return t.repo.Blob(ctx, id, t.fileColumn)
}

type tableEntry struct {
	handler tableHandler
	// roles allowed to write; empty means any logged-in user
	writers []model.Role
}

var editors = []model.Role{model.RoleAdmin, model.RoleSupervisor}

// newTableRegistry lists the tables served by the generic routes. Sessions,
// documents, history, users and push subscriptions have their own routes.
func newTableRegistry(r *store.Repositories) map[string]tableEntry {
	return map[string]tableEntry{
		string(model.TableOrders):         {typedTable[model.WorkOrder]{repo: r.Orders, fileColumn: "pdf_data"}, editors},
		string(model.TableARTs):           {typedTable[model.ARTTemplate]{repo: r.ARTs, fileColumn: "pdf_data"}, editors},
		string(model.TableSchedule):       {typedTable[model.ScheduleItem]{repo: r.Schedule}, editors},
		string(model.TableEmployees):      {typedTable[model.Employee]{repo: r.Employees}, editors},
		string(model.TableChecklists):     {typedTable[model.ChecklistTemplate]{repo: r.Checklists}, editors},
		string(model.TablePendingDemands): {typedTable[model.PendingDemand]{repo: r.Demands}, nil},
		string(model.TableNotifications):  {typedTable[model.Notification]{repo: r.Notifications}, nil},
		string(model.TableAvailability):   {typedTable[model.AvailabilityEntry]{repo: r.Availability}, nil},
		string(model.TableChat):           {typedTable[model.ChatMessage]{repo: r.Chat}, nil},
	}
}

type apiError string

func (e apiError) Error() string { return string(e) }

const (
	errBadBody   apiError = "invalid request"
	errMissingID apiError = "id is required"
)

func (h *Handler) table(c *gin.Context) (tableEntry, bool) {
	entry, ok := h.tables[c.Param("table")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown table"})
	}
	return entry, ok
}

func canWrite(c *gin.Context, entry tableEntry) bool {
	if len(entry.writers) == 0 {
		return true
	}
	sess, _ := mw.CurrentSession(c)
	for _, r := range entry.writers {
		if sess.Role == r {
			return true
		}
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	return false
}

// ListTable returns every row of a table.
func (h *Handler) ListTable(c *gin.Context) {
	entry, ok := h.table(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, entry.handler.list())
}

// GetTableRecord returns one row.
func (h *Handler) GetTableRecord(c *gin.Context) {
	entry, ok := h.table(c)
	if !ok {
		return
	}
	item, err := entry.handler.get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// PutTableRecord creates or replaces one row.
func (h *Handler) PutTableRecord(c *gin.Context) {
	entry, ok := h.table(c)
	if !ok || !canWrite(c, entry) {
		return
	}
	item, err := entry.handler.put(c)
	if err != nil {
		if e, ok := err.(apiError); ok {
			badRequest(c, e.Error())
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteTableRecord removes one row.
func (h *Handler) DeleteTableRecord(c *gin.Context) {
	entry, ok := h.table(c)
	if !ok || !canWrite(c, entry) {
		return
	}
	found, err := entry.handler.remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTableFile returns the PDF attached to a work order or permit template.
func (h *Handler) GetTableFile(c *gin.Context) {
	entry, ok := h.table(c)
	if !ok {
		return
	}
	data, err := entry.handler.file(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	writeDataURI(c, data)
}
