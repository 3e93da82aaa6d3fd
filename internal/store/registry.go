package store

import (
	"context"

	"safemaint-backend/internal/model"
)

// Refresher is a table the sync driver can reload from the backend.
type Refresher interface {
	Table() model.TableKey
	Refresh(ctx context.Context) (int, error)
}

// Repositories groups the repository of every table.
type Repositories struct {
	Orders        *Repository[model.WorkOrder]
	ARTs          *Repository[model.ARTTemplate]
	Schedule      *Repository[model.ScheduleItem]
	Maintenances  *Repository[model.ActiveMaintenance]
	Documents     *Repository[model.DocumentRecord]
	Employees     *Repository[model.Employee]
	Users         *Repository[model.User]
	History       *Repository[model.MaintenanceLog]
	Demands       *Repository[model.PendingDemand]
	Notifications *Repository[model.Notification]
	Availability  *Repository[model.AvailabilityEntry]
	Checklists    *Repository[model.ChecklistTemplate]
	Chat          *Repository[model.ChatMessage]
	Subscriptions *Repository[model.PushSubscription]
}

// NewRepositories wires a repository for every table.
func NewRepositories(deps Deps) *Repositories {
	return &Repositories{
		Orders:        NewRepository[model.WorkOrder](Options{Table: model.TableOrders, OrderBy: "created_at desc"}, deps),
		ARTs:          NewRepository[model.ARTTemplate](Options{Table: model.TableARTs, OrderBy: "created_at desc"}, deps),
		Schedule:      NewRepository[model.ScheduleItem](Options{Table: model.TableSchedule, OrderBy: "week desc"}, deps),
		Maintenances:  NewRepository[model.ActiveMaintenance](Options{Table: model.TableActiveMaintenances, OrderBy: "start_time desc"}, deps),
		Documents:     NewRepository[model.DocumentRecord](Options{Table: model.TableDocuments, OrderBy: "created_at desc"}, deps),
		Employees:     NewRepository[model.Employee](Options{Table: model.TableEmployees, OrderBy: "name"}, deps),
		Users:         NewRepository[model.User](Options{Table: model.TableUsers, OrderBy: "created_at desc", PreserveOnEmptyRemote: true}, deps),
		History:       NewRepository[model.MaintenanceLog](Options{Table: model.TableHistory, OrderBy: "end_time desc"}, deps),
		Demands:       NewRepository[model.PendingDemand](Options{Table: model.TablePendingDemands, OrderBy: "created_at desc"}, deps),
		Notifications: NewRepository[model.Notification](Options{Table: model.TableNotifications, OrderBy: "created_at desc"}, deps),
		Availability:  NewRepository[model.AvailabilityEntry](Options{Table: model.TableAvailability, OrderBy: "updated_at desc"}, deps),
		Checklists:    NewRepository[model.ChecklistTemplate](Options{Table: model.TableChecklists, OrderBy: "name"}, deps),
		Chat:          NewRepository[model.ChatMessage](Options{Table: model.TableChat, OrderBy: "created_at desc"}, deps),
		Subscriptions: NewRepository[model.PushSubscription](Options{Table: model.TablePushSubscriptions, KeyColumn: "endpoint", OrderBy: "created_at desc"}, deps),
	}
}

// All returns every repository as a Refresher, in model.AllTables order.
func (r *Repositories) All() []Refresher {
	return []Refresher{
		r.Orders,
		r.ARTs,
		r.Schedule,
		r.Maintenances,
		r.Documents,
		r.Employees,
		r.Users,
		r.History,
		r.Demands,
		r.Notifications,
		r.Availability,
		r.Checklists,
		r.Chat,
		r.Subscriptions,
	}
}
