package model

// TableKey identifies one backend table and its local mirror snapshot.
type TableKey string

const (
	TableOrders             TableKey = "orders"
	TableARTs               TableKey = "arts"
	TableSchedule           TableKey = "schedule"
	TableActiveMaintenances TableKey = "active_maintenances"
	TableDocuments          TableKey = "documents"
	TableEmployees          TableKey = "employees"
	TableUsers              TableKey = "users"
	TableHistory            TableKey = "history"
	TablePendingDemands     TableKey = "pending_demands"
	TableNotifications      TableKey = "notifications"
	TableAvailability       TableKey = "availability"
	TableChecklists         TableKey = "checklist_templates"
	TableChat               TableKey = "chat_messages"
	TablePushSubscriptions  TableKey = "push_subscriptions"
)

// AllTables lists every table the sync driver keeps mirrored.
var AllTables = []TableKey{
	TableOrders,
	TableARTs,
	TableSchedule,
	TableActiveMaintenances,
	TableDocuments,
	TableEmployees,
	TableUsers,
	TableHistory,
	TablePendingDemands,
	TableNotifications,
	TableAvailability,
	TableChecklists,
	TableChat,
	TablePushSubscriptions,
}

// ParseTableKey returns the table key for name, if it is a known table.
func ParseTableKey(name string) (TableKey, bool) {
	for _, k := range AllTables {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

// Record is implemented by every row mirrored from the backend.
type Record interface {
	RecordID() string
}
