package model

import "time"

// OrderStatus tracks a work order (OM) through execution.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDENTE"
	OrderInProgress OrderStatus = "EM_ANDAMENTO"
	OrderDone       OrderStatus = "CONCLUIDA"
)

// WorkOrder is a registered maintenance order (OM).
type WorkOrder struct {
	ID          string      `json:"id" gorm:"primaryKey;size:64"`
	Number      string      `json:"om" gorm:"size:64;index"`
	Tag         string      `json:"tag" gorm:"size:64"`
	Description string      `json:"description" gorm:"type:text"`
	Type        string      `json:"type" gorm:"size:32"`
	Priority    string      `json:"priority" gorm:"size:16"`
	Status      OrderStatus `json:"status" gorm:"size:16"`
	PDF         Blob        `json:"pdf" gorm:"embedded;embeddedPrefix:pdf_"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (WorkOrder) TableName() string { return string(TableOrders) }

func (o WorkOrder) RecordID() string { return o.ID }

func (o *WorkOrder) Blobs() map[string]*Blob {
	return map[string]*Blob{"pdf_data": &o.PDF}
}

// ARTTemplate is a safety-permit template that sessions are opened from.
type ARTTemplate struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Code      string    `json:"code" gorm:"size:32"`
	Name      string    `json:"name" gorm:"size:256"`
	Area      string    `json:"area" gorm:"size:64"`
	PDF       Blob      `json:"pdf" gorm:"embedded;embeddedPrefix:pdf_"`
	CreatedAt time.Time `json:"createdAt"`
}

func (ARTTemplate) TableName() string { return string(TableARTs) }

func (a ARTTemplate) RecordID() string { return a.ID }

func (a *ARTTemplate) Blobs() map[string]*Blob {
	return map[string]*Blob{"pdf_data": &a.PDF}
}

// ScheduleItem is one entry of the weekly maintenance schedule.
type ScheduleItem struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	Week        int       `json:"week"`
	Day         string    `json:"day" gorm:"size:16"`
	Frequency   string    `json:"frequency" gorm:"size:32"`
	OM          string    `json:"om" gorm:"size:64"`
	Tag         string    `json:"tag" gorm:"size:64"`
	Description string    `json:"description" gorm:"type:text"`
	Responsible string    `json:"responsible" gorm:"size:128"`
	Status      string    `json:"status" gorm:"size:32"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (ScheduleItem) TableName() string { return string(TableSchedule) }

func (s ScheduleItem) RecordID() string { return s.ID }

// PendingDemand is an extra-demand request waiting for a session.
type PendingDemand struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	Tag         string    `json:"tag" gorm:"size:64"`
	Description string    `json:"description" gorm:"type:text"`
	RequestedBy string    `json:"requestedBy" gorm:"size:128"`
	Priority    string    `json:"priority" gorm:"size:16"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (PendingDemand) TableName() string { return string(TablePendingDemands) }

func (p PendingDemand) RecordID() string { return p.ID }
