package model

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app notice shown on the dashboard.
type Notification struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Kind      string    `json:"kind" gorm:"size:32"`
	Title     string    `json:"title" gorm:"size:256"`
	Message   string    `json:"message" gorm:"type:text"`
	RefID     string    `json:"refId" gorm:"size:64"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Notification) TableName() string { return string(TableNotifications) }

func (n Notification) RecordID() string { return n.ID }

// AvailabilityEntry is one row of the equipment availability board.
type AvailabilityEntry struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Tag       string    `json:"tag" gorm:"size:64"`
	Status    string    `json:"status" gorm:"size:32"`
	Note      string    `json:"note" gorm:"type:text"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (AvailabilityEntry) TableName() string { return string(TableAvailability) }

func (a AvailabilityEntry) RecordID() string { return a.ID }

// ChecklistTemplate defines the items of a pre/post-maintenance checklist.
type ChecklistTemplate struct {
	ID    string         `json:"id" gorm:"primaryKey;size:64"`
	Name  string         `json:"name" gorm:"size:128"`
	Area  string         `json:"area" gorm:"size:64"`
	Items datatypes.JSON `json:"items"`
}

func (ChecklistTemplate) TableName() string { return string(TableChecklists) }

func (c ChecklistTemplate) RecordID() string { return c.ID }

// ChatMessage is a shift chat message.
type ChatMessage struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Sender    string    `json:"sender" gorm:"size:128"`
	Text      string    `json:"text" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
}

func (ChatMessage) TableName() string { return string(TableChat) }

func (c ChatMessage) RecordID() string { return c.ID }
