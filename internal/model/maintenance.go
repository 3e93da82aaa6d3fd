package model

import "time"

// Origin classifies why a maintenance session exists.
type Origin string

const (
	OriginPreventive  Origin = "PREVENTIVA"
	OriginCorrective  Origin = "CORRETIVA"
	OriginExtraDemand Origin = "DEMANDA_EXTRA"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	switch o {
	case OriginPreventive, OriginCorrective, OriginExtraDemand:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of an open maintenance session.
type SessionStatus string

const (
	StatusRunning SessionStatus = "ANDAMENTO"
	StatusPaused  SessionStatus = "PAUSADA"
	StatusWaiting SessionStatus = "AGUARDANDO"
)

// ActiveMaintenance is a maintenance session that is still open.
type ActiveMaintenance struct {
	ID                  string        `json:"id" gorm:"primaryKey;size:64"`
	OMID                *string       `json:"omId,omitempty" gorm:"size:64"`
	ScheduleID          *string       `json:"scheduleId,omitempty" gorm:"size:64"`
	ARTID               string        `json:"artId" gorm:"size:64"`
	ARTType             string        `json:"artType" gorm:"size:32"`
	Header              Header        `json:"header" gorm:"embedded;embeddedPrefix:header_"`
	Origin              Origin        `json:"origin" gorm:"size:16;not null"`
	Status              SessionStatus `json:"status" gorm:"size:16;not null"`
	StartTime           time.Time     `json:"startTime" gorm:"not null"`
	CurrentSessionStart *time.Time    `json:"currentSessionStart,omitempty"`
	AccumulatedTime     int64         `json:"accumulatedTime" gorm:"not null"` // milliseconds
	OpenedBy            string        `json:"openedBy" gorm:"size:128"`
	UpdatedAt           time.Time     `json:"updatedAt"`
}

func (ActiveMaintenance) TableName() string { return string(TableActiveMaintenances) }

func (m ActiveMaintenance) RecordID() string { return m.ID }

// Elapsed returns the banked time plus the running interval, if any.
func (m ActiveMaintenance) Elapsed(now time.Time) time.Duration {
	total := time.Duration(m.AccumulatedTime) * time.Millisecond
	if m.Status == StatusRunning && m.CurrentSessionStart != nil {
		if running := now.Sub(*m.CurrentSessionStart); running > 0 {
			total += running
		}
	}
	return total
}

// MaintenanceLog is the immutable history entry written on completion.
type MaintenanceLog struct {
	ID          string    `json:"id" gorm:"primaryKey;size:64"`
	OM          string    `json:"om" gorm:"size:64;index"`
	Tag         string    `json:"tag" gorm:"size:64;index"`
	Area        string    `json:"area" gorm:"size:64"`
	Description string    `json:"description" gorm:"type:text"`
	StartTime   time.Time `json:"startTime" gorm:"not null"`
	EndTime     time.Time `json:"endTime" gorm:"not null;index"`
	Duration    string    `json:"duration" gorm:"size:16"`
	DurationMs  int64     `json:"durationMs"`
	Responsible string    `json:"responsible" gorm:"size:128"`
	Status      string    `json:"status" gorm:"size:32"`
	Origin      Origin    `json:"origin" gorm:"size:16"`
}

func (MaintenanceLog) TableName() string { return string(TableHistory) }

func (l MaintenanceLog) RecordID() string { return l.ID }
