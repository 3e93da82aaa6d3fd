package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint" gorm:"primaryKey"`
	P256DH    string    `json:"p256dh" gorm:"column:p256dh;not null"`
	Auth      string    `json:"auth" gorm:"not null"`
	Username  string    `json:"username" gorm:"size:64"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}

func (PushSubscription) TableName() string { return string(TablePushSubscriptions) }

func (p PushSubscription) RecordID() string { return p.Endpoint }
