package model

import "time"

// Role gates which routes a user may reach.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleOperator   Role = "OPERADOR"
)

// User is a login account.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:64"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:64;not null"`
	Name         string    `json:"name" gorm:"size:128"`
	PasswordHash string    `json:"passwordHash" gorm:"size:128"`
	Role         Role      `json:"role" gorm:"size:16"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (User) TableName() string { return string(TableUsers) }

func (u User) RecordID() string { return u.ID }

// Employee is a maintenance technician listed on schedules and permits.
type Employee struct {
	ID     string `json:"id" gorm:"primaryKey;size:64"`
	Name   string `json:"name" gorm:"size:128;not null"`
	Badge  string `json:"badge" gorm:"size:32"`
	Role   string `json:"role" gorm:"size:64"`
	Shift  string `json:"shift" gorm:"size:16"`
	Active bool   `json:"active"`
}

func (Employee) TableName() string { return string(TableEmployees) }

func (e Employee) RecordID() string { return e.ID }
