package models

import (
	"time"
)

// User model. Accounts are created through the OTP verification flow; rows in
// this table are always verified.
type User struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `gorm:"index" json:"-"`
	Email          string     `gorm:"size:255;not null;unique" json:"email"`
	FirstName      string     `gorm:"size:255" json:"firstName"`
	LastName       string     `gorm:"size:255" json:"lastName"`
	Picture        string     `gorm:"size:1024" json:"picture"`
	HashedPassword []byte     `gorm:"not null" json:"-"`
	RoleID         *uint      `gorm:"index" json:"-"`
	Role           Role       `gorm:"foreignKey:RoleID;references:ID" json:"-"`
}
