package models

import "time"

// PendingUser holds a registration waiting for OTP verification. The row is
// promoted into users once the code is confirmed and expires after a week
// otherwise.
type PendingUser struct {
	ID             uint      `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Email          string `gorm:"size:255;not null;unique"`
	FirstName      string `gorm:"size:255"`
	LastName       string `gorm:"size:255"`
	HashedPassword []byte `gorm:"not null"`
	ExpiresAt      time.Time
}

// Verification is one emailed OTP code.
type Verification struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time
	Email     string `gorm:"size:255;not null;index"`
	Code      string `gorm:"size:8;not null"`
	ExpiresAt time.Time
	Used      bool `gorm:"default:false"`
}
