package models

import "time"

// Project groups a user's documents per service type.
type Project struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"size:1024" json:"description"`
	// ServiceType is "comparison" or "translation"; projects are listed per service.
	ServiceType string `gorm:"size:64;index" json:"serviceType"`
	UserID      string `gorm:"size:36;not null;index" json:"userId"`
}
