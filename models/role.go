package models

// Role master data. Seeded at startup with "administrator" and "user".
type Role struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:64;not null;unique"`
	Description string `gorm:"size:255"`
}
