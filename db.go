package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pdit/models"
)

var db *gorm.DB

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect postgres database:", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true).
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	if shouldMigrate {
		// Migrate models individually so a failure on one doesn't block others.
		// Roles go first so the users FK can be applied safely.
		for _, m := range []any{
			&models.Role{},
			&models.User{},
			&models.Project{},
			&models.Document{},
			&models.SupportTicket{},
			&models.AdminReply{},
			&models.Announcement{},
			&models.PendingUser{},
			&models.Verification{},
		} {
			if err := db.AutoMigrate(m); err != nil {
				log.Printf("migration warning (%T): %v", m, err)
			}
		}
	}
	seedDB()
}

func seedDB() {
	// Ensure master roles exist
	roles := []models.Role{{Name: "administrator", Description: "full access"}, {Name: "user", Description: "regular user"}}
	for _, r := range roles {
		var cnt int64
		db.Model(&models.Role{}).Where("name = ?", r.Name).Count(&cnt)
		if cnt == 0 {
			db.Create(&r)
		}
	}

	// Seed the admin account if missing
	adminEmail := envDefault("ADMIN_EMAIL", "admin@pdit.local")
	var count int64
	db.Model(&models.User{}).Where("email = ?", adminEmail).Count(&count)
	if count == 0 {
		var role models.Role
		if err := db.Where("name = ?", "administrator").First(&role).Error; err != nil {
			log.Printf("failed to find administrator role: %v", err)
		}
		rid := role.ID
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(envDefault("ADMIN_PASSWORD", "admin123")), bcrypt.DefaultCost)
		admin := models.User{
			ID:             uuid.NewString(),
			Email:          adminEmail,
			FirstName:      "Administrator",
			HashedPassword: hashedPassword,
			RoleID:         &rid,
		}
		db.Create(&admin)
		log.Println("Seeded admin user:", adminEmail)
	}

	// Drop pending registrations that never verified
	db.Where("expires_at < ?", time.Now()).Delete(&models.PendingUser{})
}
