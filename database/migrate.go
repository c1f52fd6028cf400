package database

import (
	"context"

	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migrate crea o actualiza las tablas del servicio
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Patient{},
		&models.Doctor{},
		&models.Appointment{},
		&models.QueueEntry{},
		&models.RequestLog{},
	)
	return errors.Wrap(err, "failed to migrate schema")
}

// SeedAdmin crea la primera cuenta admin si la tabla de usuarios está vacía.
// No hace nada si falta email o password.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to count users")
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, errors.Wrap(err, "failed to hash admin password")
	}

	admin := models.User{
		Name:         "Administrator",
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, errors.Wrap(err, "failed to create admin")
	}
	return true, nil
}
