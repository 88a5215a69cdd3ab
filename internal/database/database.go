package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	slog.Info("database connected")
	return nil
}

// AllModels lists every table the service owns, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.RefreshToken{},
		&models.Customer{},
		&models.MembershipLevel{},
		&models.Membership{},
		&models.Payment{},
		&models.Discount{},
		&models.DiscountUse{},
		&models.BatchJob{},
		&models.WebhookEvent{},
		&models.Setting{},
		&models.SystemLog{},
	}
}

// Migrate runs AutoMigrate for all models on db.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
