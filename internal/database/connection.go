package database

import (
	"fmt"

	"service_orders/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize opens the store. Schema changes are left to the migrate command.
func Initialize(databaseURL, logLevel string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(logLevel)),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(databaseURL), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logrus.Info("Database connected")
	return db, nil
}

// AutoMigrate creates or extends every table the engine uses. It never drops anything.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Client{},
		&models.Worker{},
		&models.WorkerProject{},
		&models.Order{},
		&models.OrderServiceLine{},
		&models.OrderCustomField{},
		&models.OrderWorker{},
		&models.Task{},
		&models.SalesOrder{},
		&models.Payment{},
	)
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug", "trace":
		return logger.Info
	case "error", "fatal", "panic":
		return logger.Error
	default:
		return logger.Warn
	}
}
