package migrations

import (
	"context"
	"errors"
	"fmt"

	"service_orders/internal/database"
	"service_orders/internal/models"
	"service_orders/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunMigrations brings the schema up to date and optionally seeds demo data.
// Existing tables and rows are never dropped.
func RunMigrations(ctx context.Context, db *gorm.DB, seed bool) error {
	logrus.Info("Running database migrations...")
	if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if seed {
		if err := createDefaultData(ctx, repository.NewStore(db)); err != nil {
			return fmt.Errorf("failed to create default data: %w", err)
		}
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}

// createDefaultData adds one client, one worker and a project so the API can be tried out.
func createDefaultData(ctx context.Context, store repository.Store) error {
	var notFound *models.NotFoundError
	if _, err := store.Clients().GetByID(ctx, 1); err == nil {
		logrus.Info("Default data already exists")
		return nil
	} else if !errors.As(err, &notFound) {
		return err
	}

	return store.WithinTransaction(ctx, func(tx repository.Store) error {
		client := &models.Client{Name: "Demo Client", Phone: "6289500000000", Email: "client@example.com"}
		if err := tx.Clients().Create(ctx, client); err != nil {
			return err
		}
		worker := &models.Worker{Name: "Demo Worker", Phone: "6289500000001", IsActive: true}
		if err := tx.Workers().Create(ctx, worker); err != nil {
			return err
		}
		project := &models.WorkerProject{WorkerID: worker.ID, Name: "General maintenance", FixedPrice: decimal.NewFromInt(150000)}
		if err := tx.Workers().CreateProject(ctx, project); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"client_id":  client.ID,
			"worker_id":  worker.ID,
			"project_id": project.ID,
		}).Info("Default data created")
		return nil
	})
}
