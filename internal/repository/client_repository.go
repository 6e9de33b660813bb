package repository

import (
	"context"
	"fmt"

	"service_orders/internal/models"

	"gorm.io/gorm"
)

type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id uint) (*models.Client, error)
}

type clientRepository struct {
	db *gorm.DB
}

func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	if err := r.db.WithContext(ctx).Create(client).Error; err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *clientRepository) GetByID(ctx context.Context, id uint) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, translate(err, "client", id)
	}
	return &client, nil
}
