package repository

import (
	"context"
	"fmt"

	"service_orders/internal/models"

	"gorm.io/gorm"
)

type WorkerRepository interface {
	Create(ctx context.Context, worker *models.Worker) error
	GetByID(ctx context.Context, id uint) (*models.Worker, error)
	CreateProject(ctx context.Context, project *models.WorkerProject) error
	GetProject(ctx context.Context, id uint) (*models.WorkerProject, error)
}

type workerRepository struct {
	db *gorm.DB
}

func (r *workerRepository) Create(ctx context.Context, worker *models.Worker) error {
	if err := r.db.WithContext(ctx).Create(worker).Error; err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	return nil
}

func (r *workerRepository) GetByID(ctx context.Context, id uint) (*models.Worker, error) {
	var worker models.Worker
	if err := r.db.WithContext(ctx).First(&worker, id).Error; err != nil {
		return nil, translate(err, "worker", id)
	}
	return &worker, nil
}

func (r *workerRepository) CreateProject(ctx context.Context, project *models.WorkerProject) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("failed to create worker project: %w", err)
	}
	return nil
}

func (r *workerRepository) GetProject(ctx context.Context, id uint) (*models.WorkerProject, error) {
	var project models.WorkerProject
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, translate(err, "worker project", id)
	}
	return &project, nil
}
