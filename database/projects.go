package database

import (
	"context"
	"errors"

	"zapstack-backend/models"

	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// FindPaymentsProject looks up a payments project by its tenant-facing key.
func (r *ProjectRepository) FindPaymentsProject(ctx context.Context, zapKey, provider string) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).
		Where("zap_key = ? AND type = ? AND provider = ?", zapKey, models.ProjectTypePayments, provider).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}
