package database

import (
	"context"
	"errors"

	"zapstack-backend/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) Append(ctx context.Context, entry *models.PaymentLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindInitiation returns the first successful stk_initiate entry whose provider
// response carries merchantRequestID, with its owning project loaded.
// This JSON-path scan is the only link between a callback and its tenant.
func (r *LogRepository) FindInitiation(ctx context.Context, merchantRequestID string) (*models.PaymentLog, error) {
	var entry models.PaymentLog
	err := r.db.WithContext(ctx).
		InnerJoins("Project").
		Where("payment_logs.type = ? AND payment_logs.event = ?", models.LogTypeStkInitiate, models.EventSuccess).
		Where(datatypes.JSONQuery("payment_logs.response_payload").Equals(merchantRequestID, "MerchantRequestID")).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByProject pages through a project's audit trail, newest first.
func (r *LogRepository) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]models.PaymentLog, error) {
	var entries []models.PaymentLog
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}
