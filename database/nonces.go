package database

import (
	"context"
	"fmt"
	"time"

	"zapstack-backend/models"

	"gorm.io/gorm"
)

type NonceRepository struct {
	db *gorm.DB
}

func NewNonceRepository(db *gorm.DB) *NonceRepository {
	return &NonceRepository{db: db}
}

// Insert records a nonce for the project. A (project, nonce) pair that already
// exists fails with ErrDuplicate; there is no prior existence check.
func (r *NonceRepository) Insert(ctx context.Context, projectID, nonce string) error {
	rec := models.Nonce{ProjectId: projectID, Nonce: nonce}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("nonce %q: %w", nonce, ErrDuplicate)
		}
		return err
	}
	return nil
}

// DeleteOlderThan removes nonces created before cutoff and reports how many went.
func (r *NonceRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Nonce{})
	return res.RowsAffected, res.Error
}
