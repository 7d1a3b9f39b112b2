package models

import "time"

// Nonce is a one-time token consumed by a payment initiation.
// The composite unique index on (project_id, nonce) is what rejects replays.
type Nonce struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectId string    `json:"project_id" gorm:"size:36;not null;uniqueIndex:idx_nonces_project_nonce,priority:1"`
	Nonce     string    `json:"nonce" gorm:"size:128;not null;uniqueIndex:idx_nonces_project_nonce,priority:2"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
