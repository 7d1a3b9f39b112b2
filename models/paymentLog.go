package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	LogTypeStkInitiate = "stk_initiate"
	LogTypeStkCallback = "stk_callback"

	EventSuccess = "success"
	EventError   = "error"
	EventPending = "pending"
)

// PaymentLog is the append-only audit trail. Rows are never updated.
// Callbacks are correlated to tenants through the provider identifiers stored
// in ResponsePayload of earlier stk_initiate rows.
type PaymentLog struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	ProjectId       *string        `json:"project_id" gorm:"size:36;index"`
	Project         *Project       `json:"-" gorm:"foreignKey:ProjectId;references:Id"`
	Type            string         `json:"type" gorm:"size:32;not null;index"`
	ReferenceId     string         `json:"reference_id" gorm:"size:36;index"`
	RequestPayload  datatypes.JSON `json:"request_payload" gorm:"type:jsonb"`
	ResponsePayload datatypes.JSON `json:"response_payload" gorm:"type:jsonb"`
	Endpoint        string         `json:"endpoint" gorm:"size:255"`
	DurationMs      int64          `json:"duration_ms"`
	Event           string         `json:"event" gorm:"size:16;not null"`
	StatusCode      int            `json:"status_code"`
	Message         string         `json:"message"`
	CreatedAt       time.Time      `json:"created_at" gorm:"index"`
}
