package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProjectTypePayments = "payments"
	ProviderMpesa       = "mpesa"

	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"
)

// Project is a tenant registered on the dashboard. Only the fields the payment
// core reads are modelled here; project CRUD lives elsewhere.
type Project struct {
	Id             string    `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"not null"`
	OwnerId        string    `json:"-" gorm:"index"`
	ZapKey         string    `json:"-" gorm:"size:16;uniqueIndex;not null"`
	Type           string    `json:"type" gorm:"size:32;not null"`
	Provider       string    `json:"provider" gorm:"size:32;not null"`
	ConsumerKey    string    `json:"-"`
	ConsumerSecret string    `json:"-"`
	Shortcode      string    `json:"shortcode"`
	Passkey        string    `json:"-"`
	Environment    string    `json:"environment" gorm:"size:16;default:sandbox"`
	CallbackURL    string    `json:"callback_url"`
	WebhookURL     string    `json:"webhook_url"`
	CreatedAt      time.Time `json:"created_at"`
}

func (project *Project) BeforeCreate(tx *gorm.DB) (err error) {
	if project.Id == "" {
		// UUID version 4
		project.Id = uuid.NewString()
	}
	return
}

// IsProduction reports whether calls for this project go to the live Daraja API.
// Anything that is not explicitly production is treated as sandbox.
func (project *Project) IsProduction() bool {
	return project.Environment == EnvironmentProduction
}
