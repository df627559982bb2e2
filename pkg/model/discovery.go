package model

import "time"

const (
	DiscoveryStatusPending = "pending_confirmation"
)

type DiscoveryRequest struct {
	ID            string    `json:"id" bson:"_id"`
	Name          string    `json:"name" bson:"name"`
	Email         string    `json:"email" bson:"email"`
	Message       string    `json:"message" bson:"message"`
	PreferredDate string    `json:"preferred_date" bson:"preferred_date"`
	UPIReference  string    `json:"upi_reference,omitempty" bson:"upi_reference,omitempty"`
	RequestedBy   string    `json:"requested_by" bson:"requested_by"`
	RequestedAt   time.Time `json:"requested_at" bson:"requested_at"`
	Status        string    `json:"status" bson:"status"`
}

type DiscoveryInput struct {
	Name          string `json:"name" validate:"required,max=120"`
	Email         string `json:"email" validate:"required,email,max=254"`
	Message       string `json:"message" validate:"required,max=4000"`
	PreferredDate string `json:"preferred_date" validate:"required,clinic_date"`
	UPIReference  string `json:"upi_reference,omitempty" validate:"omitempty,max=64"`
}
