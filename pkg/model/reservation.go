package model

import "time"

// Reservation is the single record that claims a slot. Its _id is the slot
// id, so the store's primary key is what keeps a slot from being booked twice.
type Reservation struct {
	SlotID          string    `json:"slot_id" bson:"_id"`
	Date            string    `json:"date" bson:"date"`
	Time            string    `json:"time" bson:"time"`
	PatientName     string    `json:"patient_name" bson:"patient_name"`
	PatientEmail    string    `json:"patient_email" bson:"patient_email"`
	BookedBy        string    `json:"booked_by" bson:"booked_by"`
	BookedAt        time.Time `json:"booked_at" bson:"booked_at"`
	EffectiveMoment time.Time `json:"effective_moment" bson:"effective_moment"`
}

type BookingRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email,max=254"`
	Date  string `json:"date" validate:"required,clinic_date"`
	Time  string `json:"time" validate:"required"`
}

// SlotAvailability is one row of the booking page: a day and its slots.
type SlotAvailability struct {
	Date        string       `json:"date"`
	DisplayDate string       `json:"display_date"`
	Slots       []SlotStatus `json:"slots"`
}

type SlotStatus struct {
	SlotID string `json:"slot_id"`
	Time   string `json:"time"`
	Booked bool   `json:"booked"`
}
