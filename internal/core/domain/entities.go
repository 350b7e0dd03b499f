package domain

import (
	"time"
)

// Patient represents a person tracked by care coordinators.
type Patient struct {
	ID          string        `json:"id"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	DateOfBirth string        `json:"date_of_birth"`
	ZipCode     string        `json:"zip_code"`
	Conditions  []string      `json:"conditions"`
	Status      PatientStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type PatientStatus string

const (
	PatientStatusActive     PatientStatus = "active"
	PatientStatusInactive   PatientStatus = "inactive"
	PatientStatusDischarged PatientStatus = "discharged"
)

// CareProvider represents a provider patients can be referred to.
type CareProvider struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	ZipCode   string    `json:"zip_code"`
	Accepting bool      `json:"accepting_patients"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Referral links a patient to a provider.
type Referral struct {
	ID         string         `json:"id"`
	PatientID  string         `json:"patient_id"`
	ProviderID string         `json:"provider_id"`
	Status     ReferralStatus `json:"status"`
	Notes      string         `json:"notes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusAccepted  ReferralStatus = "accepted"
	ReferralStatusDeclined  ReferralStatus = "declined"
	ReferralStatusCompleted ReferralStatus = "completed"
)
