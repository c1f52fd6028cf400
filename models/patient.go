package models

import (
	"strings"
	"time"
)

// Patient represents the patients table
type Patient struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	FirstName           string    `json:"firstName" gorm:"not null;index"`
	LastName            string    `json:"lastName" gorm:"not null;index"`
	DateOfBirth         string    `json:"dateOfBirth,omitempty"`
	Gender              string    `json:"gender,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	Email               string    `json:"email,omitempty"`
	Address             string    `json:"address,omitempty"`
	MedicalRecordNumber string    `json:"medicalRecordNumber" gorm:"uniqueIndex;not null"`
	Notes               string    `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// FullName returns "First Last"
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PatientRequest is the body for creating or updating a patient
type PatientRequest struct {
	FirstName           string `json:"firstName" validate:"required,max=100"`
	LastName            string `json:"lastName" validate:"required,max=100"`
	DateOfBirth         string `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender              string `json:"gender,omitempty" validate:"omitempty,oneof=female male other"`
	Phone               string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Email               string `json:"email,omitempty" validate:"omitempty,email"`
	Address             string `json:"address,omitempty" validate:"omitempty,max=255"`
	MedicalRecordNumber string `json:"medicalRecordNumber,omitempty" validate:"omitempty,max=40"`
	Notes               string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Apply copies the request fields onto p
func (r PatientRequest) Apply(p *Patient) {
	p.FirstName = r.FirstName
	p.LastName = r.LastName
	p.DateOfBirth = r.DateOfBirth
	p.Gender = r.Gender
	p.Phone = r.Phone
	p.Email = r.Email
	p.Address = r.Address
	p.Notes = r.Notes
	if r.MedicalRecordNumber != "" {
		p.MedicalRecordNumber = r.MedicalRecordNumber
	}
}

func (p Patient) GetID() uint { return p.ID }
