package models

import (
	"time"
)

// DoctorStatus is the availability of a doctor at the front desk
type DoctorStatus string

const (
	DoctorAvailable DoctorStatus = "available"
	DoctorBusy      DoctorStatus = "busy"
	DoctorOnBreak   DoctorStatus = "on_break"
	DoctorOffDuty   DoctorStatus = "off_duty"
)

// Valid reports whether s is a known status
func (s DoctorStatus) Valid() bool {
	switch s {
	case DoctorAvailable, DoctorBusy, DoctorOnBreak, DoctorOffDuty:
		return true
	}
	return false
}

// Doctor represents the doctors table
type Doctor struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"not null;index"`
	Specialty string       `json:"specialty" gorm:"index"`
	Email     string       `json:"email" gorm:"uniqueIndex;not null"`
	Phone     string       `json:"phone,omitempty"`
	Room      string       `json:"room,omitempty"`
	Status    DoctorStatus `json:"status" gorm:"type:varchar(20);not null;default:'available';index"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// DoctorRequest is the body for creating or updating a doctor
type DoctorRequest struct {
	Name      string       `json:"name" validate:"required,max=120"`
	Specialty string       `json:"specialty" validate:"required,max=80"`
	Email     string       `json:"email" validate:"required,email"`
	Phone     string       `json:"phone,omitempty" validate:"omitempty,max=30"`
	Room      string       `json:"room,omitempty" validate:"omitempty,max=30"`
	Status    DoctorStatus `json:"status,omitempty" validate:"omitempty,oneof=available busy on_break off_duty"`
}

// Apply copies the request fields onto d
func (r DoctorRequest) Apply(d *Doctor) {
	d.Name = r.Name
	d.Specialty = r.Specialty
	d.Email = r.Email
	d.Phone = r.Phone
	d.Room = r.Room
	if r.Status != "" {
		d.Status = r.Status
	}
	if d.Status == "" {
		d.Status = DoctorAvailable
	}
}

// DoctorStatusRequest is the body of PUT /doctors/:id/status
type DoctorStatusRequest struct {
	Status DoctorStatus `json:"status" validate:"required,oneof=available busy on_break off_duty"`
}

func (d Doctor) GetID() uint { return d.ID }
