package models

import (
	"time"
)

// AppointmentStatus is the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCheckedIn AppointmentStatus = "checked_in"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentScheduled: {AppointmentConfirmed, AppointmentCheckedIn, AppointmentCancelled, AppointmentNoShow},
	AppointmentConfirmed: {AppointmentCheckedIn, AppointmentCancelled, AppointmentNoShow},
	AppointmentCheckedIn: {AppointmentCompleted},
}

// CanTransition reports whether s may move to next
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Blocking reports whether an appointment in this status holds the doctor's time
func (s AppointmentStatus) Blocking() bool {
	return s != AppointmentCancelled && s != AppointmentNoShow
}

// DefaultAppointmentMinutes is used when a request leaves the duration empty
const DefaultAppointmentMinutes = 30

// Appointment represents the appointments table
type Appointment struct {
	ID              uint              `json:"id" gorm:"primaryKey"`
	PatientID       uint              `json:"patientId" gorm:"not null;index"`
	Patient         *Patient          `json:"patient,omitempty" gorm:"foreignKey:PatientID"`
	DoctorID        uint              `json:"doctorId" gorm:"not null;index"`
	Doctor          *Doctor           `json:"doctor,omitempty" gorm:"foreignKey:DoctorID"`
	ScheduledAt     time.Time         `json:"scheduledAt" gorm:"not null;index"`
	DurationMinutes int               `json:"durationMinutes" gorm:"not null;default:30"`
	Reason          string            `json:"reason,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Status          AppointmentStatus `json:"status" gorm:"type:varchar(20);not null;default:'scheduled';index"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// EndsAt is ScheduledAt plus the duration
func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports whether a and b share any instant. Touching ranges do not overlap.
func (a Appointment) Overlaps(b Appointment) bool {
	return a.ScheduledAt.Before(b.EndsAt()) && b.ScheduledAt.Before(a.EndsAt())
}

// AppointmentRequest is the body for creating or updating an appointment
type AppointmentRequest struct {
	PatientID       uint      `json:"patientId" validate:"required"`
	DoctorID        uint      `json:"doctorId" validate:"required"`
	ScheduledAt     time.Time `json:"scheduledAt" validate:"required"`
	DurationMinutes int       `json:"durationMinutes,omitempty" validate:"omitempty,min=5,max=480"`
	Reason          string    `json:"reason,omitempty" validate:"omitempty,max=500"`
	Notes           string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Apply copies the request fields onto a
func (r AppointmentRequest) Apply(a *Appointment) {
	a.PatientID = r.PatientID
	a.DoctorID = r.DoctorID
	a.ScheduledAt = r.ScheduledAt
	a.DurationMinutes = r.DurationMinutes
	if a.DurationMinutes == 0 {
		a.DurationMinutes = DefaultAppointmentMinutes
	}
	a.Reason = r.Reason
	a.Notes = r.Notes
	if a.Status == "" {
		a.Status = AppointmentScheduled
	}
}

// AppointmentStatusRequest is the body of PUT /appointments/:id/status
type AppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" validate:"required,oneof=scheduled confirmed checked_in completed cancelled no_show"`
}

// AppointmentCheckInResponse is returned by POST /appointments/:id/check-in
type AppointmentCheckInResponse struct {
	Appointment Appointment `json:"appointment"`
	QueueEntry  QueueEntry  `json:"queueEntry"`
}

func (a Appointment) GetID() uint { return a.ID }
