package models

import (
	"time"
)

// QueueStatus is the state of a walk-in or checked-in patient in the queue
type QueueStatus string

const (
	QueueWaiting    QueueStatus = "waiting"
	QueueCalled     QueueStatus = "called"
	QueueInProgress QueueStatus = "in_progress"
	QueueCompleted  QueueStatus = "completed"
	QueueCancelled  QueueStatus = "cancelled"
	QueueNoShow     QueueStatus = "no_show"
)

var queueTransitions = map[QueueStatus][]QueueStatus{
	QueueWaiting:    {QueueCalled, QueueCancelled, QueueNoShow},
	QueueCalled:     {QueueInProgress, QueueWaiting, QueueCancelled, QueueNoShow},
	QueueInProgress: {QueueCompleted},
}

// Valid reports whether s is a known status
func (s QueueStatus) Valid() bool {
	switch s {
	case QueueWaiting, QueueCalled, QueueInProgress, QueueCompleted, QueueCancelled, QueueNoShow:
		return true
	}
	return false
}

// Active reports whether the entry still occupies a place in the queue
func (s QueueStatus) Active() bool {
	return s == QueueWaiting || s == QueueCalled || s == QueueInProgress
}

// CanTransition reports whether s may move to next
func (s QueueStatus) CanTransition(next QueueStatus) bool {
	for _, allowed := range queueTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// QueuePriority orders urgent patients ahead of normal ones
type QueuePriority string

const (
	PriorityNormal QueuePriority = "normal"
	PriorityUrgent QueuePriority = "urgent"
)

// QueueEntry represents the queue_entries table. Number is the ticket shown to
// the patient and is unique per QueueDate.
type QueueEntry struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	QueueDate     string        `json:"queueDate" gorm:"type:varchar(10);not null;uniqueIndex:idx_queue_day_number"`
	Number        int           `json:"number" gorm:"not null;uniqueIndex:idx_queue_day_number"`
	PatientID     uint          `json:"patientId" gorm:"not null;index"`
	Patient       *Patient      `json:"patient,omitempty" gorm:"foreignKey:PatientID"`
	DoctorID      *uint         `json:"doctorId,omitempty" gorm:"index"`
	Doctor        *Doctor       `json:"doctor,omitempty" gorm:"foreignKey:DoctorID"`
	AppointmentID *uint         `json:"appointmentId,omitempty" gorm:"index"`
	Priority      QueuePriority `json:"priority" gorm:"type:varchar(10);not null;default:'normal'"`
	Status        QueueStatus   `json:"status" gorm:"type:varchar(20);not null;default:'waiting';index"`
	Reason        string        `json:"reason,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	CheckedInAt   time.Time     `json:"checkedInAt"`
	CalledAt      *time.Time    `json:"calledAt,omitempty"`
	StartedAt     *time.Time    `json:"startedAt,omitempty"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// MarkStatus moves the entry to next and stamps the matching timestamp
func (q *QueueEntry) MarkStatus(next QueueStatus, at time.Time) {
	q.Status = next
	switch next {
	case QueueCalled:
		q.CalledAt = &at
	case QueueInProgress:
		q.StartedAt = &at
	case QueueCompleted, QueueCancelled, QueueNoShow:
		q.CompletedAt = &at
	case QueueWaiting:
		q.CalledAt = nil
	}
}

// CheckInRequest is the body of POST /queue
type CheckInRequest struct {
	PatientID uint          `json:"patientId" validate:"required"`
	DoctorID  *uint         `json:"doctorId,omitempty"`
	Priority  QueuePriority `json:"priority,omitempty" validate:"omitempty,oneof=normal urgent"`
	Reason    string        `json:"reason,omitempty" validate:"omitempty,max=500"`
	Notes     string        `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// QueueStatusRequest is the body of PUT /queue/:id/status
type QueueStatusRequest struct {
	Status QueueStatus `json:"status" validate:"required,oneof=waiting called in_progress completed cancelled no_show"`
}

// CallNextRequest is the body of POST /queue/call-next
type CallNextRequest struct {
	DoctorID *uint `json:"doctorId,omitempty"`
}

func (q QueueEntry) GetID() uint { return q.ID }
