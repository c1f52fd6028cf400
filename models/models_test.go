package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to QueueStatus
		ok       bool
	}{
		{QueueWaiting, QueueCalled, true},
		{QueueWaiting, QueueInProgress, false},
		{QueueCalled, QueueWaiting, true},
		{QueueCalled, QueueInProgress, true},
		{QueueInProgress, QueueCompleted, true},
		{QueueInProgress, QueueCancelled, false},
		{QueueCompleted, QueueWaiting, false},
		{QueueCancelled, QueueCalled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestQueueEntryMarkStatus(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	q := QueueEntry{Status: QueueWaiting}

	q.MarkStatus(QueueCalled, now)
	assert.Equal(t, QueueCalled, q.Status)
	assert.Equal(t, now, *q.CalledAt)

	q.MarkStatus(QueueWaiting, now)
	assert.Nil(t, q.CalledAt)

	q.MarkStatus(QueueInProgress, now)
	assert.Equal(t, now, *q.StartedAt)

	q.MarkStatus(QueueCompleted, now.Add(time.Minute))
	assert.Equal(t, now.Add(time.Minute), *q.CompletedAt)
}

func TestAppointmentStatusTransitions(t *testing.T) {
	assert.True(t, AppointmentScheduled.CanTransition(AppointmentConfirmed))
	assert.True(t, AppointmentConfirmed.CanTransition(AppointmentCheckedIn))
	assert.True(t, AppointmentCheckedIn.CanTransition(AppointmentCompleted))
	assert.False(t, AppointmentCompleted.CanTransition(AppointmentCancelled))
	assert.False(t, AppointmentCancelled.CanTransition(AppointmentScheduled))
	assert.False(t, AppointmentCheckedIn.CanTransition(AppointmentCancelled))
}

func TestAppointmentOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := Appointment{ScheduledAt: base, DurationMinutes: 30}

	assert.True(t, a.Overlaps(Appointment{ScheduledAt: base.Add(15 * time.Minute), DurationMinutes: 30}))
	assert.True(t, a.Overlaps(Appointment{ScheduledAt: base.Add(-15 * time.Minute), DurationMinutes: 30}))
	assert.False(t, a.Overlaps(Appointment{ScheduledAt: base.Add(30 * time.Minute), DurationMinutes: 30}))
	assert.False(t, a.Overlaps(Appointment{ScheduledAt: base.Add(-30 * time.Minute), DurationMinutes: 30}))
}

func TestNewMeta(t *testing.T) {
	assert.Equal(t, Meta{Total: 41, Page: 2, Limit: 20, TotalPages: 3}, NewMeta(41, 2, 20))
	assert.Equal(t, Meta{Total: 0, Page: 1, Limit: 20, TotalPages: 0}, NewMeta(0, 1, 20))
	assert.Equal(t, 1, NewMeta(20, 1, 20).TotalPages)
}

func TestAppointmentRequestApplyDefaults(t *testing.T) {
	var a Appointment
	AppointmentRequest{PatientID: 1, DoctorID: 2, ScheduledAt: time.Now()}.Apply(&a)
	assert.Equal(t, DefaultAppointmentMinutes, a.DurationMinutes)
	assert.Equal(t, AppointmentScheduled, a.Status)
}
