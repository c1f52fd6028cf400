package repository

import (
	"context"
	"strings"
	"time"

	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxAppointmentMinutes bounds how far back an overlapping appointment can start
const maxAppointmentMinutes = 480

var nonBlockingAppointment = []models.AppointmentStatus{
	models.AppointmentCancelled, models.AppointmentNoShow,
}

type AppointmentRepository struct {
	db *gorm.DB
}

// AppointmentFilter narrows an appointment listing. From and To bound
// ScheduledAt (From inclusive, To exclusive).
type AppointmentFilter struct {
	ListParams
	Status    models.AppointmentStatus
	DoctorID  *uint
	PatientID *uint
	From      *time.Time
	To        *time.Time
}

var appointmentSorts = map[string]string{
	"scheduledAt": "scheduled_at",
	"status":      "status",
	"createdAt":   "created_at",
}

func (r *AppointmentRepository) List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, int64, error) {
	f.Normalize()
	q := r.db.WithContext(ctx).Model(&models.Appointment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DoctorID != nil {
		q = q.Where("doctor_id = ?", *f.DoctorID)
	}
	if f.PatientID != nil {
		q = q.Where("patient_id = ?", *f.PatientID)
	}
	if f.From != nil {
		q = q.Where("scheduled_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("scheduled_at < ?", f.To.UTC())
	}
	if f.Search != "" {
		patients := searchScope(f.Search, "first_name", "last_name", "medical_record_number")(
			r.db.Model(&models.Patient{}).Select("id"))
		q = q.Where("(patient_id IN (?) OR LOWER(reason) LIKE ?)", patients, "%"+strings.ToLower(f.Search)+"%")
	}

	var appointments []models.Appointment
	orders := []interface{}{f.orderBy(appointmentSorts, "scheduled_at", false), "id"}
	total, err := paginate(q, f.ListParams, orders, &appointments, "Patient", "Doctor")
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list appointments")
	}
	return appointments, total, nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id uint) (*models.Appointment, error) {
	return getAppointment(r.db.WithContext(ctx), id)
}

func getAppointment(db *gorm.DB, id uint) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := db.Preload("Patient").Preload("Doctor").First(&appointment, id).Error; err != nil {
		return nil, translate(err, "appointment")
	}
	return &appointment, nil
}

// Create books an appointment. Patient and doctor must exist and the doctor must be free
// for the whole slot.
func (r *AppointmentRepository) Create(ctx context.Context, a *models.Appointment) error {
	a.ScheduledAt = a.ScheduledAt.UTC()
	if a.Status == "" {
		a.Status = models.AppointmentScheduled
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkParticipants(tx, a); err != nil {
			return err
		}
		if err := checkOverlap(tx, a); err != nil {
			return err
		}
		return tx.Create(a).Error
	})
	return translate(err, "failed to create appointment")
}

// Update rewrites a booked appointment. Only scheduled or confirmed
// appointments can be edited.
func (r *AppointmentRepository) Update(ctx context.Context, id uint, req models.AppointmentRequest) (*models.Appointment, error) {
	var updated *models.Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Appointment
		if err := tx.First(&a, id).Error; err != nil {
			return translate(err, "appointment")
		}
		if a.Status != models.AppointmentScheduled && a.Status != models.AppointmentConfirmed {
			return errors.Wrapf(ErrInvalidTransition, "appointment %d is %s", id, a.Status)
		}

		req.Apply(&a)
		a.ScheduledAt = a.ScheduledAt.UTC()
		if err := checkParticipants(tx, &a); err != nil {
			return err
		}
		if err := checkOverlap(tx, &a); err != nil {
			return err
		}
		if err := tx.Save(&a).Error; err != nil {
			return err
		}

		var err error
		updated, err = getAppointment(tx, id)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to update appointment")
	}
	return updated, nil
}

// UpdateStatus moves an appointment along its lifecycle
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id uint, next models.AppointmentStatus) (*models.Appointment, error) {
	var updated *models.Appointment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Appointment
		if err := tx.First(&a, id).Error; err != nil {
			return translate(err, "appointment")
		}
		if !a.Status.CanTransition(next) {
			return errors.Wrapf(ErrInvalidTransition, "appointment %d: %s -> %s", id, a.Status, next)
		}
		if err := tx.Model(&a).Update("status", next).Error; err != nil {
			return err
		}

		var err error
		updated, err = getAppointment(tx, id)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to update appointment status")
	}
	return updated, nil
}

// Cancel is UpdateStatus to cancelled
func (r *AppointmentRepository) Cancel(ctx context.Context, id uint) (*models.Appointment, error) {
	return r.UpdateStatus(ctx, id, models.AppointmentCancelled)
}

// CheckIn marks the appointment checked in and queues its patient for the
// appointment's doctor in one transaction
func (r *AppointmentRepository) CheckIn(ctx context.Context, id uint, at time.Time) (*models.AppointmentCheckInResponse, error) {
	var resp *models.AppointmentCheckInResponse
	err := withTicketRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var a models.Appointment
			if err := tx.First(&a, id).Error; err != nil {
				return translate(err, "appointment")
			}
			if !a.Status.CanTransition(models.AppointmentCheckedIn) {
				return errors.Wrapf(ErrInvalidTransition, "appointment %d is %s", id, a.Status)
			}
			if err := tx.Model(&a).Update("status", models.AppointmentCheckedIn).Error; err != nil {
				return err
			}

			doctorID, appointmentID := a.DoctorID, a.ID
			entry := models.QueueEntry{
				PatientID:     a.PatientID,
				DoctorID:      &doctorID,
				AppointmentID: &appointmentID,
				Priority:      models.PriorityNormal,
				Status:        models.QueueWaiting,
				Reason:        a.Reason,
				CheckedInAt:   at,
			}
			if err := insertQueueEntry(tx, &entry); err != nil {
				return err
			}

			booked, err := getAppointment(tx, id)
			if err != nil {
				return err
			}
			queued, err := getQueueEntry(tx, entry.ID)
			if err != nil {
				return err
			}
			resp = &models.AppointmentCheckInResponse{Appointment: *booked, QueueEntry: *queued}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CountBetween counts blocking appointments scheduled in [from, to)
func (r *AppointmentRepository) CountBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("scheduled_at >= ? AND scheduled_at < ?", from.UTC(), to.UTC()).
		Where("status NOT IN ?", nonBlockingAppointment).
		Count(&n).Error
	return n, errors.Wrap(err, "failed to count appointments")
}

// CountUpcoming counts scheduled or confirmed appointments from now on
func (r *AppointmentRepository) CountUpcoming(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("scheduled_at >= ?", now.UTC()).
		Where("status IN ?", []models.AppointmentStatus{models.AppointmentScheduled, models.AppointmentConfirmed}).
		Count(&n).Error
	return n, errors.Wrap(err, "failed to count upcoming appointments")
}

func checkParticipants(tx *gorm.DB, a *models.Appointment) error {
	if err := exists(tx, &models.Patient{}, a.PatientID, "patient"); err != nil {
		return err
	}
	return lockDoctor(tx, a.DoctorID)
}

// lockDoctor holds the doctor row until the transaction ends, so bookings for
// one doctor run their overlap check one at a time
func lockDoctor(tx *gorm.DB, id uint) error {
	var doctor models.Doctor
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&doctor, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(ErrNotFound, "doctor %d", id)
	}
	return errors.Wrap(err, "failed to lock doctor")
}

// checkOverlap returns ErrConflict when the doctor already holds a blocking
// appointment sharing any instant with a
func checkOverlap(tx *gorm.DB, a *models.Appointment) error {
	windowStart := a.ScheduledAt.Add(-maxAppointmentMinutes * time.Minute)

	var booked []models.Appointment
	err := tx.Where("doctor_id = ? AND id <> ?", a.DoctorID, a.ID).
		Where("status NOT IN ?", nonBlockingAppointment).
		Where("scheduled_at > ? AND scheduled_at < ?", windowStart, a.EndsAt()).
		Find(&booked).Error
	if err != nil {
		return errors.Wrap(err, "failed to load doctor schedule")
	}

	for _, other := range booked {
		if a.Overlaps(other) {
			return errors.Wrapf(ErrConflict, "doctor %d already has appointment %d at %s",
				a.DoctorID, other.ID, other.ScheduledAt.Format(time.RFC3339))
		}
	}
	return nil
}
