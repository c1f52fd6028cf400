package repository

import (
	"context"
	"time"

	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// QueueDateLayout is the layout of QueueEntry.QueueDate
const QueueDateLayout = "2006-01-02"

// checkInAttempts bounds the retries when two check-ins race for a ticket
const checkInAttempts = 3

var activeQueueStatuses = []models.QueueStatus{
	models.QueueWaiting, models.QueueCalled, models.QueueInProgress,
}

// urgentFirst puts urgent entries ahead of normal ones
const urgentFirst = "CASE WHEN priority = 'urgent' THEN 0 ELSE 1 END"

type QueueRepository struct {
	db *gorm.DB
}

// QueueFilter narrows a queue listing. Date defaults to every day; Active
// keeps only entries still waiting, called or in progress.
type QueueFilter struct {
	ListParams
	Date     string
	Status   models.QueueStatus
	Priority models.QueuePriority
	DoctorID *uint
	Active   bool
}

var queueSorts = map[string]string{
	"number":      "number",
	"checkedInAt": "checked_in_at",
	"status":      "status",
	"priority":    "priority",
}

// List returns entries ordered urgent first then by ticket unless a sort
// field is requested. Search matches patient names and the ticket number.
func (r *QueueRepository) List(ctx context.Context, f QueueFilter) ([]models.QueueEntry, int64, error) {
	f.Normalize()
	q := r.db.WithContext(ctx).Model(&models.QueueEntry{})
	if f.Date != "" {
		q = q.Where("queue_date = ?", f.Date)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	} else if f.Active {
		q = q.Where("status IN ?", activeQueueStatuses)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.DoctorID != nil {
		q = q.Where("doctor_id = ?", *f.DoctorID)
	}
	if f.Search != "" {
		patients := searchScope(f.Search, "first_name", "last_name", "medical_record_number")(
			r.db.Model(&models.Patient{}).Select("id"))
		q = q.Where("(patient_id IN (?) OR CAST(number AS TEXT) = ?)", patients, f.Search)
	}

	orders := []interface{}{urgentFirst, "number"}
	if _, ok := queueSorts[f.Sort]; ok {
		orders = []interface{}{f.orderBy(queueSorts, "number", false), "id"}
	}

	var entries []models.QueueEntry
	total, err := paginate(q, f.ListParams, orders, &entries, "Patient", "Doctor")
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list queue")
	}
	return entries, total, nil
}

func (r *QueueRepository) Get(ctx context.Context, id uint) (*models.QueueEntry, error) {
	return getQueueEntry(r.db.WithContext(ctx), id)
}

func getQueueEntry(db *gorm.DB, id uint) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := db.Preload("Patient").Preload("Doctor").First(&entry, id).Error; err != nil {
		return nil, translate(err, "queue entry")
	}
	return &entry, nil
}

// CheckIn adds entry to the queue of entry.CheckedInAt's day with the next
// ticket number. Patient and doctor must exist.
func (r *QueueRepository) CheckIn(ctx context.Context, entry *models.QueueEntry) error {
	return withTicketRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := exists(tx, &models.Patient{}, entry.PatientID, "patient"); err != nil {
				return err
			}
			if entry.DoctorID != nil {
				if err := exists(tx, &models.Doctor{}, *entry.DoctorID, "doctor"); err != nil {
					return err
				}
			}
			return insertQueueEntry(tx, entry)
		})
	})
}

// insertQueueEntry numbers entry after the last ticket of its day and inserts it
func insertQueueEntry(tx *gorm.DB, entry *models.QueueEntry) error {
	entry.ID = 0
	entry.QueueDate = entry.CheckedInAt.Format(QueueDateLayout)
	if entry.Priority == "" {
		entry.Priority = models.PriorityNormal
	}
	if entry.Status == "" {
		entry.Status = models.QueueWaiting
	}

	var last int
	err := tx.Model(&models.QueueEntry{}).
		Where("queue_date = ?", entry.QueueDate).
		Select("COALESCE(MAX(number), 0)").
		Scan(&last).Error
	if err != nil {
		return errors.Wrap(err, "failed to read last ticket")
	}
	entry.Number = last + 1

	return tx.Create(entry).Error
}

// withTicketRetry reruns fn while it fails on the per-day ticket constraint
func withTicketRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < checkInAttempts; attempt++ {
		err = fn()
		if !isDuplicate(err) {
			return translate(err, "failed to check in")
		}
	}
	return errors.Wrap(ErrConflict, "ticket number taken, try again")
}

// UpdateStatus moves an entry along its lifecycle. Completing an entry also
// completes its appointment. The doctor goes busy while a patient is in
// progress and back to available afterwards.
func (r *QueueRepository) UpdateStatus(ctx context.Context, id uint, next models.QueueStatus, at time.Time) (*models.QueueEntry, error) {
	var updated *models.QueueEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.QueueEntry
		if err := tx.First(&entry, id).Error; err != nil {
			return translate(err, "queue entry")
		}
		if !entry.Status.CanTransition(next) {
			return errors.Wrapf(ErrInvalidTransition, "queue entry %d: %s -> %s", id, entry.Status, next)
		}

		previous := entry.Status
		entry.MarkStatus(next, at)
		if err := tx.Save(&entry).Error; err != nil {
			return errors.Wrap(err, "failed to save queue entry")
		}

		if next == models.QueueCompleted && entry.AppointmentID != nil {
			err := tx.Model(&models.Appointment{}).
				Where("id = ? AND status = ?", *entry.AppointmentID, models.AppointmentCheckedIn).
				Update("status", models.AppointmentCompleted).Error
			if err != nil {
				return errors.Wrap(err, "failed to complete appointment")
			}
		}

		if entry.DoctorID != nil {
			var status models.DoctorStatus
			switch {
			case next == models.QueueInProgress:
				status = models.DoctorBusy
			case previous == models.QueueInProgress:
				status = models.DoctorAvailable
			}
			if status != "" {
				err := tx.Model(&models.Doctor{}).Where("id = ?", *entry.DoctorID).Update("status", status).Error
				if err != nil {
					return errors.Wrap(err, "failed to update doctor status")
				}
			}
		}

		var err error
		updated, err = getQueueEntry(tx, id)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to update queue entry")
	}
	return updated, nil
}

// CallNext calls the next waiting patient of the day: urgent first, then in
// check-in order. With a doctor, only entries for that doctor or for no
// doctor in particular are considered, and the entry is assigned to them.
func (r *QueueRepository) CallNext(ctx context.Context, doctorID *uint, at time.Time) (*models.QueueEntry, error) {
	var called *models.QueueEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ? AND queue_date = ?", models.QueueWaiting, at.Format(QueueDateLayout))
		if doctorID != nil {
			if err := exists(tx, &models.Doctor{}, *doctorID, "doctor"); err != nil {
				return err
			}
			q = q.Where("(doctor_id = ? OR doctor_id IS NULL)", *doctorID)
		}

		var entry models.QueueEntry
		err := q.Order(urgentFirst).Order("checked_in_at").Order("number").First(&entry).Error
		if err != nil {
			return translate(err, "no patients waiting")
		}

		if doctorID != nil && entry.DoctorID == nil {
			id := *doctorID
			entry.DoctorID = &id
		}
		entry.MarkStatus(models.QueueCalled, at)
		if err := tx.Save(&entry).Error; err != nil {
			return errors.Wrap(err, "failed to save queue entry")
		}

		called, err = getQueueEntry(tx, entry.ID)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to call next patient")
	}
	return called, nil
}

func (r *QueueRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.QueueEntry{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete queue entry")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "queue entry %d", id)
	}
	return nil
}

// CountByStatus counts entries of date (every day when empty) in status
func (r *QueueRepository) CountByStatus(ctx context.Context, date string, status models.QueueStatus) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.QueueEntry{}).Where("status = ?", status)
	if date != "" {
		q = q.Where("queue_date = ?", date)
	}
	var n int64
	err := q.Count(&n).Error
	return n, errors.Wrap(err, "failed to count queue entries")
}

// AverageWait is the mean time between check-in and call, in minutes, of the
// entries of date that have been called
func (r *QueueRepository) AverageWait(ctx context.Context, date string) (float64, error) {
	var entries []models.QueueEntry
	err := r.db.WithContext(ctx).
		Select("checked_in_at", "called_at").
		Where("queue_date = ? AND called_at IS NOT NULL", date).
		Find(&entries).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to load waits")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var sum time.Duration
	for _, e := range entries {
		sum += e.CalledAt.Sub(e.CheckedInAt)
	}
	return sum.Minutes() / float64(len(entries)), nil
}
