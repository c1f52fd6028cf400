package repository

import (
	"context"

	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type DoctorRepository struct {
	db *gorm.DB
}

// DoctorFilter narrows a doctor listing
type DoctorFilter struct {
	ListParams
	Status    models.DoctorStatus
	Specialty string
}

var doctorSorts = map[string]string{
	"name":      "name",
	"specialty": "specialty",
	"status":    "status",
	"room":      "room",
	"createdAt": "created_at",
}

func (r *DoctorRepository) List(ctx context.Context, f DoctorFilter) ([]models.Doctor, int64, error) {
	f.Normalize()
	q := r.db.WithContext(ctx).Model(&models.Doctor{}).
		Scopes(searchScope(f.Search, "name", "specialty", "email", "room"))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Specialty != "" {
		q = q.Where("LOWER(specialty) = LOWER(?)", f.Specialty)
	}

	var doctors []models.Doctor
	total, err := paginate(q, f.ListParams, []interface{}{f.orderBy(doctorSorts, "name", false), "id"}, &doctors)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list doctors")
	}
	return doctors, total, nil
}

func (r *DoctorRepository) Get(ctx context.Context, id uint) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := r.db.WithContext(ctx).First(&doctor, id).Error; err != nil {
		return nil, translate(err, "doctor")
	}
	return &doctor, nil
}

func (r *DoctorRepository) Create(ctx context.Context, d *models.Doctor) error {
	if d.Status == "" {
		d.Status = models.DoctorAvailable
	}
	return translate(r.db.WithContext(ctx).Create(d).Error, "failed to create doctor")
}

func (r *DoctorRepository) Update(ctx context.Context, d *models.Doctor) error {
	return translate(r.db.WithContext(ctx).Save(d).Error, "failed to update doctor")
}

// UpdateStatus sets the availability of a doctor
func (r *DoctorRepository) UpdateStatus(ctx context.Context, id uint, status models.DoctorStatus) (*models.Doctor, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(ErrInvalidTransition, "unknown doctor status %q", status)
	}
	res := r.db.WithContext(ctx).Model(&models.Doctor{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to update doctor status")
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrapf(ErrNotFound, "doctor %d", id)
	}
	return r.Get(ctx, id)
}

// Delete removes a doctor that has no pending appointments and no patients
// in the queue
func (r *DoctorRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Doctor{}, id, "doctor"); err != nil {
			return err
		}

		var pending int64
		err := tx.Model(&models.Appointment{}).
			Where("doctor_id = ? AND status IN ?", id, []models.AppointmentStatus{
				models.AppointmentScheduled, models.AppointmentConfirmed, models.AppointmentCheckedIn,
			}).Count(&pending).Error
		if err != nil {
			return errors.Wrap(err, "failed to count appointments")
		}
		if pending == 0 {
			err = tx.Model(&models.QueueEntry{}).
				Where("doctor_id = ? AND status IN ?", id, activeQueueStatuses).
				Count(&pending).Error
			if err != nil {
				return errors.Wrap(err, "failed to count queue entries")
			}
		}
		if pending > 0 {
			return errors.Wrapf(ErrConflict, "doctor %d has pending patients", id)
		}

		return translate(tx.Delete(&models.Doctor{}, id).Error, "failed to delete doctor")
	})
}

// CountByStatus returns how many doctors have the given status and how many
// doctors exist in total
func (r *DoctorRepository) CountByStatus(ctx context.Context, status models.DoctorStatus) (int64, int64, error) {
	db := r.db.WithContext(ctx)
	var matching, total int64
	if err := db.Model(&models.Doctor{}).Where("status = ?", status).Count(&matching).Error; err != nil {
		return 0, 0, errors.Wrap(err, "failed to count doctors")
	}
	if err := db.Model(&models.Doctor{}).Count(&total).Error; err != nil {
		return 0, 0, errors.Wrap(err, "failed to count doctors")
	}
	return matching, total, nil
}
