package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type PatientRepository struct {
	db *gorm.DB
}

var patientSorts = map[string]string{
	"firstName":           "first_name",
	"lastName":            "last_name",
	"medicalRecordNumber": "medical_record_number",
	"createdAt":           "created_at",
}

// List returns one page of patients matching p.Search on name, record
// number, phone or email
func (r *PatientRepository) List(ctx context.Context, p ListParams) ([]models.Patient, int64, error) {
	p.Normalize()
	q := r.db.WithContext(ctx).Model(&models.Patient{}).
		Scopes(searchScope(p.Search, "first_name", "last_name", "medical_record_number", "phone", "email"))

	var patients []models.Patient
	total, err := paginate(q, p, []interface{}{p.orderBy(patientSorts, "last_name", false), "id"}, &patients)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list patients")
	}
	return patients, total, nil
}

func (r *PatientRepository) Get(ctx context.Context, id uint) (*models.Patient, error) {
	var patient models.Patient
	if err := r.db.WithContext(ctx).First(&patient, id).Error; err != nil {
		return nil, translate(err, "patient")
	}
	return &patient, nil
}

// Create inserts p, generating a medical record number when none is given
func (r *PatientRepository) Create(ctx context.Context, p *models.Patient) error {
	if p.MedicalRecordNumber == "" {
		p.MedicalRecordNumber = NewMedicalRecordNumber()
	}
	return translate(r.db.WithContext(ctx).Create(p).Error, "failed to create patient")
}

func (r *PatientRepository) Update(ctx context.Context, p *models.Patient) error {
	return translate(r.db.WithContext(ctx).Save(p).Error, "failed to update patient")
}

// Delete removes the patient. Patients with queue entries or appointments are
// kept and ErrConflict is returned.
func (r *PatientRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := exists(tx, &models.Patient{}, id, "patient"); err != nil {
			return err
		}

		var visits int64
		if err := tx.Model(&models.QueueEntry{}).Where("patient_id = ?", id).Count(&visits).Error; err != nil {
			return errors.Wrap(err, "failed to count queue entries")
		}
		if visits == 0 {
			if err := tx.Model(&models.Appointment{}).Where("patient_id = ?", id).Count(&visits).Error; err != nil {
				return errors.Wrap(err, "failed to count appointments")
			}
		}
		if visits > 0 {
			return errors.Wrapf(ErrConflict, "patient %d has visits on record", id)
		}

		return translate(tx.Delete(&models.Patient{}, id).Error, "failed to delete patient")
	})
}

func (r *PatientRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Patient{}).Count(&n).Error
	return n, errors.Wrap(err, "failed to count patients")
}

// NewMedicalRecordNumber returns a random record number such as MRN-1A2B3C4D
func NewMedicalRecordNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "MRN-" + strings.ToUpper(id[:8])
}
