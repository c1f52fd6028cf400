package repository

import (
	"context"
	"time"

	"github.com/lizet96/frontdesk/models"
	"gorm.io/gorm"
)

type DashboardRepository struct {
	db *gorm.DB
}

// Stats aggregates the front desk counters for the day containing now
func (r *DashboardRepository) Stats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	patients := &PatientRepository{db: r.db}
	doctors := &DoctorRepository{db: r.db}
	queue := &QueueRepository{db: r.db}
	appointments := &AppointmentRepository{db: r.db}

	today := now.Format(QueueDateLayout)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	stats := models.DashboardStats{GeneratedAt: now}
	var err error

	if stats.TotalPatients, err = patients.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Waiting, err = queue.CountByStatus(ctx, today, models.QueueWaiting); err != nil {
		return nil, err
	}
	if stats.InProgress, err = queue.CountByStatus(ctx, today, models.QueueInProgress); err != nil {
		return nil, err
	}
	if stats.CompletedToday, err = queue.CountByStatus(ctx, today, models.QueueCompleted); err != nil {
		return nil, err
	}
	if stats.AppointmentsToday, err = appointments.CountBetween(ctx, dayStart, dayEnd); err != nil {
		return nil, err
	}
	if stats.UpcomingAppointments, err = appointments.CountUpcoming(ctx, now); err != nil {
		return nil, err
	}
	if stats.AvailableDoctors, stats.TotalDoctors, err = doctors.CountByStatus(ctx, models.DoctorAvailable); err != nil {
		return nil, err
	}
	if stats.AverageWaitMinutes, err = queue.AverageWait(ctx, today); err != nil {
		return nil, err
	}
	return &stats, nil
}
