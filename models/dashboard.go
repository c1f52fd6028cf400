package models

import (
	"time"
)

// DashboardStats is the payload of GET /dashboard/stats
type DashboardStats struct {
	TotalPatients        int64     `json:"totalPatients"`
	Waiting              int64     `json:"waiting"`
	InProgress           int64     `json:"inProgress"`
	CompletedToday       int64     `json:"completedToday"`
	AppointmentsToday    int64     `json:"appointmentsToday"`
	UpcomingAppointments int64     `json:"upcomingAppointments"`
	AvailableDoctors     int64     `json:"availableDoctors"`
	TotalDoctors         int64     `json:"totalDoctors"`
	AverageWaitMinutes   float64   `json:"averageWaitMinutes"`
	GeneratedAt          time.Time `json:"generatedAt"`
}
