package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lizet96/frontdesk/models"
)

func table(w io.Writer, header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

func row(tw *tabwriter.Writer, cols ...interface{}) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(parts, "\t"))
}

func patientName(p *models.Patient) string {
	if p == nil {
		return "-"
	}
	return p.FullName()
}

func doctorName(d *models.Doctor) string {
	if d == nil {
		return "-"
	}
	return d.Name
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// waited is how long e has been in the queue, in whole minutes
func waited(e models.QueueEntry, now time.Time) string {
	end := now
	if e.CalledAt != nil {
		end = *e.CalledAt
	}
	if e.CheckedInAt.IsZero() || end.Before(e.CheckedInAt) {
		return "-"
	}
	return fmt.Sprintf("%dm", int(end.Sub(e.CheckedInAt).Minutes()))
}

func renderQueue(w io.Writer, entries []models.QueueEntry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "The queue is empty.")
		return
	}
	tw := table(w, "ID", "#", "PATIENT", "PRIORITY", "STATUS", "DOCTOR", "WAIT")
	for _, e := range entries {
		row(tw, e.ID, e.Number, patientName(e.Patient), e.Priority, e.Status, doctorName(e.Doctor), waited(e, now))
	}
	tw.Flush()
}

func renderAppointments(w io.Writer, appts []models.Appointment) {
	if len(appts) == 0 {
		fmt.Fprintln(w, "No appointments.")
		return
	}
	tw := table(w, "ID", "WHEN", "MIN", "PATIENT", "DOCTOR", "STATUS", "REASON")
	for _, a := range appts {
		row(tw, a.ID, a.ScheduledAt.Local().Format("Mon 02 Jan 15:04"), a.DurationMinutes,
			patientName(a.Patient), doctorName(a.Doctor), a.Status, orDash(a.Reason))
	}
	tw.Flush()
}

func renderDoctors(w io.Writer, doctors []models.Doctor) {
	if len(doctors) == 0 {
		fmt.Fprintln(w, "No doctors.")
		return
	}
	tw := table(w, "ID", "NAME", "SPECIALTY", "ROOM", "STATUS")
	for _, d := range doctors {
		row(tw, d.ID, d.Name, d.Specialty, orDash(d.Room), d.Status)
	}
	tw.Flush()
}

func renderPatients(w io.Writer, patients []models.Patient) {
	if len(patients) == 0 {
		fmt.Fprintln(w, "No patients.")
		return
	}
	tw := table(w, "ID", "MRN", "NAME", "BORN", "PHONE", "EMAIL")
	for _, p := range patients {
		row(tw, p.ID, p.MedicalRecordNumber, p.FullName(), orDash(p.DateOfBirth), orDash(p.Phone), orDash(p.Email))
	}
	tw.Flush()
}

func renderStats(w io.Writer, s *models.DashboardStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row(tw, "Patients", s.TotalPatients)
	row(tw, "Waiting", s.Waiting)
	row(tw, "In progress", s.InProgress)
	row(tw, "Completed today", s.CompletedToday)
	row(tw, "Appointments today", s.AppointmentsToday)
	row(tw, "Upcoming appointments", s.UpcomingAppointments)
	row(tw, "Doctors available", fmt.Sprintf("%d of %d", s.AvailableDoctors, s.TotalDoctors))
	row(tw, "Average wait", fmt.Sprintf("%.0f min", s.AverageWaitMinutes))
	tw.Flush()
}
