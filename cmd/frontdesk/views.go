package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lizet96/frontdesk/client"
	"github.com/lizet96/frontdesk/filter"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/optimistic"
	"github.com/lizet96/frontdesk/uistate"
)

const (
	appointmentsHelp = "commands: cancel ID, checkin ID, noshow ID, refresh, quit"
	doctorsHelp      = "commands: status ID available|busy|on_break|off_duty, refresh, quit"
	readOnlyHelp     = "commands: refresh, quit"
)

// appointmentsView is the day's appointment book
func (fd *frontdesk) appointmentsView(day string, interval time.Duration) watchView {
	return watchView{
		key:      "appointments?from=" + day + "&to=" + day,
		interval: interval,
		fetch: func(ctx context.Context) (interface{}, error) {
			page, err := fd.api.ListAppointments(ctx, client.AppointmentListOptions{
				ListOptions: client.ListOptions{Limit: 100},
				From:        day,
				To:          day,
			})
			if err != nil {
				return nil, err
			}
			return page.Items, nil
		},
		draw: func(w io.Writer, data interface{}, state uistate.State) {
			appts, _ := data.([]models.Appointment)
			appts = filter.Sort(appts, filter.AppointmentComparator("scheduledAt"), filter.Asc)
			viewHeader(w, "Appointments for "+day, len(appts), state)
			renderAppointments(w, appts)
		},
		help:    appointmentsHelp,
		command: fd.appointmentAction,
	}
}

func (fd *frontdesk) appointmentAction(ctx context.Context, ws *watchSession, fields []string) error {
	if len(fields) < 2 {
		return badUsage("unknown command %q", fields[0])
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return badUsage("bad appointment id %q", fields[1])
	}
	appts, _ := ws.data().([]models.Appointment)
	if _, found := findByID(appts, uint(id)); !found {
		return badUsage("appointment %d is not in the view", id)
	}

	m := optimistic.Mutation{
		Key:        ws.key,
		Revert:     optimistic.RevertItems[models.Appointment](uint(id)),
		Reconcile:  optimistic.Reconciled(optimistic.ReplaceItem[models.Appointment]),
		Invalidate: []string{"queue", "dashboard"},
	}
	setStatus := func(status models.AppointmentStatus) {
		m.Apply = optimistic.Items(func(list []models.Appointment) []models.Appointment {
			return optimistic.PatchItem(list, uint(id), func(a *models.Appointment) { a.Status = status })
		})
	}

	switch fields[0] {
	case "cancel":
		setStatus(models.AppointmentCancelled)
		m.Call = func(ctx context.Context) (interface{}, error) { return fd.api.CancelAppointment(ctx, uint(id)) }
		m.SuccessMessage = fmt.Sprintf("Appointment %d cancelled", id)
	case "noshow":
		setStatus(models.AppointmentNoShow)
		m.Call = func(ctx context.Context) (interface{}, error) {
			return fd.api.UpdateAppointmentStatus(ctx, uint(id), models.AppointmentNoShow)
		}
		m.SuccessMessage = fmt.Sprintf("Appointment %d marked no-show", id)
	case "checkin":
		setStatus(models.AppointmentCheckedIn)
		m.Call = func(ctx context.Context) (interface{}, error) {
			resp, err := fd.api.CheckInAppointment(ctx, uint(id))
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
		m.Reconcile = func(data, result interface{}) interface{} {
			list, _ := data.([]models.Appointment)
			if resp, ok := result.(*models.AppointmentCheckInResponse); ok {
				return optimistic.ReplaceItem(list, resp.Appointment)
			}
			return data
		}
		m.OnSuccess = func(result interface{}) {
			if resp, ok := result.(*models.AppointmentCheckInResponse); ok {
				ws.toasts.Success("Checked in", fmt.Sprintf("ticket #%d", resp.QueueEntry.Number))
			}
		}
	default:
		return badUsage("unknown command %q", fields[0])
	}

	_, err = ws.mutator.Mutate(ctx, m)
	return err
}

// doctorsView shows who is free right now
func (fd *frontdesk) doctorsView(interval time.Duration) watchView {
	return watchView{
		key:      "doctors",
		interval: interval,
		fetch: func(ctx context.Context) (interface{}, error) {
			page, err := fd.api.ListDoctors(ctx, client.DoctorListOptions{ListOptions: client.ListOptions{Limit: 100}})
			if err != nil {
				return nil, err
			}
			return page.Items, nil
		},
		draw: func(w io.Writer, data interface{}, state uistate.State) {
			doctors, _ := data.([]models.Doctor)
			doctors = filter.Sort(doctors, filter.DoctorComparator("name"), filter.Asc)
			viewHeader(w, "Doctors", len(doctors), state)
			renderDoctors(w, doctors)
		},
		help:    doctorsHelp,
		command: fd.doctorAction,
	}
}

func (fd *frontdesk) doctorAction(ctx context.Context, ws *watchSession, fields []string) error {
	if fields[0] != "status" || len(fields) < 3 {
		return badUsage("unknown command %q", fields[0])
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return badUsage("bad doctor id %q", fields[1])
	}
	status := models.DoctorStatus(fields[2])
	if !status.Valid() {
		return badUsage("unknown doctor status %q", status)
	}

	_, err = ws.mutator.Mutate(ctx, optimistic.Mutation{
		Key: ws.key,
		Apply: optimistic.Items(func(list []models.Doctor) []models.Doctor {
			return optimistic.PatchItem(list, uint(id), func(d *models.Doctor) { d.Status = status })
		}),
		Revert: optimistic.RevertItems[models.Doctor](uint(id)),
		Call: func(ctx context.Context) (interface{}, error) {
			return fd.api.UpdateDoctorStatus(ctx, uint(id), status)
		},
		Reconcile:      optimistic.Reconciled(optimistic.ReplaceItem[models.Doctor]),
		Invalidate:     []string{"dashboard"},
		SuccessMessage: fmt.Sprintf("Doctor %d is now %s", id, status),
	})
	return err
}

// patientsView is a read-only live list, narrowed by the server-side search
func (fd *frontdesk) patientsView(search string, interval time.Duration) watchView {
	return watchView{
		key:      "patients?search=" + search,
		interval: interval,
		fetch: func(ctx context.Context) (interface{}, error) {
			page, err := fd.api.ListPatients(ctx, client.ListOptions{Limit: 100, Search: search})
			if err != nil {
				return nil, err
			}
			return page.Items, nil
		},
		draw: func(w io.Writer, data interface{}, state uistate.State) {
			patients, _ := data.([]models.Patient)
			patients = filter.Sort(patients, filter.PatientComparator(""), filter.Asc)
			viewHeader(w, "Patients", len(patients), state)
			renderPatients(w, patients)
		},
		help: readOnlyHelp,
	}
}

// statsView keeps the dashboard numbers current
func (fd *frontdesk) statsView(interval time.Duration) watchView {
	return watchView{
		key:      "dashboard/stats",
		interval: interval,
		fetch: func(ctx context.Context) (interface{}, error) {
			return fd.api.DashboardStats(ctx)
		},
		draw: func(w io.Writer, data interface{}, state uistate.State) {
			stats, ok := data.(*models.DashboardStats)
			if !ok {
				return
			}
			fmt.Fprintf(w, "\nToday (synced %s)\n", syncLabel(state))
			renderStats(w, stats)
		},
		help: readOnlyHelp,
	}
}

func findByID[T optimistic.Item](items []T, id uint) (T, bool) {
	for _, it := range items {
		if it.GetID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}
