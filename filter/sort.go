package filter

import (
	"cmp"
	"slices"
	"strings"

	"github.com/lizet96/frontdesk/models"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection reads "desc" (any case) as Desc and anything else as Asc
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, string(Desc)) {
		return Desc
	}
	return Asc
}

// Sort returns a sorted copy of items. Equal elements keep their order in
// both directions.
func Sort[T any](items []T, compare func(a, b T) int, dir Direction) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		if dir == Desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return out
}

var priorityRank = map[models.QueuePriority]int{
	models.PriorityUrgent: 0,
	models.PriorityNormal: 1,
}

// QueueComparator returns the ordering for field: number, checkedInAt,
// status, priority or patient. Unknown fields fall back to number.
func QueueComparator(field string) func(a, b models.QueueEntry) int {
	switch field {
	case "checkedInAt":
		return func(a, b models.QueueEntry) int { return a.CheckedInAt.Compare(b.CheckedInAt) }
	case "status":
		return func(a, b models.QueueEntry) int { return cmp.Compare(a.Status, b.Status) }
	case "priority":
		return func(a, b models.QueueEntry) int {
			return cmp.Compare(priorityRank[a.Priority], priorityRank[b.Priority])
		}
	case "patient":
		return func(a, b models.QueueEntry) int { return cmp.Compare(patientName(a.Patient), patientName(b.Patient)) }
	}
	return func(a, b models.QueueEntry) int { return cmp.Compare(a.Number, b.Number) }
}

// AppointmentComparator orders by scheduledAt (default), status or patient
func AppointmentComparator(field string) func(a, b models.Appointment) int {
	switch field {
	case "status":
		return func(a, b models.Appointment) int { return cmp.Compare(a.Status, b.Status) }
	case "patient":
		return func(a, b models.Appointment) int { return cmp.Compare(patientName(a.Patient), patientName(b.Patient)) }
	}
	return func(a, b models.Appointment) int { return a.ScheduledAt.Compare(b.ScheduledAt) }
}

// DoctorComparator orders by name (default), specialty or status
func DoctorComparator(field string) func(a, b models.Doctor) int {
	switch field {
	case "specialty":
		return func(a, b models.Doctor) int { return cmp.Compare(Fold(a.Specialty), Fold(b.Specialty)) }
	case "status":
		return func(a, b models.Doctor) int { return cmp.Compare(a.Status, b.Status) }
	}
	return func(a, b models.Doctor) int { return cmp.Compare(Fold(a.Name), Fold(b.Name)) }
}

// PatientComparator orders by last name (default), first name, MRN or createdAt
func PatientComparator(field string) func(a, b models.Patient) int {
	switch field {
	case "firstName":
		return func(a, b models.Patient) int { return cmp.Compare(Fold(a.FirstName), Fold(b.FirstName)) }
	case "medicalRecordNumber":
		return func(a, b models.Patient) int { return cmp.Compare(a.MedicalRecordNumber, b.MedicalRecordNumber) }
	case "createdAt":
		return func(a, b models.Patient) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
	return func(a, b models.Patient) int {
		if c := cmp.Compare(Fold(a.LastName), Fold(b.LastName)); c != 0 {
			return c
		}
		return cmp.Compare(Fold(a.FirstName), Fold(b.FirstName))
	}
}

func patientName(p *models.Patient) string {
	if p == nil {
		return ""
	}
	return Fold(p.LastName + " " + p.FirstName)
}
