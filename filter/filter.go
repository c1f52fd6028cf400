// Package filter narrows and orders the lists the dashboard already fetched.
// Text matching ignores case and accents, so "jose" finds "José".
package filter

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/lizet96/frontdesk/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips its diacritics
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Contains reports whether query occurs in any of fields, ignoring case and
// accents. An empty query matches everything.
func Contains(query string, fields ...string) bool {
	q := Fold(query)
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(Fold(f), q) {
			return true
		}
	}
	return false
}

// Apply returns the items for which match is true, in order
func Apply[T any](items []T, match func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if match(it) {
			out = append(out, it)
		}
	}
	return out
}

type QueueFilter struct {
	Status   models.QueueStatus
	DoctorID uint
	Priority models.QueuePriority
	Search   string
}

func (f QueueFilter) Match(e models.QueueEntry) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.DoctorID != 0 && (e.DoctorID == nil || *e.DoctorID != f.DoctorID) {
		return false
	}
	if f.Priority != "" && e.Priority != f.Priority {
		return false
	}
	fields := []string{strconv.Itoa(e.Number)}
	if e.Patient != nil {
		fields = append(fields, e.Patient.FullName(), e.Patient.MedicalRecordNumber)
	}
	return Contains(f.Search, fields...)
}

// AppointmentFilter matches appointments scheduled in [From, To). Zero bounds
// are open.
type AppointmentFilter struct {
	Status   models.AppointmentStatus
	DoctorID uint
	From     time.Time
	To       time.Time
	Search   string
}

func (f AppointmentFilter) Match(a models.Appointment) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.DoctorID != 0 && a.DoctorID != f.DoctorID {
		return false
	}
	if !f.From.IsZero() && a.ScheduledAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.ScheduledAt.Before(f.To) {
		return false
	}
	fields := []string{a.Reason}
	if a.Patient != nil {
		fields = append(fields, a.Patient.FullName(), a.Patient.MedicalRecordNumber)
	}
	if a.Doctor != nil {
		fields = append(fields, a.Doctor.Name)
	}
	return Contains(f.Search, fields...)
}

type DoctorFilter struct {
	Specialty string
	Status    models.DoctorStatus
	Search    string
}

func (f DoctorFilter) Match(d models.Doctor) bool {
	if f.Specialty != "" && Fold(d.Specialty) != Fold(f.Specialty) {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	return Contains(f.Search, d.Name, d.Specialty, d.Email, d.Room)
}

type PatientFilter struct {
	Search string
}

func (f PatientFilter) Match(p models.Patient) bool {
	return Contains(f.Search, p.FullName(), p.MedicalRecordNumber, p.Phone, p.Email)
}
