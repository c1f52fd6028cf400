package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lizet96/frontdesk/models"
)

// ListOptions are the paging and search parameters shared by list endpoints
type ListOptions struct {
	Page   int
	Limit  int
	Search string
	Sort   string
	Order  string
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Page > 0 {
		v.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	setIf(v, "search", o.Search)
	setIf(v, "sort", o.Sort)
	setIf(v, "order", o.Order)
	return v
}

type QueueListOptions struct {
	ListOptions
	Date     string // YYYY-MM-DD, "all", or empty for today
	Status   models.QueueStatus
	Priority models.QueuePriority
	DoctorID uint
	Active   bool
}

type AppointmentListOptions struct {
	ListOptions
	Status    models.AppointmentStatus
	DoctorID  uint
	PatientID uint
	From      string
	To        string
}

type DoctorListOptions struct {
	ListOptions
	Status    models.DoctorStatus
	Specialty string
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setID(v url.Values, key string, id uint) {
	if id != 0 {
		v.Set(key, strconv.FormatUint(uint64(id), 10))
	}
}

func list[T any](ctx context.Context, c *Client, path string, query url.Values) (*Page[T], error) {
	page := &Page[T]{}
	meta, err := c.call(ctx, request{method: http.MethodGet, path: path, query: query}, &page.Items)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		page.Meta = *meta
	}
	return page, nil
}

func one[T any](ctx context.Context, c *Client, method, path string, body interface{}) (*T, error) {
	var out T
	if _, err := c.call(ctx, request{method: method, path: path, body: body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) remove(ctx context.Context, path string) error {
	_, err := c.call(ctx, request{method: http.MethodDelete, path: path}, nil)
	return err
}

// Queue

func (c *Client) ListQueue(ctx context.Context, opts QueueListOptions) (*Page[models.QueueEntry], error) {
	v := opts.values()
	setIf(v, "date", opts.Date)
	setIf(v, "status", string(opts.Status))
	setIf(v, "priority", string(opts.Priority))
	setID(v, "doctorId", opts.DoctorID)
	if opts.Active {
		v.Set("active", "true")
	}
	return list[models.QueueEntry](ctx, c, "/queue", v)
}

func (c *Client) CheckIn(ctx context.Context, req models.CheckInRequest) (*models.QueueEntry, error) {
	return one[models.QueueEntry](ctx, c, http.MethodPost, "/queue", req)
}

func (c *Client) UpdateQueueStatus(ctx context.Context, id uint, status models.QueueStatus) (*models.QueueEntry, error) {
	return one[models.QueueEntry](ctx, c, http.MethodPut, fmt.Sprintf("/queue/%d/status", id), models.QueueStatusRequest{Status: status})
}

// CallNext calls the next waiting patient. doctorID may be nil.
func (c *Client) CallNext(ctx context.Context, doctorID *uint) (*models.QueueEntry, error) {
	return one[models.QueueEntry](ctx, c, http.MethodPost, "/queue/call-next", models.CallNextRequest{DoctorID: doctorID})
}

func (c *Client) DeleteQueueEntry(ctx context.Context, id uint) error {
	return c.remove(ctx, fmt.Sprintf("/queue/%d", id))
}

// Appointments

func (c *Client) ListAppointments(ctx context.Context, opts AppointmentListOptions) (*Page[models.Appointment], error) {
	v := opts.values()
	setIf(v, "status", string(opts.Status))
	setID(v, "doctorId", opts.DoctorID)
	setID(v, "patientId", opts.PatientID)
	setIf(v, "from", opts.From)
	setIf(v, "to", opts.To)
	return list[models.Appointment](ctx, c, "/appointments", v)
}

func (c *Client) GetAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	return one[models.Appointment](ctx, c, http.MethodGet, fmt.Sprintf("/appointments/%d", id), nil)
}

func (c *Client) CreateAppointment(ctx context.Context, req models.AppointmentRequest) (*models.Appointment, error) {
	return one[models.Appointment](ctx, c, http.MethodPost, "/appointments", req)
}

func (c *Client) UpdateAppointment(ctx context.Context, id uint, req models.AppointmentRequest) (*models.Appointment, error) {
	return one[models.Appointment](ctx, c, http.MethodPut, fmt.Sprintf("/appointments/%d", id), req)
}

func (c *Client) UpdateAppointmentStatus(ctx context.Context, id uint, status models.AppointmentStatus) (*models.Appointment, error) {
	return one[models.Appointment](ctx, c, http.MethodPut, fmt.Sprintf("/appointments/%d/status", id), models.AppointmentStatusRequest{Status: status})
}

func (c *Client) CancelAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	return one[models.Appointment](ctx, c, http.MethodPost, fmt.Sprintf("/appointments/%d/cancel", id), nil)
}

func (c *Client) CheckInAppointment(ctx context.Context, id uint) (*models.AppointmentCheckInResponse, error) {
	return one[models.AppointmentCheckInResponse](ctx, c, http.MethodPost, fmt.Sprintf("/appointments/%d/check-in", id), nil)
}

// Doctors

func (c *Client) ListDoctors(ctx context.Context, opts DoctorListOptions) (*Page[models.Doctor], error) {
	v := opts.values()
	setIf(v, "status", string(opts.Status))
	setIf(v, "specialty", opts.Specialty)
	return list[models.Doctor](ctx, c, "/doctors", v)
}

func (c *Client) GetDoctor(ctx context.Context, id uint) (*models.Doctor, error) {
	return one[models.Doctor](ctx, c, http.MethodGet, fmt.Sprintf("/doctors/%d", id), nil)
}

func (c *Client) CreateDoctor(ctx context.Context, req models.DoctorRequest) (*models.Doctor, error) {
	return one[models.Doctor](ctx, c, http.MethodPost, "/doctors", req)
}

func (c *Client) UpdateDoctor(ctx context.Context, id uint, req models.DoctorRequest) (*models.Doctor, error) {
	return one[models.Doctor](ctx, c, http.MethodPut, fmt.Sprintf("/doctors/%d", id), req)
}

func (c *Client) UpdateDoctorStatus(ctx context.Context, id uint, status models.DoctorStatus) (*models.Doctor, error) {
	return one[models.Doctor](ctx, c, http.MethodPut, fmt.Sprintf("/doctors/%d/status", id), models.DoctorStatusRequest{Status: status})
}

func (c *Client) DeleteDoctor(ctx context.Context, id uint) error {
	return c.remove(ctx, fmt.Sprintf("/doctors/%d", id))
}

// Patients

func (c *Client) ListPatients(ctx context.Context, opts ListOptions) (*Page[models.Patient], error) {
	return list[models.Patient](ctx, c, "/patients", opts.values())
}

func (c *Client) GetPatient(ctx context.Context, id uint) (*models.Patient, error) {
	return one[models.Patient](ctx, c, http.MethodGet, fmt.Sprintf("/patients/%d", id), nil)
}

func (c *Client) CreatePatient(ctx context.Context, req models.PatientRequest) (*models.Patient, error) {
	return one[models.Patient](ctx, c, http.MethodPost, "/patients", req)
}

func (c *Client) UpdatePatient(ctx context.Context, id uint, req models.PatientRequest) (*models.Patient, error) {
	return one[models.Patient](ctx, c, http.MethodPut, fmt.Sprintf("/patients/%d", id), req)
}

func (c *Client) DeletePatient(ctx context.Context, id uint) error {
	return c.remove(ctx, fmt.Sprintf("/patients/%d", id))
}
