package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lizet96/frontdesk/auth"
	"github.com/lizet96/frontdesk/config"
	"github.com/lizet96/frontdesk/database"
	"github.com/lizet96/frontdesk/handlers"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/repository"
	"github.com/lizet96/frontdesk/routes"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct-horse"
)

var clinicDay = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Meta    *models.Meta      `json:"meta"`
	Errors  map[string]string `json:"errors"`
}

type HandlerTestSuite struct {
	suite.Suite
	app    *fiber.App
	store  *repository.Store
	tokens *auth.TokenService

	admin, desk, doc models.User
	adminTok         string
	deskTok          string
	docTok           string
	house            models.Doctor
}

func ctx() context.Context { return context.Background() }

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	db, err := database.Open(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.T().Cleanup(func() { sqlDB.Close() })
	s.Require().NoError(database.Migrate(db))

	clock := func() time.Time { return clinicDay }
	s.store = repository.New(db)
	s.tokens = auth.NewTokenService(testSecret, 15*time.Minute, 24*time.Hour, auth.NewMemoryBlacklist(time.Minute))
	s.tokens.Now = clock

	h := handlers.New(s.store, s.tokens)
	h.Now = clock

	s.app = fiber.New(fiber.Config{ErrorHandler: routes.ErrorHandler})
	routes.SetupRoutes(s.app, h, nil, &config.Config{Environment: "testing", CORSOrigins: "*"})
	s.app.Use(routes.NotFound)

	s.house = models.Doctor{Name: "Gregory House", Specialty: "Diagnostics", Email: "house@clinic.test"}
	s.Require().NoError(s.store.Doctors.Create(ctx(), &s.house))

	s.admin = s.user("Admin", "admin@clinic.test", models.RoleAdmin, nil)
	s.desk = s.user("Pam", "desk@clinic.test", models.RoleReceptionist, nil)
	s.doc = s.user("Greg", "greg@clinic.test", models.RoleDoctor, &s.house.ID)
	s.adminTok = s.token(s.admin)
	s.deskTok = s.token(s.desk)
	s.docTok = s.token(s.doc)
}

func (s *HandlerTestSuite) user(name, email string, role models.Role, doctorID *uint) models.User {
	hash, err := auth.HashPassword(testPassword)
	s.Require().NoError(err)
	u := models.User{Name: name, Email: email, PasswordHash: hash, Role: role, DoctorID: doctorID}
	s.Require().NoError(s.store.Users.Create(ctx(), &u))
	return u
}

func (s *HandlerTestSuite) token(u models.User) string {
	tok, err := s.tokens.IssueAccessToken(u)
	s.Require().NoError(err)
	return tok
}

// do sends a JSON request and decodes the envelope
func (s *HandlerTestSuite) do(method, path, token string, body interface{}) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var env envelope
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *HandlerTestSuite) data(env envelope, dst interface{}) {
	s.Require().NoError(json.Unmarshal(env.Data, dst))
}

func (s *HandlerTestSuite) createPatient(first, last string) models.Patient {
	code, env := s.do("POST", "/api/v1/patients", s.deskTok, fiber.Map{"firstName": first, "lastName": last, "phone": "555-0100"})
	s.Require().Equal(fiber.StatusCreated, code, env.Message)
	var p models.Patient
	s.data(env, &p)
	return p
}

func (s *HandlerTestSuite) TestHealth() {
	code, env := s.do("GET", "/health", "", nil)
	s.Equal(fiber.StatusOK, code)
	s.True(env.Success)

	var body map[string]interface{}
	s.data(env, &body)
	s.Equal("up", body["database"])
}

func (s *HandlerTestSuite) TestUnknownRoute() {
	code, env := s.do("GET", "/nowhere", "", nil)
	s.Equal(fiber.StatusNotFound, code)
	s.False(env.Success)
	s.Contains(env.Message, "/nowhere")
}

func (s *HandlerTestSuite) TestLoginRefreshLogout() {
	code, env := s.do("POST", "/api/v1/auth/login", "", fiber.Map{"email": "desk@clinic.test", "password": "wrong"})
	s.Equal(fiber.StatusUnauthorized, code)
	s.False(env.Success)

	code, env = s.do("POST", "/api/v1/auth/login", "", fiber.Map{"email": "nobody@clinic.test", "password": testPassword})
	s.Equal(fiber.StatusUnauthorized, code)

	code, env = s.do("POST", "/api/v1/auth/login", "", fiber.Map{"email": "DESK@clinic.test", "password": testPassword})
	s.Require().Equal(fiber.StatusOK, code, env.Message)
	var login models.LoginResponse
	s.data(env, &login)
	s.NotEmpty(login.AccessToken)
	s.NotEmpty(login.RefreshToken)
	s.Equal(900, login.ExpiresIn)
	s.Equal(86400, login.RefreshExpiresIn)
	s.Equal(models.RoleReceptionist, login.User.Role)

	code, env = s.do("GET", "/api/v1/auth/me", login.AccessToken, nil)
	s.Require().Equal(fiber.StatusOK, code)
	var me models.User
	s.data(env, &me)
	s.Equal("desk@clinic.test", me.Email)
	s.NotContains(string(env.Data), "passwordHash")

	code, env = s.do("POST", "/api/v1/auth/refresh", "", fiber.Map{"refreshToken": login.RefreshToken})
	s.Require().Equal(fiber.StatusOK, code, env.Message)
	var refreshed models.RefreshResponse
	s.data(env, &refreshed)
	s.NotEqual(login.RefreshToken, refreshed.RefreshToken)

	// the old refresh token is spent
	code, _ = s.do("POST", "/api/v1/auth/refresh", "", fiber.Map{"refreshToken": login.RefreshToken})
	s.Equal(fiber.StatusUnauthorized, code)

	code, _ = s.do("POST", "/api/v1/auth/logout", refreshed.AccessToken, fiber.Map{"refreshToken": refreshed.RefreshToken})
	s.Equal(fiber.StatusOK, code)

	code, env = s.do("GET", "/api/v1/auth/me", refreshed.AccessToken, nil)
	s.Equal(fiber.StatusUnauthorized, code)
	s.Equal("Token has been revoked", env.Message)

	code, _ = s.do("POST", "/api/v1/auth/refresh", "", fiber.Map{"refreshToken": refreshed.RefreshToken})
	s.Equal(fiber.StatusUnauthorized, code)
}

func (s *HandlerTestSuite) TestLoginValidation() {
	code, env := s.do("POST", "/api/v1/auth/login", "", fiber.Map{"password": "x"})
	s.Equal(fiber.StatusUnprocessableEntity, code)
	s.Equal("is required", env.Errors["email"])

	code, env = s.do("POST", "/api/v1/auth/login", "", fiber.Map{"email": "not-an-email", "password": "x"})
	s.Equal(fiber.StatusUnprocessableEntity, code)
	s.Equal("must be a valid email address", env.Errors["email"])
}

func (s *HandlerTestSuite) TestMFAFlow() {
	code, _ := s.do("POST", "/api/v1/auth/mfa/setup", s.deskTok, fiber.Map{"password": "wrong"})
	s.Equal(fiber.StatusUnauthorized, code)

	code, env := s.do("POST", "/api/v1/auth/mfa/setup", s.deskTok, fiber.Map{"password": testPassword})
	s.Require().Equal(fiber.StatusOK, code, env.Message)
	var setup models.MFASetupResponse
	s.data(env, &setup)
	s.Contains(setup.QRCodeURL, "otpauth://totp/")

	// not enforced until verified
	code, _ = s.do("POST", "/api/v1/auth/login", "", fiber.Map{"email": "desk@clinic.test", "password": testPassword})
	s.Equal(fiber.StatusOK, code)

	mfaCode, err := auth.MFACode(setup.Secret, clinicDay)
	s.Require().NoError(err)
	code, _ = s.do("POST", "/api/v1/auth/mfa/verify", s.deskTok, fiber.Map{"code": "12345"})
	s.Equal(fiber.StatusUnprocessableEntity, code)
	code, env = s.do("POST", "/api/v1/auth/mfa/verify", s.deskTok, fiber.Map{"code": mfaCode})
	s.Require().Equal(fiber.StatusOK, code, env.Message)

	code, env = s.do("POST", "/api/v1/auth/login", "", fiber.Map{"email": "desk@clinic.test", "password": testPassword})
	s.Equal(fiber.StatusUnauthorized, code)
	s.Equal("MFA code required", env.Message)
	s.JSONEq(`{"mfaRequired":true}`, string(env.Data))

	code, _ = s.do("POST", "/api/v1/auth/login", "", fiber.Map{"email": "desk@clinic.test", "password": testPassword, "mfaCode": mfaCode})
	s.Equal(fiber.StatusOK, code)

	code, _ = s.do("POST", "/api/v1/auth/mfa/disable", s.deskTok, fiber.Map{"code": mfaCode})
	s.Equal(fiber.StatusOK, code)
	code, _ = s.do("POST", "/api/v1/auth/login", "", fiber.Map{"email": "desk@clinic.test", "password": testPassword})
	s.Equal(fiber.StatusOK, code)
}

func (s *HandlerTestSuite) TestRoleGuards() {
	code, _ := s.do("GET", "/api/v1/patients", "", nil)
	s.Equal(fiber.StatusUnauthorized, code)

	code, env := s.do("GET", "/api/v1/users", s.deskTok, nil)
	s.Equal(fiber.StatusForbidden, code)
	s.False(env.Success)

	code, _ = s.do("POST", "/api/v1/patients", s.docTok, fiber.Map{"firstName": "Ana", "lastName": "Lopez"})
	s.Equal(fiber.StatusForbidden, code)

	code, _ = s.do("GET", "/api/v1/patients", s.docTok, nil)
	s.Equal(fiber.StatusOK, code)

	code, _ = s.do("POST", "/api/v1/doctors", s.deskTok, fiber.Map{"name": "X", "specialty": "Y", "email": "x@clinic.test"})
	s.Equal(fiber.StatusForbidden, code)

	code, _ = s.do("GET", "/api/v1/logs", s.docTok, nil)
	s.Equal(fiber.StatusForbidden, code)
}

func (s *HandlerTestSuite) TestPatientCRUD() {
	code, env := s.do("POST", "/api/v1/patients", s.deskTok, fiber.Map{"lastName": "Lopez", "email": "bad"})
	s.Equal(fiber.StatusUnprocessableEntity, code)
	s.Equal("is required", env.Errors["firstName"])
	s.Equal("must be a valid email address", env.Errors["email"])

	ana := s.createPatient("Ana", "Lopez")
	s.Regexp(`^MRN-[0-9A-F]{8}$`, ana.MedicalRecordNumber)
	s.createPatient("Bruno", "Diaz")

	code, env = s.do("GET", "/api/v1/patients?search=lop", s.deskTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.Require().NotNil(env.Meta)
	s.EqualValues(1, env.Meta.Total)
	s.Equal(1, env.Meta.TotalPages)

	code, env = s.do("GET", "/api/v1/patients?limit=1&page=2&sort=firstName", s.deskTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	var page []models.Patient
	s.data(env, &page)
	s.Require().Len(page, 1)
	s.Equal("Bruno", page[0].FirstName)
	s.Equal(2, env.Meta.TotalPages)

	path := fmt.Sprintf("/api/v1/patients/%d", ana.ID)
	code, env = s.do("PUT", path, s.deskTok, fiber.Map{"firstName": "Ana", "lastName": "Lopez Vega", "phone": "555-0199"})
	s.Require().Equal(fiber.StatusOK, code, env.Message)
	var updated models.Patient
	s.data(env, &updated)
	s.Equal("Lopez Vega", updated.LastName)
	s.Equal(ana.MedicalRecordNumber, updated.MedicalRecordNumber)

	code, _ = s.do("DELETE", path, s.deskTok, nil)
	s.Equal(fiber.StatusOK, code)
	code, _ = s.do("GET", path, s.deskTok, nil)
	s.Equal(fiber.StatusNotFound, code)
	code, _ = s.do("GET", "/api/v1/patients/abc", s.deskTok, nil)
	s.Equal(fiber.StatusBadRequest, code)
}

func (s *HandlerTestSuite) TestQueueFlow() {
	ana := s.createPatient("Ana", "Lopez")
	bruno := s.createPatient("Bruno", "Diaz")
	carla := s.createPatient("Carla", "Ruiz")

	code, _ := s.do("POST", "/api/v1/queue", s.deskTok, fiber.Map{"patientId": 999})
	s.Equal(fiber.StatusNotFound, code)
	code, env := s.do("POST", "/api/v1/queue", s.deskTok, fiber.Map{"patientId": ana.ID, "priority": "asap"})
	s.Equal(fiber.StatusUnprocessableEntity, code)
	s.Equal("must be one of: normal, urgent", env.Errors["priority"])

	var tickets []models.QueueEntry
	for _, req := range []fiber.Map{
		{"patientId": ana.ID},
		{"patientId": bruno.ID},
		{"patientId": carla.ID, "priority": "urgent", "reason": "chest pain"},
	} {
		code, env := s.do("POST", "/api/v1/queue", s.deskTok, req)
		s.Require().Equal(fiber.StatusCreated, code, env.Message)
		var entry models.QueueEntry
		s.data(env, &entry)
		tickets = append(tickets, entry)
	}
	s.Equal(1, tickets[0].Number)
	s.Equal(3, tickets[2].Number)
	s.Equal("2026-10-19", tickets[0].QueueDate)
	s.Require().NotNil(tickets[0].Patient)
	s.Equal("Ana", tickets[0].Patient.FirstName)

	code, env = s.do("GET", "/api/v1/queue", s.docTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	var listed []models.QueueEntry
	s.data(env, &listed)
	s.Require().Len(listed, 3)
	s.Equal(carla.ID, listed[0].PatientID)
	s.Equal(ana.ID, listed[1].PatientID)

	code, _ = s.do("GET", "/api/v1/queue?date=2026-10-18", s.deskTok, nil)
	s.Equal(fiber.StatusOK, code)
	code, _ = s.do("GET", "/api/v1/queue?date=yesterday", s.deskTok, nil)
	s.Equal(fiber.StatusBadRequest, code)

	code, env = s.do("POST", "/api/v1/queue/call-next", s.docTok, nil)
	s.Require().Equal(fiber.StatusOK, code, env.Message)
	var called models.QueueEntry
	s.data(env, &called)
	s.Equal(carla.ID, called.PatientID)
	s.Equal(models.QueueCalled, called.Status)

	path := fmt.Sprintf("/api/v1/queue/%d/status", tickets[0].ID)
	code, _ = s.do("PUT", path, s.deskTok, fiber.Map{"status": "completed"})
	s.Equal(fiber.StatusConflict, code)
	code, _ = s.do("PUT", path, s.deskTok, fiber.Map{"status": "cancelled"})
	s.Equal(fiber.StatusOK, code)

	code, env = s.do("POST", "/api/v1/queue/call-next", s.deskTok, fiber.Map{"doctorId": s.house.ID})
	s.Require().Equal(fiber.StatusOK, code)
	s.data(env, &called)
	s.Equal(bruno.ID, called.PatientID)
	s.Require().NotNil(called.DoctorID)
	s.Equal(s.house.ID, *called.DoctorID)

	code, _ = s.do("POST", "/api/v1/queue/call-next", s.deskTok, nil)
	s.Equal(fiber.StatusNotFound, code)

	code, env = s.do("GET", "/api/v1/queue?active=true", s.deskTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.EqualValues(2, env.Meta.Total)

	code, _ = s.do("DELETE", fmt.Sprintf("/api/v1/queue/%d", tickets[0].ID), s.deskTok, nil)
	s.Equal(fiber.StatusOK, code)
}

func (s *HandlerTestSuite) TestAppointmentFlow() {
	ana := s.createPatient("Ana", "Lopez")
	bruno := s.createPatient("Bruno", "Diaz")
	at := clinicDay.Add(time.Hour)

	code, env := s.do("POST", "/api/v1/appointments", s.deskTok, fiber.Map{
		"patientId": ana.ID, "doctorId": s.house.ID, "scheduledAt": at, "reason": "follow-up",
	})
	s.Require().Equal(fiber.StatusCreated, code, env.Message)
	var booked models.Appointment
	s.data(env, &booked)
	s.Equal(models.AppointmentScheduled, booked.Status)
	s.Equal(models.DefaultAppointmentMinutes, booked.DurationMinutes)
	s.Require().NotNil(booked.Patient)

	code, _ = s.do("POST", "/api/v1/appointments", s.deskTok, fiber.Map{
		"patientId": bruno.ID, "doctorId": s.house.ID, "scheduledAt": at.Add(15 * time.Minute),
	})
	s.Equal(fiber.StatusConflict, code)

	code, _ = s.do("POST", "/api/v1/appointments", s.deskTok, fiber.Map{
		"patientId": bruno.ID, "doctorId": s.house.ID, "scheduledAt": at.Add(30 * time.Minute),
	})
	s.Equal(fiber.StatusCreated, code)

	code, env = s.do("GET", fmt.Sprintf("/api/v1/appointments?patientId=%d", ana.ID), s.docTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.EqualValues(1, env.Meta.Total)
	code, env = s.do("GET", "/api/v1/appointments?from=2026-10-19&to=2026-10-19", s.deskTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.EqualValues(2, env.Meta.Total)
	code, env = s.do("GET", "/api/v1/appointments?from=2026-10-20", s.deskTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.EqualValues(0, env.Meta.Total)

	path := fmt.Sprintf("/api/v1/appointments/%d", booked.ID)
	code, _ = s.do("PUT", path+"/status", s.deskTok, fiber.Map{"status": "checked_in"})
	s.Equal(fiber.StatusBadRequest, code)
	code, _ = s.do("PUT", path+"/status", s.deskTok, fiber.Map{"status": "confirmed"})
	s.Equal(fiber.StatusOK, code)

	code, env = s.do("POST", path+"/check-in", s.deskTok, nil)
	s.Require().Equal(fiber.StatusOK, code, env.Message)
	var checkIn models.AppointmentCheckInResponse
	s.data(env, &checkIn)
	s.Equal(models.AppointmentCheckedIn, checkIn.Appointment.Status)
	s.Equal(1, checkIn.QueueEntry.Number)
	s.Require().NotNil(checkIn.QueueEntry.AppointmentID)
	s.Equal(booked.ID, *checkIn.QueueEntry.AppointmentID)

	code, _ = s.do("POST", path+"/check-in", s.deskTok, nil)
	s.Equal(fiber.StatusConflict, code)
	code, _ = s.do("POST", path+"/cancel", s.deskTok, nil)
	s.Equal(fiber.StatusConflict, code)
	code, _ = s.do("PUT", path, s.deskTok, fiber.Map{"patientId": ana.ID, "doctorId": s.house.ID, "scheduledAt": at})
	s.Equal(fiber.StatusConflict, code)

	code, _ = s.do("POST", "/api/v1/appointments/999/cancel", s.deskTok, nil)
	s.Equal(fiber.StatusNotFound, code)
}

func (s *HandlerTestSuite) TestAppointmentStatusRoles() {
	wilson := models.Doctor{Name: "James Wilson", Specialty: "Oncology", Email: "wilson@clinic.test"}
	s.Require().NoError(s.store.Doctors.Create(ctx(), &wilson))
	ana := s.createPatient("Ana", "Lopez")
	bruno := s.createPatient("Bruno", "Diaz")

	book := func(patient models.Patient, doctor models.Doctor) string {
		code, env := s.do("POST", "/api/v1/appointments", s.deskTok, fiber.Map{
			"patientId": patient.ID, "doctorId": doctor.ID, "scheduledAt": clinicDay.Add(time.Hour),
		})
		s.Require().Equal(fiber.StatusCreated, code, env.Message)
		var a models.Appointment
		s.data(env, &a)
		return fmt.Sprintf("/api/v1/appointments/%d", a.ID)
	}
	own := book(ana, s.house)
	other := book(bruno, wilson)

	code, _ := s.do("PUT", own+"/status", s.docTok, fiber.Map{"status": "cancelled"})
	s.Equal(fiber.StatusForbidden, code)
	code, _ = s.do("PUT", own+"/status", s.docTok, fiber.Map{"status": "no_show"})
	s.Equal(fiber.StatusForbidden, code)

	for _, path := range []string{own, other} {
		code, env := s.do("POST", path+"/check-in", s.deskTok, nil)
		s.Require().Equal(fiber.StatusOK, code, env.Message)
	}
	code, _ = s.do("PUT", other+"/status", s.docTok, fiber.Map{"status": "completed"})
	s.Equal(fiber.StatusForbidden, code)
	code, env := s.do("PUT", own+"/status", s.docTok, fiber.Map{"status": "completed"})
	s.Equal(fiber.StatusOK, code, env.Message)
	code, _ = s.do("PUT", other+"/status", s.deskTok, fiber.Map{"status": "completed"})
	s.Equal(fiber.StatusOK, code)
}

func (s *HandlerTestSuite) TestDoctorStatus() {
	wilson := models.Doctor{Name: "James Wilson", Specialty: "Oncology", Email: "wilson@clinic.test"}
	s.Require().NoError(s.store.Doctors.Create(ctx(), &wilson))

	own := fmt.Sprintf("/api/v1/doctors/%d/status", s.house.ID)
	other := fmt.Sprintf("/api/v1/doctors/%d/status", wilson.ID)

	code, env := s.do("PUT", own, s.docTok, fiber.Map{"status": "on_break"})
	s.Require().Equal(fiber.StatusOK, code, env.Message)
	var d models.Doctor
	s.data(env, &d)
	s.Equal(models.DoctorOnBreak, d.Status)

	code, _ = s.do("PUT", other, s.docTok, fiber.Map{"status": "on_break"})
	s.Equal(fiber.StatusForbidden, code)
	code, _ = s.do("PUT", other, s.deskTok, fiber.Map{"status": "off_duty"})
	s.Equal(fiber.StatusOK, code)
	code, _ = s.do("PUT", other, s.deskTok, fiber.Map{"status": "asleep"})
	s.Equal(fiber.StatusUnprocessableEntity, code)

	code, env = s.do("GET", "/api/v1/doctors?status=off_duty", s.deskTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.EqualValues(1, env.Meta.Total)
	code, _ = s.do("GET", "/api/v1/doctors?status=asleep", s.deskTok, nil)
	s.Equal(fiber.StatusBadRequest, code)
}

func (s *HandlerTestSuite) TestDoctorAdmin() {
	code, env := s.do("POST", "/api/v1/doctors", s.adminTok, fiber.Map{"name": "Lisa Cuddy", "specialty": "Endocrinology", "email": "cuddy@clinic.test", "room": "101"})
	s.Require().Equal(fiber.StatusCreated, code, env.Message)
	var cuddy models.Doctor
	s.data(env, &cuddy)
	s.Equal(models.DoctorAvailable, cuddy.Status)

	code, _ = s.do("POST", "/api/v1/doctors", s.adminTok, fiber.Map{"name": "Dup", "specialty": "X", "email": "cuddy@clinic.test"})
	s.Equal(fiber.StatusConflict, code)

	code, env = s.do("PUT", fmt.Sprintf("/api/v1/doctors/%d", cuddy.ID), s.adminTok, fiber.Map{"name": "Lisa Cuddy", "specialty": "Administration", "email": "cuddy@clinic.test"})
	s.Require().Equal(fiber.StatusOK, code, env.Message)
	s.data(env, &cuddy)
	s.Equal("Administration", cuddy.Specialty)

	code, _ = s.do("DELETE", fmt.Sprintf("/api/v1/doctors/%d", cuddy.ID), s.adminTok, nil)
	s.Equal(fiber.StatusOK, code)
	code, _ = s.do("GET", fmt.Sprintf("/api/v1/doctors/%d", cuddy.ID), s.adminTok, nil)
	s.Equal(fiber.StatusNotFound, code)
}

func (s *HandlerTestSuite) TestDashboardStats() {
	ana := s.createPatient("Ana", "Lopez")
	bruno := s.createPatient("Bruno", "Diaz")
	s.do("POST", "/api/v1/queue", s.deskTok, fiber.Map{"patientId": ana.ID})
	s.do("POST", "/api/v1/queue", s.deskTok, fiber.Map{"patientId": bruno.ID})
	s.do("POST", "/api/v1/appointments", s.deskTok, fiber.Map{
		"patientId": ana.ID, "doctorId": s.house.ID, "scheduledAt": clinicDay.Add(2 * time.Hour),
	})

	code, env := s.do("GET", "/api/v1/dashboard/stats", s.docTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	var stats models.DashboardStats
	s.data(env, &stats)
	s.EqualValues(2, stats.TotalPatients)
	s.EqualValues(2, stats.Waiting)
	s.EqualValues(1, stats.AppointmentsToday)
	s.EqualValues(1, stats.UpcomingAppointments)
	s.EqualValues(1, stats.AvailableDoctors)
	s.EqualValues(1, stats.TotalDoctors)
}

func (s *HandlerTestSuite) TestUsers() {
	code, env := s.do("POST", "/api/v1/users", s.adminTok, fiber.Map{"name": "Nurse", "email": "nurse@clinic.test", "password": "longenough", "role": "receptionist"})
	s.Require().Equal(fiber.StatusCreated, code, env.Message)
	s.NotContains(string(env.Data), "longenough")
	var nurse models.User
	s.data(env, &nurse)

	code, _ = s.do("POST", "/api/v1/users", s.adminTok, fiber.Map{"name": "Again", "email": "NURSE@clinic.test", "password": "longenough", "role": "receptionist"})
	s.Equal(fiber.StatusConflict, code)

	code, env = s.do("POST", "/api/v1/users", s.adminTok, fiber.Map{"name": "Doc", "email": "doc2@clinic.test", "password": "longenough", "role": "doctor"})
	s.Equal(fiber.StatusUnprocessableEntity, code)
	s.Contains(env.Errors, "doctorId")

	code, env = s.do("POST", "/api/v1/users", s.adminTok, fiber.Map{"name": "Short", "email": "short@clinic.test", "password": "short", "role": "admin"})
	s.Equal(fiber.StatusUnprocessableEntity, code)
	s.Equal("must be at least 8", env.Errors["password"])

	code, env = s.do("GET", "/api/v1/users", s.adminTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.EqualValues(4, env.Meta.Total)

	code, _ = s.do("DELETE", fmt.Sprintf("/api/v1/users/%d", s.admin.ID), s.adminTok, nil)
	s.Equal(fiber.StatusConflict, code)
	code, _ = s.do("DELETE", fmt.Sprintf("/api/v1/users/%d", nurse.ID), s.adminTok, nil)
	s.Equal(fiber.StatusOK, code)

	code, _ = s.do("POST", "/api/v1/auth/login", "", fiber.Map{"email": "nurse@clinic.test", "password": "longenough"})
	s.Equal(fiber.StatusUnauthorized, code)
}

func (s *HandlerTestSuite) TestLogs() {
	uid := s.admin.ID
	for _, l := range []models.RequestLog{
		{Method: "GET", Path: "/api/v1/queue", StatusCode: 200, Level: models.LogLevelSuccess, IP: "10.0.0.1", LatencyMs: 10, CreatedAt: clinicDay.Add(-time.Hour)},
		{Method: "POST", Path: "/api/v1/queue", StatusCode: 500, Level: models.LogLevelError, IP: "10.0.0.1", LatencyMs: 30, UserID: &uid, CreatedAt: clinicDay.Add(-time.Hour)},
		{Method: "GET", Path: "/api/v1/patients", StatusCode: 404, Level: models.LogLevelWarning, IP: "10.0.0.2", LatencyMs: 20, CreatedAt: clinicDay.AddDate(0, 0, -60)},
	} {
		l := l
		s.Require().NoError(s.store.Logs.Create(ctx(), &l))
	}

	code, env := s.do("GET", "/api/v1/logs?level=error", s.adminTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.EqualValues(1, env.Meta.Total)

	code, env = s.do("GET", fmt.Sprintf("/api/v1/logs?userId=%d", uid), s.adminTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.EqualValues(1, env.Meta.Total)

	code, _ = s.do("GET", "/api/v1/logs?status=abc", s.adminTok, nil)
	s.Equal(fiber.StatusBadRequest, code)

	code, env = s.do("GET", "/api/v1/logs/stats", s.adminTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	var stats models.LogStats
	s.data(env, &stats)
	s.EqualValues(1, stats.ByLevel[models.LogLevelError])
	s.EqualValues(1, stats.ByStatusClass["server_error"])
	s.EqualValues(1, stats.ByStatusClass["success"])
	s.Zero(stats.ByStatusClass["client_error"])
	s.Require().Len(stats.TopIPs, 1)
	s.EqualValues(2, stats.TopIPs[0].Requests)
	s.InDelta(20, stats.AverageLatencyMs, 0.001)

	code, env = s.do("DELETE", "/api/v1/logs?days=30", s.adminTok, nil)
	s.Require().Equal(fiber.StatusOK, code)
	s.JSONEq(`{"deleted":1,"days":30}`, string(env.Data))
}
